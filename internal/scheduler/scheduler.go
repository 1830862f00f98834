package scheduler

import (
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
)

// Scheduler starts repeating tasks on a clock. Tests pass a mock clock
// and advance it instead of sleeping.
type Scheduler struct {
	clock clock.Clock
}

func New(c clock.Clock) *Scheduler {
	if c == nil {
		c = clock.New()
	}
	return &Scheduler{clock: c}
}

func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Task is the cancel handle of a repeating task.
type Task struct {
	ticker *clock.Ticker
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Every runs fn once immediately and then on every tick of interval until
// Stop. Runs never overlap; a tick that fires during a run is coalesced.
func (s *Scheduler) Every(interval time.Duration, fn func()) *Task {
	t := &Task{
		ticker: s.clock.Ticker(interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

func (t *Task) run(fn func()) {
	defer close(t.done)
	defer t.ticker.Stop()

	fn()
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
			select {
			case <-t.stop:
				return
			default:
			}
			fn()
		}
	}
}

// Stop cancels the task and waits for an in-flight run to return.
// Safe to call more than once.
func (t *Task) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}
