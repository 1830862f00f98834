package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/tevino/abool/v2"

	"crew-tracker/internal/connection"
	"crew-tracker/internal/scheduler"
)

// ErrDisabled is returned by Refetch while no connection is present.
var ErrDisabled = errors.New("poller: disabled (no connection configured)")

// Fetcher performs one request against the current connection.
type Fetcher[T any] func(ctx context.Context, conn connection.Connection) (T, error)

// State is a point-in-time copy of a poller's query.
type State[T any] struct {
	Key       string
	Enabled   bool
	Loading   bool // no data yet and a fetch in flight
	Fetching  bool // any fetch in flight
	Err       string
	HasData   bool
	Data      T
	UpdatedAt time.Time
	FailedAt  time.Time
	// Version increases with every successful fetch for this key.
	Version uint64
}

// IsError reports whether the last fetch for this key failed.
func (s State[T]) IsError() bool { return s.Err != "" }

type entry[T any] struct {
	data      T
	hasData   bool
	err       string
	updatedAt time.Time
	failedAt  time.Time
	version   uint64
}

// Poller repeatedly fetches one resource while a connection is present and
// keeps the latest result per query key.
type Poller[T any] struct {
	resource string
	interval time.Duration
	timeout  time.Duration
	fetch    Fetcher[T]
	sched    *scheduler.Scheduler
	logger   *slog.Logger

	enabled  *abool.AtomicBool
	inflight cmap.ConcurrentMap[string, int] // running fetches per query key
	cache    cmap.ConcurrentMap[string, entry[T]]

	switchMu sync.Mutex // serialises SetConnection and Stop
	mu       sync.Mutex
	conn     connection.Connection
	key      string
	task     *scheduler.Task
	cancel   context.CancelFunc
	onUpdate []func(error)
	version  uint64
}

type Options struct {
	Resource string
	Interval time.Duration
	// Timeout bounds each scheduled fetch. Zero means no extra bound.
	Timeout time.Duration
}

func New[T any](opts Options, fetch Fetcher[T], sched *scheduler.Scheduler, lg *slog.Logger) *Poller[T] {
	return &Poller[T]{
		resource: opts.Resource,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		fetch:    fetch,
		sched:    sched,
		logger:   lg.With("component", "poller", "resource", opts.Resource),
		enabled:  abool.New(),
		inflight: cmap.New[int](),
		cache:    cmap.New[entry[T]](),
	}
}

// QueryKey identifies cached results; a different server or user never
// sees another's data.
func QueryKey(resource string, conn connection.Connection) string {
	return "traccar/" + resource + "/" + conn.BaseURL + "/" + conn.Username
}

func (p *Poller[T]) Resource() string { return p.resource }

func (p *Poller[T]) Interval() time.Duration { return p.interval }

func (p *Poller[T]) Enabled() bool { return p.enabled.IsSet() }

// OnUpdate registers fn to run after every recorded fetch with its
// error, nil on success.
func (p *Poller[T]) OnUpdate(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = append(p.onUpdate, fn)
}

// SetConnection enables the poller for conn (ok) or disables it. Enabling
// fetches immediately and then every interval.
func (p *Poller[T]) SetConnection(conn connection.Connection, ok bool) {
	p.switchMu.Lock()
	defer p.switchMu.Unlock()

	p.halt()

	p.mu.Lock()
	if !ok {
		p.enabled.UnSet()
		p.conn, p.key = connection.Connection{}, ""
	} else {
		p.enabled.Set()
		p.conn, p.key = conn, QueryKey(p.resource, conn)
	}
	key := p.key
	p.mu.Unlock()

	for _, k := range p.cache.Keys() {
		if k != key {
			p.cache.Remove(k)
		}
	}

	if !ok {
		p.logger.Info("poller disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := p.sched.Every(p.interval, func() { p.scheduled(ctx) })

	p.mu.Lock()
	p.task, p.cancel = task, cancel
	p.mu.Unlock()
	p.logger.Info("poller enabled", "interval", p.interval.String())
}

// Stop cancels the schedule and any in-flight scheduled fetch. The poller
// keeps its connection; SetConnection starts it again.
func (p *Poller[T]) Stop() {
	p.switchMu.Lock()
	defer p.switchMu.Unlock()
	p.halt()
}

func (p *Poller[T]) halt() {
	p.mu.Lock()
	task, cancel := p.task, p.cancel
	p.task, p.cancel = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if task != nil {
		task.Stop()
	}
}

func (p *Poller[T]) scheduled(ctx context.Context) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	_, _ = p.fetchOnce(ctx)
}

// Refetch runs one fetch now and returns the resulting state.
func (p *Poller[T]) Refetch(ctx context.Context) (State[T], error) {
	return p.fetchOnce(ctx)
}

func (p *Poller[T]) fetchOnce(ctx context.Context) (State[T], error) {
	p.mu.Lock()
	conn, key := p.conn, p.key
	p.mu.Unlock()
	if !p.enabled.IsSet() || key == "" {
		return p.State(), ErrDisabled
	}

	p.track(key, 1)
	data, err := p.fetch(ctx, conn)
	now := p.sched.Now()
	p.track(key, -1)

	if errors.Is(err, context.Canceled) {
		// Connection switch or shutdown: nothing to record.
		return p.State(), err
	}

	p.mu.Lock()
	if p.key != key {
		p.mu.Unlock()
		return p.State(), err
	}
	prev, _ := p.cache.Get(key)
	if err != nil {
		prev.err = err.Error()
		prev.failedAt = now
		p.cache.Set(key, prev)
	} else {
		p.version++
		p.cache.Set(key, entry[T]{data: data, hasData: true, updatedAt: now, version: p.version})
	}
	hooks := append([]func(error){}, p.onUpdate...)
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("fetch failed", "err", err)
	} else {
		p.logger.Debug("fetch ok")
	}
	for _, fn := range hooks {
		fn(err)
	}
	return p.State(), err
}

func (p *Poller[T]) track(key string, delta int) {
	p.inflight.Upsert(key, delta, func(exist bool, cur, d int) int {
		if exist {
			return cur + d
		}
		return d
	})
	if delta < 0 {
		p.inflight.RemoveCb(key, func(_ string, v int, exists bool) bool {
			return exists && v <= 0
		})
	}
}

// State returns a copy of the current query state. Fetching only counts
// fetches issued for the current key.
func (p *Poller[T]) State() State[T] {
	p.mu.Lock()
	key := p.key
	p.mu.Unlock()

	running, _ := p.inflight.Get(key)
	st := State[T]{
		Key:      key,
		Enabled:  p.enabled.IsSet(),
		Fetching: key != "" && running > 0,
	}
	if key == "" {
		return st
	}
	if e, ok := p.cache.Get(key); ok {
		st.Data = e.data
		st.HasData = e.hasData
		st.Err = e.err
		st.UpdatedAt = e.updatedAt
		st.FailedAt = e.failedAt
		st.Version = e.version
	}
	st.Loading = st.Fetching && !st.HasData
	return st
}
