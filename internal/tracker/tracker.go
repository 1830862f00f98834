package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"crew-tracker/internal/connection"
	"crew-tracker/internal/observability"
	"crew-tracker/internal/pipeline"
	"crew-tracker/internal/poller"
	"crew-tracker/internal/scheduler"
	"crew-tracker/internal/traccar"
)

// Source is the Traccar API surface the tracker polls.
type Source interface {
	Devices(ctx context.Context, conn connection.Connection) ([]traccar.Device, error)
	Positions(ctx context.Context, conn connection.Connection) ([]traccar.Position, error)
}

// Publisher receives a staff snapshot after every successful poll.
type Publisher interface {
	PublishStaff(ctx context.Context, staff []pipeline.StaffMember) error
}

type Options struct {
	DevicesInterval   time.Duration
	PositionsInterval time.Duration
	RequestTimeout    time.Duration
}

type (
	DevicesState   = poller.State[[]traccar.Device]
	PositionsState = poller.State[[]traccar.Position]
)

// State aggregates both queries the way the list and map views read them.
type State struct {
	Connected bool   `json:"connected"`
	Loading   bool   `json:"isLoading"`
	Fetching  bool   `json:"isFetching"`
	IsError   bool   `json:"isError"`
	Error     string `json:"error,omitempty"`
}

type Tracker struct {
	holder    *connection.Holder
	devices   *poller.Poller[[]traccar.Device]
	positions *poller.Poller[[]traccar.Position]
	sched     *scheduler.Scheduler
	logger    *slog.Logger

	mu        sync.Mutex
	publisher Publisher
	listeners []func(State)
	index     pipeline.PositionIndex
	indexKey  string
	indexVer  uint64
}

func New(holder *connection.Holder, src Source, sched *scheduler.Scheduler, opts Options, lg *slog.Logger) *Tracker {
	t := &Tracker{
		holder: holder,
		sched:  sched,
		logger: lg.With("component", "tracker"),
		index:  pipeline.PositionIndex{},
	}
	t.devices = poller.New[[]traccar.Device](poller.Options{
		Resource: traccar.ResourceDevices,
		Interval: opts.DevicesInterval,
		Timeout:  opts.RequestTimeout,
	}, src.Devices, sched, lg)
	t.positions = poller.New[[]traccar.Position](poller.Options{
		Resource: traccar.ResourcePositions,
		Interval: opts.PositionsInterval,
		Timeout:  opts.RequestTimeout,
	}, src.Positions, sched, lg)

	t.devices.OnUpdate(t.settled)
	t.positions.OnUpdate(t.settled)
	return t
}

// SetPublisher attaches the snapshot sink. Nil detaches it.
func (t *Tracker) SetPublisher(p Publisher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publisher = p
}

// OnState registers fn for the aggregated state after every poll and
// connection change.
func (t *Tracker) OnState(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Start follows the connection holder: pollers run while a connection is
// present and stop when it is cleared.
func (t *Tracker) Start() {
	t.holder.Subscribe(t.apply)
	conn, ok := t.holder.Get()
	t.apply(conn, ok)
}

func (t *Tracker) Stop() {
	t.devices.Stop()
	t.positions.Stop()
}

func (t *Tracker) apply(conn connection.Connection, ok bool) {
	t.devices.SetConnection(conn, ok)
	t.positions.SetConnection(conn, ok)
	t.notify()
}

func (t *Tracker) Holder() *connection.Holder { return t.holder }

func (t *Tracker) Enabled() bool {
	return t.devices.Enabled() && t.positions.Enabled()
}

func (t *Tracker) Devices() DevicesState { return t.devices.State() }

func (t *Tracker) Positions() PositionsState { return t.positions.State() }

func (t *Tracker) State() State {
	return aggregate(t.holder, t.devices.State(), t.positions.State())
}

func aggregate(h *connection.Holder, d DevicesState, p PositionsState) State {
	_, ok := h.Get()
	st := State{
		Connected: ok,
		Loading:   d.Loading || p.Loading,
		Fetching:  d.Fetching || p.Fetching,
		IsError:   d.IsError() || p.IsError(),
	}
	switch {
	case d.IsError():
		st.Error = d.Err
	case p.IsError():
		st.Error = p.Err
	}
	return st
}

// Staff maps the latest devices against the latest positions.
func (t *Tracker) Staff() []pipeline.StaffMember {
	d := t.devices.State()
	if !d.HasData {
		return []pipeline.StaffMember{}
	}
	return pipeline.MapStaff(d.Data, t.positionIndex(), t.sched.Now())
}

// positionIndex rebuilds the index whenever a new positions snapshot has
// arrived, and reuses it otherwise.
func (t *Tracker) positionIndex() pipeline.PositionIndex {
	p := t.positions.State()

	t.mu.Lock()
	defer t.mu.Unlock()
	if p.Key != t.indexKey || p.Version != t.indexVer {
		t.index = pipeline.IndexPositions(p.Data)
		t.indexKey, t.indexVer = p.Key, p.Version
	}
	return t.index
}

// RefreshResult carries both query states after a manual refresh.
type RefreshResult struct {
	Devices   DevicesState
	Positions PositionsState
}

// Refresh refetches devices and positions concurrently and returns once
// both have settled. The error joins whichever fetches failed.
func (t *Tracker) Refresh(ctx context.Context) (RefreshResult, error) {
	var (
		res          RefreshResult
		devErr, pErr error
		wg           sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.Devices, devErr = t.devices.Refetch(ctx)
	}()
	go func() {
		defer wg.Done()
		res.Positions, pErr = t.positions.Refetch(ctx)
	}()
	wg.Wait()

	return res, errors.Join(devErr, pErr)
}

func (t *Tracker) settled(err error) {
	if err == nil {
		staff := t.Staff()
		tracked := 0
		for _, m := range staff {
			if m.HasCoordinates() {
				tracked++
			}
		}
		observability.StaffMembers.Set(float64(len(staff)))
		observability.StaffTracked.Set(float64(tracked))
		t.publish(staff)
	}
	t.notify()
}

func (t *Tracker) publish(staff []pipeline.StaffMember) {
	t.mu.Lock()
	p := t.publisher
	t.mu.Unlock()
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.PublishStaff(ctx, staff); err != nil {
		observability.LinkPublishErrors.Inc()
		t.logger.Warn("publish staff snapshot failed", "err", err)
	}
}

func (t *Tracker) notify() {
	t.mu.Lock()
	listeners := append([]func(State){}, t.listeners...)
	t.mu.Unlock()
	if len(listeners) == 0 {
		return
	}
	st := t.State()
	for _, fn := range listeners {
		fn(st)
	}
}
