package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"crew-tracker/internal/pipeline"
)

const DefaultSubject = "crew.staff.snapshot"

var ErrNotConnected = errors.New("link: not connected")

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	IsConnected() bool
	Close()
}

type Options struct {
	URL      string
	User     string
	Password string
	Subject  string
}

// Publisher pushes staff snapshots to NATS after each successful poll.
type Publisher struct {
	nc      conn
	subject string
	logger  *slog.Logger
	now     func() time.Time
}

// Dial connects to NATS. The client keeps reconnecting on its own, every
// 2s with no upper bound, so a later outage only fails individual publishes.
func Dial(opts Options, lg *slog.Logger) (*Publisher, error) {
	lg = lg.With("component", "link")
	nc, err := nats.Connect(opts.URL,
		nats.Name("crew-tracker"),
		nats.UserInfo(opts.User, opts.Password),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			lg.Warn("link: disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			lg.Info("link: reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			lg.Info("link: connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("link: connect %s: %w", opts.URL, err)
	}
	lg.Info("link: connected", "url", nc.ConnectedUrl(), "subject", subjectOrDefault(opts.Subject))
	return newPublisher(nc, opts.Subject, lg), nil
}

func newPublisher(nc conn, subject string, lg *slog.Logger) *Publisher {
	return &Publisher{nc: nc, subject: subjectOrDefault(subject), logger: lg, now: time.Now}
}

func subjectOrDefault(s string) string {
	if s == "" {
		return DefaultSubject
	}
	return s
}

func (p *Publisher) Subject() string { return p.subject }

// Snapshot is the message body published on every poll.
type Snapshot struct {
	At      time.Time `json:"at"`
	Total   int       `json:"total"`
	Tracked int       `json:"tracked"`
	Staff   []Member  `json:"staff"`
}

type Member struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Role        pipeline.Role   `json:"role"`
	Status      pipeline.Status `json:"status"`
	Location    string          `json:"location"`
	LastUpdate  string          `json:"lastUpdate"`
	Coordinates *[2]float64     `json:"coordinates"`
}

func BuildSnapshot(staff []pipeline.StaffMember, at time.Time) Snapshot {
	s := Snapshot{At: at.UTC(), Total: len(staff), Staff: make([]Member, 0, len(staff))}
	for _, m := range staff {
		if m.HasCoordinates() {
			s.Tracked++
		}
		s.Staff = append(s.Staff, Member{
			ID:          m.ID,
			Name:        m.Name,
			Role:        m.Role,
			Status:      m.Status,
			Location:    m.Location,
			LastUpdate:  m.LastUpdate,
			Coordinates: m.Coordinates,
		})
	}
	return s
}

// PublishStaff encodes the snapshot and waits for the server to accept it
// or ctx to expire.
func (p *Publisher) PublishStaff(ctx context.Context, staff []pipeline.StaffMember) error {
	if !p.nc.IsConnected() {
		return ErrNotConnected
	}
	b, err := json.Marshal(BuildSnapshot(staff, p.now()))
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, b); err != nil {
		return fmt.Errorf("link: publish %s: %w", p.subject, err)
	}
	return p.nc.FlushWithContext(ctx)
}

func (p *Publisher) Close() {
	p.nc.Close()
}
