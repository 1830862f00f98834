package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gin-gonic/gin"

	"crew-tracker/internal/api/code"
	"crew-tracker/internal/connection"
	"crew-tracker/internal/scheduler"
	"crew-tracker/internal/store"
	"crew-tracker/internal/traccar"
	"crew-tracker/internal/tracker"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeSource struct {
	mu     sync.Mutex
	posErr error
}

func (f *fakeSource) Devices(context.Context, connection.Connection) ([]traccar.Device, error) {
	return []traccar.Device{
		{ID: 1, Name: "Alex", Status: "online", Attributes: map[string]any{"role": "patrol"}},
		{ID: 2, Name: "Bo", Status: "offline", Attributes: map[string]any{"role": "instructor"}},
	}, nil
}

func (f *fakeSource) Positions(context.Context, connection.Connection) ([]traccar.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.posErr != nil {
		return nil, f.posErr
	}
	lat, lon := 39.19, -106.82
	return []traccar.Position{{DeviceID: 1, Latitude: &lat, Longitude: &lon}}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// brokenStore loads nothing and fails every write.
type brokenStore struct{}

func (brokenStore) Load(context.Context) ([]byte, error) { return nil, store.ErrNotFound }
func (brokenStore) Save(context.Context, []byte) error {
	return errors.New("redis: connection refused")
}
func (brokenStore) Remove(context.Context) error { return errors.New("redis: connection refused") }

func newTestRouter(t *testing.T) (*gin.Engine, *tracker.Tracker, *fakeSource) {
	t.Helper()
	return newTestRouterWithStore(t, store.NewMemoryStore())
}

func newTestRouterWithStore(t *testing.T, st connection.Store) (*gin.Engine, *tracker.Tracker, *fakeSource) {
	t.Helper()
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	holder := connection.NewHolder(st, lg)
	holder.Load(context.Background(), nil)

	src := &fakeSource{}
	tr := tracker.New(holder, src, scheduler.New(clock.NewMock()), tracker.Options{
		DevicesInterval:   time.Minute,
		PositionsInterval: 15 * time.Second,
	}, lg)
	tr.Start()
	t.Cleanup(tr.Stop)
	return NewRouter(tr, lg), tr, src
}

func do(t *testing.T, r http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func connect(t *testing.T, r http.Handler, tr *tracker.Tracker) {
	t.Helper()
	status, env := do(t, r, http.MethodPut, "/api/connection",
		`{"baseUrl":" http://traccar:8082 ","username":"ops","password":"pw"}`)
	if status != http.StatusOK || env.Code != code.ErrSuccess {
		t.Fatalf("PUT /api/connection: %d %+v", status, env)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tr.Devices().HasData && tr.Positions().HasData {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("tracker did not load data")
}

func TestStaffWithoutConnection(t *testing.T) {
	r, _, _ := newTestRouter(t)

	status, env := do(t, r, http.MethodGet, "/api/staff", "")
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	var data StaffResponse
	_ = json.Unmarshal(env.Data, &data)
	if data.Total != 0 || len(data.Filters) != 1 || data.Filters[0] != "all" || data.State.Connected {
		t.Fatalf("data=%+v", data)
	}
}

func TestPutConnectionValidation(t *testing.T) {
	r, _, _ := newTestRouter(t)

	cases := []struct {
		body string
		want string
	}{
		{`{"baseUrl":"  ","username":"ops"}`, connection.ErrMissingURL.Message},
		{`{"baseUrl":"http://x","username":""}`, connection.ErrMissingUsername.Message},
		{`{"baseUrl":"ftp://x","username":"ops"}`, connection.ErrInvalidURL.Message},
	}
	for _, tc := range cases {
		status, env := do(t, r, http.MethodPut, "/api/connection", tc.body)
		if status != http.StatusBadRequest || env.Code != code.ErrValidation || env.Message != tc.want {
			t.Fatalf("PUT %s: %d %+v want %q", tc.body, status, env, tc.want)
		}
	}

	if status, env := do(t, r, http.MethodPut, "/api/connection", `not json`); status != http.StatusBadRequest || env.Code != code.ErrBind {
		t.Fatalf("bad body: %d %+v", status, env)
	}
}

func TestStaffAndMapAfterConnect(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	connect(t, r, tr)

	_, env := do(t, r, http.MethodGet, "/api/staff?role=patrol", "")
	var staff StaffResponse
	_ = json.Unmarshal(env.Data, &staff)
	if staff.Role != "patrol" || len(staff.Staff) != 1 || staff.Staff[0].RoleLabel != "Ski Patrol" {
		t.Fatalf("patrol filter: %+v", staff)
	}
	if staff.Total != 2 || staff.Active != 1 {
		t.Fatalf("counts total=%d active=%d", staff.Total, staff.Active)
	}

	_, env = do(t, r, http.MethodGet, "/api/staff?role=operations", "")
	_ = json.Unmarshal(env.Data, &staff)
	if staff.Role != "all" || len(staff.Staff) != 2 {
		t.Fatalf("missing role should reset to all: %+v", staff)
	}

	_, env = do(t, r, http.MethodGet, "/api/map", "")
	var m MapResponse
	_ = json.Unmarshal(env.Data, &m)
	if m.Tracked != 1 || m.Total != 2 || m.Viewport.Mode != "flyTo" {
		t.Fatalf("map=%+v", m)
	}

	_, env = do(t, r, http.MethodGet, "/api/connection", "")
	var cr ConnectionResponse
	_ = json.Unmarshal(env.Data, &cr)
	if !cr.Connected || cr.Connection.BaseURL != "http://traccar:8082" || cr.Connection.Password != "***" {
		t.Fatalf("connection=%+v", cr)
	}

	_, env = do(t, r, http.MethodGet, "/api/debug", "")
	if strings.Contains(string(env.Data), `"pw"`) {
		t.Fatalf("debug leaked the password: %s", env.Data)
	}
}

func TestRefreshReportsTraccarError(t *testing.T) {
	r, tr, src := newTestRouter(t)

	if status, env := do(t, r, http.MethodPost, "/api/refresh", ""); status != http.StatusConflict || env.Code != code.ErrNotConnected {
		t.Fatalf("refresh without connection: %d %+v", status, env)
	}

	connect(t, r, tr)
	if status, _ := do(t, r, http.MethodPost, "/api/refresh", ""); status != http.StatusOK {
		t.Fatalf("refresh status=%d", status)
	}

	src.mu.Lock()
	src.posErr = errors.New("Traccar request failed with status 503")
	src.mu.Unlock()

	status, env := do(t, r, http.MethodPost, "/api/refresh", "")
	if status != http.StatusBadGateway || env.Code != code.ErrTraccar {
		t.Fatalf("refresh: %d %+v", status, env)
	}
	if env.Message != "Traccar request failed with status 503" {
		t.Fatalf("message=%q", env.Message)
	}
}

func TestDeleteConnection(t *testing.T) {
	r, tr, _ := newTestRouter(t)
	connect(t, r, tr)

	if status, _ := do(t, r, http.MethodDelete, "/api/connection", ""); status != http.StatusOK {
		t.Fatalf("delete status=%d", status)
	}
	_, env := do(t, r, http.MethodGet, "/api/connection", "")
	var cr ConnectionResponse
	_ = json.Unmarshal(env.Data, &cr)
	if cr.Connected || cr.Connection != nil {
		t.Fatalf("connection after delete=%+v", cr)
	}
	if tr.Enabled() {
		t.Fatal("pollers still running after delete")
	}
}

func TestHealthz(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Fatalf("healthz: %d %s", w.Code, w.Body.String())
	}
}

func TestPutConnectionStoreFailureStillApplies(t *testing.T) {
	r, tr, _ := newTestRouterWithStore(t, brokenStore{})

	status, env := do(t, r, http.MethodPut, "/api/connection",
		`{"baseUrl":"http://traccar:8082","username":"ops","password":"pw"}`)
	if status != http.StatusOK || env.Code != code.ErrSuccess {
		t.Fatalf("PUT with a failing store: %d %+v", status, env)
	}
	var cr ConnectionResponse
	_ = json.Unmarshal(env.Data, &cr)
	if !cr.Connected || cr.Persisted == nil || *cr.Persisted {
		t.Fatalf("connection=%+v want connected and persisted=false", cr)
	}
	if _, ok := tr.Holder().Get(); !ok {
		t.Fatal("connection not applied after a store failure")
	}

	_, env = do(t, r, http.MethodDelete, "/api/connection", "")
	_ = json.Unmarshal(env.Data, &cr)
	if cr.Connected || cr.Persisted == nil || *cr.Persisted {
		t.Fatalf("delete=%+v want disconnected and persisted=false", cr)
	}
}
