package connection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

// Connection is the set of credentials used to talk to Traccar.
type Connection struct {
	BaseURL  string `json:"baseUrl"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Masked returns a copy safe to show to users.
func (c Connection) Masked() Connection {
	c.Password = "***"
	return c
}

// Store persists the encoded connection under a single key.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, raw []byte) error
	Remove(ctx context.Context) error
}

// ValidationError carries a message meant to be shown as-is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	ErrMissingURL      = &ValidationError{"Enter the URL to your Traccar server."}
	ErrMissingUsername = &ValidationError{"Username is required."}
	ErrInvalidURL      = &ValidationError{"Enter a valid http(s) URL for your Traccar server."}
)

// Holder owns the current connection. Readers get copies; every change
// replaces the value and is announced to subscribers.
type Holder struct {
	store  Store
	logger *slog.Logger

	mu   sync.RWMutex
	conn Connection
	ok   bool
	subs []func(Connection, bool)
}

func NewHolder(store Store, lg *slog.Logger) *Holder {
	return &Holder{store: store, logger: lg.With("component", "connection")}
}

// Load runs once at startup. A stored connection wins, then the injected
// default, then absence. Malformed stored data is dropped silently.
func (h *Holder) Load(ctx context.Context, defaults *Connection) {
	conn, ok := h.readStored(ctx)
	if !ok && defaults != nil {
		if d, err := normalize(*defaults); err == nil {
			conn, ok = d, true
			h.logger.Info("using startup connection", "base_url", conn.BaseURL, "username", conn.Username)
		}
	}
	h.replace(conn, ok)
}

func (h *Holder) readStored(ctx context.Context) (Connection, bool) {
	raw, err := h.store.Load(ctx)
	if err != nil {
		return Connection{}, false
	}
	return decodeStored(raw)
}

// decodeStored accepts only a JSON object with a non-empty baseUrl and
// username and a string password.
func decodeStored(raw []byte) (Connection, bool) {
	var parsed struct {
		BaseURL  *string `json:"baseUrl"`
		Username *string `json:"username"`
		Password *string `json:"password"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Connection{}, false
	}
	if parsed.BaseURL == nil || *parsed.BaseURL == "" ||
		parsed.Username == nil || *parsed.Username == "" ||
		parsed.Password == nil {
		return Connection{}, false
	}
	return Connection{
		BaseURL:  *parsed.BaseURL,
		Username: *parsed.Username,
		Password: *parsed.Password,
	}, true
}

func (h *Holder) Get() (Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn, h.ok
}

// Set trims and validates next, persists it and makes it current. The
// returned error is either a *ValidationError or a store failure; in the
// latter case the new value is still applied for this process.
func (h *Holder) Set(ctx context.Context, next Connection) (Connection, error) {
	conn, err := normalize(next)
	if err != nil {
		return Connection{}, err
	}

	var storeErr error
	raw, err := json.Marshal(conn)
	if err == nil {
		storeErr = h.store.Save(ctx, raw)
	} else {
		storeErr = err
	}
	if storeErr != nil {
		h.logger.Warn("persist connection failed", "err", storeErr)
	}

	h.replace(conn, true)
	h.logger.Info("connection updated", "base_url", conn.BaseURL, "username", conn.Username)
	return conn, storeErr
}

// Clear drops the current connection and the persisted copy.
func (h *Holder) Clear(ctx context.Context) error {
	err := h.store.Remove(ctx)
	if err != nil {
		h.logger.Warn("remove stored connection failed", "err", err)
	}
	h.replace(Connection{}, false)
	h.logger.Info("connection cleared")
	return err
}

// Subscribe registers fn for every later change. fn runs synchronously on
// the goroutine that made the change.
func (h *Holder) Subscribe(fn func(Connection, bool)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, fn)
}

func (h *Holder) replace(conn Connection, ok bool) {
	h.mu.Lock()
	h.conn, h.ok = conn, ok
	subs := append([]func(Connection, bool){}, h.subs...)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(conn, ok)
	}
}

func normalize(c Connection) (Connection, error) {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.Username = strings.TrimSpace(c.Username)
	if c.BaseURL == "" {
		return Connection{}, ErrMissingURL
	}
	if c.Username == "" {
		return Connection{}, ErrMissingUsername
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Connection{}, ErrInvalidURL
	}
	return c, nil
}

// IsValidation reports whether err should be shown to the user verbatim.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
