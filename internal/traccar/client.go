package traccar

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/ratelimit"

	"crew-tracker/internal/connection"
	"crew-tracker/internal/observability"
)

const (
	ResourceDevices   = "devices"
	ResourcePositions = "positions"
)

// ErrUnreachable covers every transport-level failure: DNS, refused
// connections, TLS and cross-origin rejections all look the same to us.
var ErrUnreachable = errors.New("Unable to reach the Traccar server. Check the URL and ensure CORS is enabled via the web.origin setting.")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Traccar request failed with status %d", e.Code)
}

type Client struct {
	http    *http.Client
	limiter ratelimit.Limiter
	journal func(resource string, body []byte)
}

type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRate paces outgoing requests to rps per second. Zero or less disables pacing.
func WithRate(rps int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = ratelimit.NewUnlimited()
			return
		}
		c.limiter = ratelimit.New(rps, ratelimit.Per(time.Second))
	}
}

// WithJournal receives every successful response body before decoding.
func WithJournal(fn func(resource string, body []byte)) Option {
	return func(c *Client) { c.journal = fn }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: ratelimit.NewUnlimited(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Devices(ctx context.Context, conn connection.Connection) ([]Device, error) {
	var out []Device
	if err := c.get(ctx, conn, ResourceDevices, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Positions(ctx context.Context, conn connection.Connection) ([]Position, error) {
	var out []Position
	if err := c.get(ctx, conn, ResourcePositions, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, conn connection.Connection, resource string, v any) error {
	start := time.Now()
	observability.PollsTotal.WithLabelValues(resource).Inc()
	defer observability.ObservePollLatency(resource, start)

	endpoint, err := url.JoinPath(conn.BaseURL, "api", resource)
	if err != nil {
		observability.PollErrors.WithLabelValues(resource, "url").Inc()
		return ErrUnreachable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		observability.PollErrors.WithLabelValues(resource, "url").Inc()
		return ErrUnreachable
	}
	req.Header.Set("Authorization", BasicAuth(conn.Username, conn.Password))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	c.limiter.Take()
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		observability.PollErrors.WithLabelValues(resource, "unreachable").Inc()
		return ErrUnreachable
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		observability.PollErrors.WithLabelValues(resource, "unreachable").Inc()
		return ErrUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		observability.PollErrors.WithLabelValues(resource, "status").Inc()
		return &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.PollErrors.WithLabelValues(resource, "read").Inc()
		return fmt.Errorf("read %s: %w", resource, err)
	}
	if c.journal != nil {
		c.journal(resource, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		observability.PollErrors.WithLabelValues(resource, "decode").Inc()
		return fmt.Errorf("decode %s: %w", resource, err)
	}
	return nil
}

// BasicAuth builds the Authorization header value for user:pass.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
