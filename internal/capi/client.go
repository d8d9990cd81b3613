// Package capi talks to the Frontier companion API and fronts it with the
// read-through cache.
package capi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pokedi/edfc/internal/errors"
	"github.com/pokedi/edfc/internal/metrics"
	"github.com/pokedi/edfc/internal/models"
)

const (
	DefaultLiveURL   = "https://companion.orerve.net"
	DefaultBetaURL   = "https://pts-companion.orerve.net"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "EDFC/1.0"

	// maxBodyBytes caps upstream payloads; a full market is well below this.
	maxBodyBytes = 16 << 20
	// maxErrorBody caps the body kept on an ErrUpstream.
	maxErrorBody = 2048
)

// Config describes the CAPI servers.
type Config struct {
	LiveURL    string
	BetaURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client

	// BreakerThreshold consecutive server failures open a server's circuit
	// for BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Client performs authenticated CAPI requests.
type Client struct {
	servers   map[models.Environment]string
	breakers  map[models.Environment]*breaker
	timeout   time.Duration
	maxBody   int64
	userAgent string
	http      *http.Client
	metrics   *metrics.Metrics
}

// NewClient creates a client. m may be nil.
func NewClient(cfg Config, m *metrics.Metrics) *Client {
	if cfg.LiveURL == "" {
		cfg.LiveURL = DefaultLiveURL
	}
	if cfg.BetaURL == "" {
		cfg.BetaURL = DefaultBetaURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		servers: map[models.Environment]string{
			models.EnvLive: strings.TrimSuffix(cfg.LiveURL, "/"),
			models.EnvBeta: strings.TrimSuffix(cfg.BetaURL, "/"),
		},
		breakers: map[models.Environment]*breaker{
			models.EnvLive: newBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
			models.EnvBeta: newBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		},
		timeout:   cfg.Timeout,
		maxBody:   maxBodyBytes,
		userAgent: cfg.UserAgent,
		http:      httpClient,
		metrics:   m,
	}
}

// Fetch GETs /{resource} from the environment's server.
func (c *Client) Fetch(ctx context.Context, resource models.Resource, env models.Environment, accessToken string) ([]byte, error) {
	return c.get(ctx, resource, env, "/"+string(resource), accessToken)
}

// Journal GETs today's journal, or the given day's when date is non-nil.
func (c *Client) Journal(ctx context.Context, env models.Environment, accessToken string, date *JournalDate) ([]byte, error) {
	path := "/journal"
	if date != nil {
		path += date.Path()
	}
	return c.get(ctx, models.ResourceJournal, env, path, accessToken)
}

func (c *Client) get(ctx context.Context, resource models.Resource, env models.Environment, path, accessToken string) ([]byte, error) {
	server, ok := c.servers[env]
	if !ok {
		return nil, fmt.Errorf("unknown CAPI environment: %s", env)
	}

	cb := c.breakers[env]
	if !cb.allow() {
		c.metrics.RecordUpstream(string(resource), "circuit_open", 0)
		return nil, &errors.ErrCircuitOpen{Server: string(env), Resource: string(resource)}
	}

	body, status, err := c.do(ctx, resource, server+path, accessToken)
	if err != nil && ctx.Err() != nil {
		cb.release()
	} else {
		cb.record(err != nil && (status == 0 || status >= http.StatusInternalServerError))
	}
	return body, err
}

// do performs the request. status is 0 when no response was received.
func (c *Client) do(ctx context.Context, resource models.Resource, url, accessToken string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(string(resource), "error", time.Since(start).Seconds())
		return nil, 0, fmt.Errorf("CAPI %s request failed: %w", resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	c.metrics.RecordUpstream(string(resource), strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("CAPI %s read failed: %w", resource, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, resp.StatusCode, fmt.Errorf("CAPI %s response exceeds %d bytes", resource, c.maxBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, resp.StatusCode, &errors.ErrUpstream{Resource: string(resource), Status: resp.StatusCode, Body: string(body)}
	}
	return body, resp.StatusCode, nil
}

// CircuitState reports the breaker state for env.
func (c *Client) CircuitState(env models.Environment) CircuitState {
	if cb, ok := c.breakers[env]; ok {
		return cb.State()
	}
	return CircuitClosed
}
