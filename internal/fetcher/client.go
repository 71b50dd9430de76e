package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"drain-audit/internal/cache"
	"drain-audit/internal/telemetry"
)

const (
	snapshotsPath = "/api/Levels"
	ticketsPath   = "/api/Tickets"
	vesselsPath   = "/api/Information/cauldrons"

	snapshotsKey = "snapshots"
	ticketsKey   = "tickets"
	vesselsKey   = "vessels"
)

// Options parameterise the upstream client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches snapshots, tickets, and vessel reference data from the
// upstream JSON API. Responses pass through an injected cache: a fresh entry
// short-circuits the request, and a stale entry is served when the upstream
// call fails.
type Client struct {
	opts    Options
	baseURL string
	client  *http.Client
	cache   cache.Cache
	logger  zerolog.Logger
}

// NewClient constructs an upstream client. The cache may be nil, disabling
// both reuse and the stale fallback.
func NewClient(opts Options, store cache.Cache, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://hackutd2025.eog.systems"
	}

	return &Client{
		opts:    opts,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   store,
		logger:  logger.With().Str("component", "upstream_client").Logger(),
	}
}

// FetchSnapshots retrieves the raw level snapshots.
func (c *Client) FetchSnapshots(ctx context.Context) ([]telemetry.Snapshot, error) {
	if cached, ok := lookupFresh[[]telemetry.Snapshot](c.cache, snapshotsKey); ok {
		return cached, nil
	}

	var snapshots []telemetry.Snapshot
	if err := c.getJSON(ctx, snapshotsPath, &snapshots); err != nil {
		if stale, ok := lookupAny[[]telemetry.Snapshot](c.cache, snapshotsKey); ok {
			c.logger.Warn().Err(err).Msg("upstream snapshots unavailable, serving stale cache")
			return stale, nil
		}
		return nil, fmt.Errorf("fetch snapshots: %w", err)
	}

	c.store(snapshotsKey, snapshots)
	return snapshots, nil
}

// FetchTickets retrieves reported collection tickets.
func (c *Client) FetchTickets(ctx context.Context) ([]telemetry.Ticket, error) {
	if cached, ok := lookupFresh[[]telemetry.Ticket](c.cache, ticketsKey); ok {
		return cached, nil
	}

	var tickets []telemetry.Ticket
	if err := c.getJSON(ctx, ticketsPath, &tickets); err != nil {
		if stale, ok := lookupAny[[]telemetry.Ticket](c.cache, ticketsKey); ok {
			c.logger.Warn().Err(err).Msg("upstream tickets unavailable, serving stale cache")
			return stale, nil
		}
		return nil, fmt.Errorf("fetch tickets: %w", err)
	}

	c.store(ticketsKey, tickets)
	return tickets, nil
}

// FetchVessels retrieves vessel reference data.
func (c *Client) FetchVessels(ctx context.Context) ([]telemetry.Vessel, error) {
	if cached, ok := lookupFresh[[]telemetry.Vessel](c.cache, vesselsKey); ok {
		return cached, nil
	}

	var vessels []telemetry.Vessel
	if err := c.getJSON(ctx, vesselsPath, &vessels); err != nil {
		if stale, ok := lookupAny[[]telemetry.Vessel](c.cache, vesselsKey); ok {
			c.logger.Warn().Err(err).Msg("upstream vessels unavailable, serving stale cache")
			return stale, nil
		}
		return nil, fmt.Errorf("fetch vessels: %w", err)
	}

	c.store(vesselsKey, vessels)
	return vessels, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "drainaudit/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, payload)
	}

	return json.Unmarshal(payload, out)
}

func (c *Client) store(key string, value any) {
	if c.cache == nil {
		return
	}
	c.cache.Put(key, value)
}

func lookupFresh[T any](store cache.Cache, key string) (T, bool) {
	var zero T
	if store == nil {
		return zero, false
	}
	value, fresh, ok := store.Get(key)
	if !ok || !fresh {
		return zero, false
	}
	typed, ok := value.(T)
	return typed, ok
}

func lookupAny[T any](store cache.Cache, key string) (T, bool) {
	var zero T
	if store == nil {
		return zero, false
	}
	value, _, ok := store.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	return typed, ok
}

type errorResponse struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("upstream error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Title != "" {
			return fmt.Errorf("upstream error (%d): %s", status, apiErr.Title)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("upstream error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("upstream error (%d)", status)
}

var (
	_ SnapshotFetcher = (*Client)(nil)
	_ TicketFetcher   = (*Client)(nil)
	_ VesselFetcher   = (*Client)(nil)
)
