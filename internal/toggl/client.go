// Package toggl is a minimal client for the Toggl Track v9 API that reports
// failures as classified *UpstreamError values.
package toggl

//go:generate mockgen -destination ./togglmock/togglmock.go -package togglmock github.com/alexanderramin/togglguard/internal/toggl Client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/quartz"
)

// DefaultBaseURL is the public Toggl Track v9 API.
const DefaultBaseURL = "https://api.track.toggl.com/api/v9"

// Config holds client settings.
type Config struct {
	BaseURL string
	// Timeout bounds every call in addition to the caller's context.
	Timeout time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 8 * time.Second,
	}
}

// Client is the subset of the Toggl API the resilience layer consumes.
// Every error returned is an *UpstreamError.
type Client interface {
	// ListEntries returns the entries that started within [start, end].
	ListEntries(ctx context.Context, token string, start, end time.Time) ([]TimeEntry, error)
	// CurrentEntry returns the running entry, or nil when none is running.
	CurrentEntry(ctx context.Context, token string) (*TimeEntry, error)
	ListProjects(ctx context.Context, token string) ([]Project, error)
}

type httpClient struct {
	cfg      Config
	http     *http.Client
	clock    quartz.Clock
	observer Observer
}

// NewClient creates a Client that talks to cfg.BaseURL.
func NewClient(cfg Config, clock quartz.Clock, observer Observer) Client {
	if observer == nil {
		observer = NoopObserver{}
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &httpClient{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
		clock:    clock,
		observer: observer,
	}
}

func (c *httpClient) ListEntries(ctx context.Context, token string, start, end time.Time) ([]TimeEntry, error) {
	q := url.Values{}
	q.Set("start_date", start.UTC().Format(time.RFC3339))
	q.Set("end_date", end.UTC().Format(time.RFC3339))

	var entries []TimeEntry
	if err := c.get(ctx, "/me/time_entries", q, token, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *httpClient) CurrentEntry(ctx context.Context, token string) (*TimeEntry, error) {
	// Toggl answers with a JSON null when no timer runs.
	var entry *TimeEntry
	if err := c.get(ctx, "/me/time_entries/current", nil, token, &entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *httpClient) ListProjects(ctx context.Context, token string) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "/me/projects", nil, token, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *httpClient) get(ctx context.Context, path string, query url.Values, token string, out any) error {
	start := c.clock.Now()
	status, err := c.do(ctx, path, query, token, out)

	event := CallEvent{
		Endpoint:   path,
		StatusCode: status,
		LatencyMs:  c.clock.Since(start).Milliseconds(),
		Success:    err == nil,
	}
	if err != nil {
		event.ErrorKind = AsUpstreamError(err).Kind.String()
	}
	c.observer.OnCallComplete(ctx, event)
	return err
}

func (c *httpClient) do(ctx context.Context, path string, query url.Values, token string, out any) (int, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, &UpstreamError{Kind: HardFailure, Message: fmt.Sprintf("creating request: %v", err)}
	}
	req.Header.Set("Authorization", authHeader(token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, transportError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, classifyResponse(resp, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, &UpstreamError{
			Kind:    HardFailure,
			Message: fmt.Sprintf("decoding %s response: %v", path, err),
		}
	}
	return resp.StatusCode, nil
}

func transportError(ctx context.Context, err error) *UpstreamError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &UpstreamError{Kind: HardFailure, Message: "toggl request timed out"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &UpstreamError{Kind: HardFailure, Message: "toggl request timed out"}
	}
	return &UpstreamError{Kind: HardFailure, Message: fmt.Sprintf("toggl unreachable: %v", err)}
}

func authHeader(token string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(token+":api_token"))
}
