package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Sentinel errors for the failure modes callers branch on.
var (
	// ErrAuth indicates the API token was rejected (401/403).
	ErrAuth = errors.New("remote: authentication rejected")

	// ErrUnavailable indicates the source could not be reached or answered
	// with a server-side failure (network error, 5xx, rate limit).
	ErrUnavailable = errors.New("remote: source unavailable")
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.todoist.com/rest/v2"

// defaultPageSize bounds a single listing request.
const defaultPageSize = 200

// Config holds client configuration.
type Config struct {
	// Token is the API bearer token. Required.
	Token string

	// BaseURL overrides the API endpoint (default: DefaultBaseURL).
	BaseURL string

	// PageSize bounds listing requests (default: 200).
	PageSize int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Logger for client activity (default: stderr logger).
	Logger *log.Logger
}

// Client fetches task snapshots from the remote source.
type Client struct {
	token    string
	baseURL  string
	pageSize int
	http     *http.Client
	logger   *log.Logger
}

// NewClient creates a remote source client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Client{
		token:    cfg.Token,
		baseURL:  cfg.BaseURL,
		pageSize: cfg.PageSize,
		http:     cfg.HTTPClient,
		logger:   cfg.Logger,
	}
}

// FetchAll returns the full remote snapshot: every active task followed by
// every completed task, each wrapped in its RawTask shape.
//
// Both listings are paginated with limit/offset; pagination stops on the
// first short page.
func (c *Client) FetchAll(ctx context.Context) ([]RawTask, error) {
	var all []RawTask

	active, err := c.fetchActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active tasks: %w", err)
	}
	for i := range active {
		all = append(all, RawTask{Active: &active[i]})
	}

	completed, err := c.fetchCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completed tasks: %w", err)
	}
	for i := range completed {
		all = append(all, RawTask{Completed: &completed[i]})
	}

	c.logger.Printf("Fetched remote snapshot: %d active, %d completed", len(active), len(completed))
	return all, nil
}

// fetchActive pages through the active task listing.
func (c *Client) fetchActive(ctx context.Context) ([]ActiveTask, error) {
	var tasks []ActiveTask
	for offset := 0; ; offset += c.pageSize {
		var page []ActiveTask
		if err := c.getJSON(ctx, "/tasks", offset, &page); err != nil {
			return nil, err
		}
		tasks = append(tasks, page...)
		if len(page) < c.pageSize {
			return tasks, nil
		}
	}
}

// fetchCompleted pages through the completed task listing.
func (c *Client) fetchCompleted(ctx context.Context) ([]CompletedTask, error) {
	var tasks []CompletedTask
	for offset := 0; ; offset += c.pageSize {
		var page []CompletedTask
		if err := c.getJSON(ctx, "/completed", offset, &page); err != nil {
			return nil, err
		}
		tasks = append(tasks, page...)
		if len(page) < c.pageSize {
			return tasks, nil
		}
	}
}

// getJSON performs one authenticated GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, offset int, out interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid request url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: GET %s returned %d", ErrAuth, path, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: GET %s returned %d", ErrUnavailable, path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s returned unexpected status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
