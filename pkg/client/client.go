package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/protolambda/muskoka-client/internal/logger"
	"github.com/protolambda/muskoka-client/internal/task"
)

// maxResponseSize caps how much of a response body is read
const maxResponseSize = 32 << 20

// ErrNotFound is matched by API errors for unknown tasks
var ErrNotFound = errors.New("not found")

// APIError is a non-200 response from the API. The body describes the error.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("failed to get data from %s api: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Config holds client configuration
type Config struct {
	Endpoint   string
	Timeout    time.Duration
	MaxRetries int

	// RetryInterval is the first backoff delay; it grows exponentially
	RetryInterval time.Duration

	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client queries the muskoka listing and task API
type Client struct {
	config   Config
	endpoint *url.URL
	http     *http.Client
	log      *logger.Logger
}

// New creates a new client instance
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("api endpoint is required")
	}
	endpoint, err := url.Parse(strings.TrimSuffix(config.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api endpoint: %w", err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("api endpoint must be an absolute URL: %s", config.Endpoint)
	}
	if config.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative")
	}

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = 200 * time.Millisecond
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	if config.Logger == nil {
		config.Logger = logger.ForComponent("client")
	}

	return &Client{
		config:   config,
		endpoint: endpoint,
		http:     config.HTTPClient,
		log:      config.Logger,
	}, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Endpoint returns the API base URL
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// UploadURL is where new transitions are submitted
func (c *Client) UploadURL() string {
	return c.url("upload", nil)
}

func (c *Client) url(path string, params url.Values) string {
	u := *c.endpoint
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + path
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// QueryListing fetches a page of tasks matching the query
func (c *Client) QueryListing(ctx context.Context, q ListingQuery) ([]task.Task, error) {
	target := c.url("listing", q.Values())
	c.log.Debug("querying listing", logger.Fields{"url": target})

	body, err := c.get(ctx, "listing", target)
	if err != nil {
		return nil, err
	}
	tasks, err := task.DecodeListing(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	return tasks, nil
}

// QueryTask fetches a single task by key
func (c *Client) QueryTask(ctx context.Context, key string) (*task.Task, error) {
	if key == "" {
		return nil, fmt.Errorf("task key cannot be empty")
	}
	target := c.url("task", url.Values{"key": {key}})
	c.log.Debug("querying task", logger.Fields{"task_key": key})

	body, err := c.get(ctx, "task", target)
	if err != nil {
		return nil, err
	}
	t, err := task.DecodeTaskWithKey(body, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", key, err)
	}
	return t, nil
}

// UploadRequest is a new transition: a pre-state and its blocks in order
type UploadRequest struct {
	SpecVersion string
	SpecConfig  string
	PreState    File
	Blocks      []File
}

// File is a named upload
type File struct {
	Name    string
	Content io.Reader
}

// Upload submits a new transition and returns the key of the created task.
// Uploads are not retried, a retry could create the task twice.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (string, error) {
	if req.SpecVersion == "" {
		return "", fmt.Errorf("spec version is required")
	}
	if req.PreState.Content == nil {
		return "", fmt.Errorf("pre-state is required")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("spec-version", req.SpecVersion); err != nil {
		return "", err
	}
	if req.SpecConfig != "" {
		if err := mw.WriteField("spec-config", req.SpecConfig); err != nil {
			return "", err
		}
	}
	if err := writeFile(mw, "pre", req.PreState, "pre.ssz"); err != nil {
		return "", err
	}
	order := make([]string, 0, len(req.Blocks))
	for i, b := range req.Blocks {
		if err := writeFile(mw, "blocks", b, fmt.Sprintf("block_%d.ssz", i)); err != nil {
			return "", err
		}
		order = append(order, strconv.Itoa(i))
	}
	if err := mw.WriteField("blocks-order", strings.Join(order, ",")); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	payload := buf.Bytes()
	contentType := mw.FormDataContentType()
	body, err := c.do(ctx, "upload", 1, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL(), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", contentType)
		return r, nil
	})
	if err != nil {
		return "", err
	}

	key := parseUploadKey(body)
	c.log.Info("transition uploaded", logger.Fields{"task_key": key, "blocks": len(req.Blocks)})
	return key, nil
}

func writeFile(mw *multipart.Writer, field string, f File, fallbackName string) error {
	if f.Content == nil {
		return fmt.Errorf("missing content for %s", field)
	}
	name := f.Name
	if name == "" {
		name = fallbackName
	}
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f.Content); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return nil
}

// parseUploadKey accepts either {"key": "..."} or the bare key as text
func parseUploadKey(body []byte) string {
	var resp struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Key != "" {
		return resp.Key
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) get(ctx context.Context, endpoint, target string) ([]byte, error) {
	return c.do(ctx, endpoint, uint(c.config.MaxRetries)+1, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Accept", "application/json")
		return r, nil
	})
}

// do runs a request, retrying network errors and 5xx responses with
// exponential backoff. 4xx responses fail immediately.
func (c *Client) do(ctx context.Context, endpoint string, tries uint, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		req, err := build(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			c.log.Warn("api request failed", logger.Fields{"endpoint": endpoint, "attempt": attempt, "error": err})
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
		}
		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resp.StatusCode >= http.StatusInternalServerError {
			c.log.Warn("api returned server error", logger.Fields{"endpoint": endpoint, "attempt": attempt, "status": resp.StatusCode})
			return nil, apiErr
		}
		return nil, backoff.Permanent(apiErr)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInterval
	b.MaxInterval = 10 * c.config.RetryInterval

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
	)
}
