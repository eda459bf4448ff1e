package stashy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/requester"
	"github.com/go-pkgz/requester/middleware"
)

// defaults for remote stash configuration
const (
	defaultTimeout    = 30 * time.Second
	defaultRetryCount = 3
	defaultRetryDelay = 100 * time.Millisecond
)

// Remote is a Stash backed by a remote stash HTTP service exposing
// GET/PUT/DELETE on /kv/{key}. The service has no atomic exchange command,
// so the previous value reported by Stash and Delete is read with a separate
// GET before the write and is best effort under concurrent writers.
type Remote struct {
	baseURL   string
	requester *requester.Requester
}

// interface check
var _ Stash = (*Remote)(nil)

// remoteConfig holds configuration options during remote stash construction.
type remoteConfig struct {
	token      string
	timeout    time.Duration
	retryCount int
	retryDelay time.Duration
	httpClient *http.Client
}

// RemoteOption is a functional option for configuring the remote stash.
type RemoteOption func(*remoteConfig)

// WithToken sets the Bearer token for authentication.
func WithToken(token string) RemoteOption {
	return func(cfg *remoteConfig) {
		cfg.token = token
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(timeout time.Duration) RemoteOption {
	return func(cfg *remoteConfig) {
		cfg.timeout = timeout
	}
}

// WithRetry configures retry behavior.
func WithRetry(count int, delay time.Duration) RemoteOption {
	return func(cfg *remoteConfig) {
		cfg.retryCount = count
		cfg.retryDelay = delay
	}
}

// WithHTTPClient sets a custom http.Client.
// Note: when using WithHTTPClient, the WithTimeout option has no effect
// since timeout is configured on the http.Client directly.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(cfg *remoteConfig) {
		cfg.httpClient = client
	}
}

// NewRemote creates a new remote stash with the given base URL and options.
func NewRemote(baseURL string, opts ...RemoteOption) (*Remote, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}

	// normalize base URL
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &remoteConfig{
		timeout:    defaultTimeout,
		retryCount: defaultRetryCount,
		retryDelay: defaultRetryDelay,
	}

	// apply options
	for _, opt := range opts {
		opt(cfg)
	}

	// build requester with middleware
	var middlewares []middleware.RoundTripperHandler
	if cfg.retryCount > 0 {
		middlewares = append(middlewares, middleware.Retry(cfg.retryCount, cfg.retryDelay))
	}
	if cfg.token != "" {
		middlewares = append(middlewares, middleware.Header("Authorization", "Bearer "+cfg.token))
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	return &Remote{
		baseURL:   baseURL,
		requester: requester.New(*httpClient, middlewares...),
	}, nil
}

// Fetch returns the value stored under key, a 404 from the service is a
// miss, not an error.
func (r *Remote) Fetch(ctx context.Context, key string) (string, bool, error) {
	return r.get(ctx, key)
}

// Stash validates key, stores value and returns the previous value if the
// key already existed. The previous value is best effort, see Remote.
func (r *Remote) Stash(ctx context.Context, key, value string) (string, bool, error) {
	if err := ValidateKey(key); err != nil {
		return "", false, err
	}

	prev, found, err := r.get(ctx, key)
	if err != nil {
		return "", false, err
	}

	u, err := url.JoinPath(r.baseURL, "kv", key)
	if err != nil {
		return "", false, backendErr(fmt.Errorf("failed to build URL: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, strings.NewReader(value))
	if err != nil {
		return "", false, backendErr(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := r.requester.Do(req)
	if err != nil {
		return "", false, backendErr(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return "", false, backendErr(&ResponseError{StatusCode: resp.StatusCode})
	}
	return prev, found, nil
}

// Delete removes the entry for key and returns the removed value if the key
// existed. The removed value is best effort, see Remote.
func (r *Remote) Delete(ctx context.Context, key string) (string, bool, error) {
	removed, found, err := r.get(ctx, key)
	if err != nil {
		return "", false, err
	}

	u, err := url.JoinPath(r.baseURL, "kv", key)
	if err != nil {
		return "", false, backendErr(fmt.Errorf("failed to build URL: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, http.NoBody)
	if err != nil {
		return "", false, backendErr(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := r.requester.Do(req)
	if err != nil {
		return "", false, backendErr(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return removed, found, nil
	case http.StatusNotFound: // deleted out from under us, still a miss
		return "", false, nil
	default:
		return "", false, backendErr(&ResponseError{StatusCode: resp.StatusCode})
	}
}

// get retrieves the value for key, mapping 404 to a miss and any other
// failure into the backend error taxonomy.
func (r *Remote) get(ctx context.Context, key string) (string, bool, error) {
	u, err := url.JoinPath(r.baseURL, "kv", key)
	if err != nil {
		return "", false, backendErr(fmt.Errorf("failed to build URL: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return "", false, backendErr(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := r.requester.Do(req)
	if err != nil {
		return "", false, backendErr(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, backendErr(&ResponseError{StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, backendErr(fmt.Errorf("failed to read response: %w", err))
	}
	return string(body), true, nil
}
