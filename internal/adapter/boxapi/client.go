package boxapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/cloudbox/internal/domain"
	"github.com/vertextoedge/cloudbox/internal/port"
	"github.com/vertextoedge/cloudbox/internal/transfer"
	"github.com/vertextoedge/cloudbox/internal/util/ratelimiter"
)

// Config contains the connection settings for a Client
type Config struct {
	BaseURL            string
	UploadURL          string
	AccessToken        string
	Timeout            time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	MinRequestInterval time.Duration
	ChunkSize          int
	UserAgent          string
}

// Client is a connection to the content API. It replaces any global
// connection state: every operation goes through an explicit Client value.
// A Client is safe for concurrent use.
type Client struct {
	baseURL        string
	uploadURL      string
	token          string
	userAgent      string
	httpClient     *http.Client
	transferClient *http.Client
	limiter        *ratelimiter.Limiter
	executor       *transfer.Executor
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *zap.Logger
}

// Ensure Client implements port.ContentClient
var _ port.ContentClient = (*Client)(nil)

// NewClient creates a new API client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: access token is required", domain.ErrInvalidInput)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL, err := normalizeURL(cfg.BaseURL, DefaultBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	uploadURL, err := normalizeURL(cfg.UploadURL, DefaultUploadURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upload url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retryBaseDelay := cfg.RetryBaseDelay
	if retryBaseDelay <= 0 {
		retryBaseDelay = defaultRetryBaseDelay
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	transferTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     120 * time.Second,
		ForceAttemptHTTP2:   true,

		// Disable compression for binary content
		DisableCompression: true,

		// Response header timeout (not total transfer timeout)
		ResponseHeaderTimeout: timeout,
	}

	limiter := ratelimiter.New(cfg.MinRequestInterval)

	logger.Debug("api client configured",
		zap.String("base_url", baseURL),
		zap.String("upload_url", uploadURL),
		zap.Int("max_retries", maxRetries),
		zap.Duration("min_request_interval", limiter.Interval()))

	return &Client{
		baseURL:   baseURL,
		uploadURL: uploadURL,
		token:     cfg.AccessToken,
		userAgent: userAgent,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		transferClient: &http.Client{
			Transport: transferTransport,
			Timeout:   0, // No timeout for transfers
		},
		limiter:        limiter,
		executor:       transfer.New(cfg.ChunkSize),
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         logger,
	}, nil
}

func normalizeURL(raw, fallback string) (string, error) {
	if raw == "" {
		raw = fallback
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return strings.TrimSuffix(raw, "/"), nil
}

// apiURL builds a URL under the API base
func (c *Client) apiURL(query url.Values, segments ...string) string {
	return buildURL(c.baseURL, query, segments...)
}

// uploadEndpoint builds a URL under the upload base
func (c *Client) uploadEndpoint(segments ...string) string {
	return buildURL(c.uploadURL, nil, segments...)
}

func buildURL(base string, query url.Values, segments ...string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

// fieldsQuery returns a query selecting the given fields, or nil
func fieldsQuery(fields []string) url.Values {
	if len(fields) == 0 {
		return nil
	}
	return url.Values{"fields": {strings.Join(fields, ",")}}
}

// newRequest creates an authenticated request
func (c *Client) newRequest(ctx context.Context, method, urlStr string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// doJSON performs a JSON API request, retrying retryable failures.
// in is marshalled as the request body when non-nil; out receives the
// decoded response when non-nil.
func (c *Client) doJSON(ctx context.Context, method, urlStr string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		err := c.doJSONOnce(ctx, method, urlStr, payload, out)
		if err == nil {
			return nil
		}

		var re *domain.RetryableError
		if !errors.As(err, &re) {
			return err
		}
		if attempt >= c.maxRetries {
			if c.maxRetries == 0 {
				return re.Err
			}
			return fmt.Errorf("giving up after %d attempts: %w", attempt+1, re.Err)
		}

		delay := c.backoff(attempt, re.RetryAfter)
		c.logger.Warn("retrying request",
			zap.String("method", method),
			zap.String("url", urlStr),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(re.Err))

		if err := sleepContext(ctx, delay); err != nil {
			return err
		}
	}
}

func (c *Client) doJSONOnce(ctx context.Context, method, urlStr string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, urlStr, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return domain.NewRetryableError(fmt.Errorf("request failed: %w", err), 0)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("url", urlStr),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 400 {
		apiErr := decodeError(resp)
		if apiErr.IsRetryable() {
			return domain.NewRetryableError(apiErr, parseRetryAfter(resp))
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// backoff returns the delay before retry number attempt+1
func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > maxRetryDelay {
			return maxRetryDelay
		}
		return retryAfter
	}

	delay := c.retryBaseDelay << uint(attempt)
	if delay <= 0 || delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetCurrentUser returns the user that owns the access token
func (c *Client) GetCurrentUser(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL(nil, "users", "me"), nil, &user); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &user, nil
}
