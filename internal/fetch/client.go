// Package fetch downloads remote documents through the outbound request policy.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sammcj/md-server/internal/limits"
	"github.com/sammcj/md-server/internal/security"
	"github.com/sammcj/md-server/internal/telemetry"
	"github.com/sammcj/md-server/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// UserAgent for outbound requests
	UserAgent = "md-server/1.0 (+https://github.com/sammcj/md-server)"

	// DefaultMaxContentSize caps any response regardless of content type
	DefaultMaxContentSize = 50 * 1024 * 1024
)

// Config tunes the client
type Config struct {
	Timeout time.Duration
	// MaxContentSize caps every response body
	MaxContentSize int64
	// SizeLimit returns a tighter ceiling for a response content type, optional
	SizeLimit func(contentType string) int64
	// RequestsPerSecond throttles outbound requests when positive
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

// Response is a fetched document
type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client fetches URLs with every hop and connection checked by a security.Guard
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxSize    int64
	sizeLimit  func(contentType string) int64
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewClient builds a guarded client. Redirect targets are validated against opts and
// direct connections only go to addresses the guard allows. Behind a proxy the dial
// check would see the proxy address, so only the URL level checks apply.
func NewClient(logger *logrus.Logger, guard *security.Guard, opts security.Options, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxContentSize <= 0 {
		cfg.MaxContentSize = DefaultMaxContentSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = UserAgent
	}

	transport := httpclient.NewTransport(logger)
	if transport.Proxy == nil {
		transport.DialContext = guard.DialContext(opts)
	}

	client := &Client{
		httpClient: &http.Client{
			Timeout:       cfg.Timeout,
			Transport:     telemetry.WrapHTTPTransport(transport),
			CheckRedirect: preserveUserAgent(cfg.UserAgent, guard.CheckRedirect(opts)),
		},
		userAgent: cfg.UserAgent,
		maxSize:   cfg.MaxContentSize,
		sizeLimit: cfg.SizeLimit,
		logger:    logger,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := max(cfg.Burst, 1)
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return client
}

func preserveUserAgent(userAgent string, next func(*http.Request, []*http.Request) error) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		req.Header.Set("User-Agent", userAgent)
		return next(req, via)
	}
}

// Fetch downloads targetURL. The URL must already have passed the guard.
func (c *Client) Fetch(ctx context.Context, targetURL string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{URL: targetURL, Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf,text/plain;q=0.8,*/*;q=0.7")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.5")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: targetURL, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	contentType := resp.Header.Get("Content-Type")
	c.logger.WithFields(logrus.Fields{
		"url":            telemetry.SanitiseURL(targetURL),
		"final_url":      telemetry.SanitiseURL(resp.Request.URL.String()),
		"status_code":    resp.StatusCode,
		"content_type":   contentType,
		"content_length": resp.ContentLength,
		"elapsed_ms":     time.Since(start).Milliseconds(),
	}).Debug("Received HTTP response")

	if resp.StatusCode >= 400 {
		return nil, &StatusError{URL: targetURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	limit := c.limitFor(contentType)
	if resp.ContentLength > limit {
		return nil, &limits.TooLargeError{Size: resp.ContentLength, Limit: limit, ContentType: contentType}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &NetworkError{URL: targetURL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(body)) > limit {
		return nil, &limits.TooLargeError{Size: int64(len(body)), Limit: limit, ContentType: contentType}
	}

	return &Response{
		URL:         targetURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

func (c *Client) limitFor(contentType string) int64 {
	limit := c.maxSize
	if c.sizeLimit != nil && contentType != "" {
		if typed := c.sizeLimit(contentType); typed > 0 {
			limit = min(limit, typed)
		}
	}
	return limit
}

// StatusError is an HTTP error response
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d fetching %s: %s", e.StatusCode, e.URL, e.Status)
}

// Transient reports whether the server signalled a temporary condition
func (e *StatusError) Transient() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// NetworkError is a failure below HTTP: DNS, dialling, TLS or reading the body
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Transient is false when the guard rejected a redirect or connection, since retrying
// would be rejected the same way
func (e *NetworkError) Transient() bool {
	var blocked *security.BlockedError
	if errors.As(e.Err, &blocked) || errors.Is(e.Err, security.ErrTooManyRedirects) {
		return false
	}
	return !errors.Is(e.Err, context.Canceled)
}
