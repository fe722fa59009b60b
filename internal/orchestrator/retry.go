package orchestrator

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/sammcj/md-server/internal/converter"
	"github.com/sammcj/md-server/internal/detection"
	"github.com/sammcj/md-server/internal/limits"
	"github.com/sammcj/md-server/internal/security"
	"github.com/sammcj/md-server/internal/taxonomy"
)

// RetryPolicy bounds retries of transient converter failures
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy makes up to three attempts: 1s, then 2s between them, capped at 10s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Delay returns the wait before the retry following attempt (zero based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for range attempt {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// transienter is implemented by errors that know whether a retry can help
type transienter interface {
	Transient() bool
}

// retryKeywords is the last resort for errors that carry no structured signal
var retryKeywords = []string{"timeout", "timed out", "connection", "network", "refused", "unreachable", "temporarily"}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// The overall deadline is not retried, it ends the request
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var tagged transienter
	if errors.As(err, &tagged) {
		return tagged.Transient()
	}

	if isDeterministic(err) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, keyword := range retryKeywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

// isDeterministic lists failures that would fail the same way again
func isDeterministic(err error) bool {
	var (
		unsupported *converter.UnsupportedFormatError
		mismatch    *detection.MismatchError
		tooLarge    *limits.TooLargeError
		blocked     *security.BlockedError
		invalidURL  *security.InvalidURLError
		categorised *taxonomy.Error
	)
	return errors.As(err, &unsupported) ||
		errors.As(err, &mismatch) ||
		errors.As(err, &tooLarge) ||
		errors.As(err, &blocked) ||
		errors.As(err, &invalidURL) ||
		errors.As(err, &categorised)
}
