package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sammcj/md-server/internal/converter"
	"github.com/sammcj/md-server/internal/detection"
	"github.com/sammcj/md-server/internal/fetch"
	"github.com/sammcj/md-server/internal/limits"
	"github.com/sammcj/md-server/internal/security"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 4 * time.Second},
		{attempt: 3, want: 8 * time.Second},
		{attempt: 4, want: 10 * time.Second},
		{attempt: 10, want: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, p.Delay(tt.attempt))
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o deadline" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "tagged transient", err: converter.Transient(errors.New("boom")), want: true},
		{name: "net timeout", err: fmt.Errorf("read: %w", timeoutError{}), want: true},
		{name: "connection reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "connection refused", err: syscall.ECONNREFUSED, want: true},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: true},
		{name: "keyword fallback", err: errors.New("network is unreachable"), want: true},
		{name: "plain failure", err: errors.New("invalid document"), want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "service unavailable", err: &fetch.StatusError{StatusCode: 503}, want: true},
		{name: "not found", err: &fetch.StatusError{StatusCode: 404}, want: false},
		{
			name: "redirect blocked by guard",
			err:  &fetch.NetworkError{URL: "http://x", Err: &security.BlockedError{Reason: security.ReasonPrivateIPRange}},
			want: false,
		},
		{name: "network failure", err: &fetch.NetworkError{URL: "http://x", Err: errors.New("dial tcp")}, want: true},
		{name: "too large", err: &limits.TooLargeError{Size: 2, Limit: 1}, want: false},
		{name: "mismatch", err: &detection.MismatchError{Declared: "application/pdf", Detected: "text/plain"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
