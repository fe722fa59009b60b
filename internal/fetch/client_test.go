package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sammcj/md-server/internal/limits"
	"github.com/sammcj/md-server/internal/security"
	"github.com/sammcj/md-server/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(cfg Config) *Client {
	logger := testutil.CreateTestLogger()
	guard := security.NewGuard(logger)
	return NewClient(logger, guard, security.DefaultOptions(), cfg)
}

func TestClient_Fetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc":
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("hello"))
		case "/moved":
			http.Redirect(w, r, "/doc", http.StatusMovedPermanently)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := newTestClient(Config{UserAgent: "md-server-test"})

	t.Run("success", func(t *testing.T) {
		resp, err := client.Fetch(context.Background(), srv.URL+"/doc")
		require.NoError(t, err)
		assert.Equal(t, "hello", string(resp.Body))
		assert.Equal(t, "text/plain; charset=utf-8", resp.ContentType)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "md-server-test", gotUA)
	})

	t.Run("follows redirect", func(t *testing.T) {
		resp, err := client.Fetch(context.Background(), srv.URL+"/moved")
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/doc", resp.FinalURL)
		assert.Equal(t, srv.URL+"/moved", resp.URL)
	})

	t.Run("status error", func(t *testing.T) {
		_, err := client.Fetch(context.Background(), srv.URL+"/missing")
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.False(t, statusErr.Transient())
	})
}

func TestClient_Fetch_SizeLimits(t *testing.T) {
	body := strings.Repeat("x", 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if r.URL.Path == "/chunked" {
			// Flushing before the body forces chunked encoding without a Content-Length
			w.(http.Flusher).Flush()
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		path    string
		cfg     Config
		wantErr bool
	}{
		{name: "within limit", path: "/", cfg: Config{MaxContentSize: 4096}},
		{name: "content length over limit", path: "/", cfg: Config{MaxContentSize: 1024}, wantErr: true},
		{name: "streamed body over limit", path: "/chunked", cfg: Config{MaxContentSize: 1024}, wantErr: true},
		{
			name: "typed limit is tighter",
			path: "/",
			cfg: Config{
				MaxContentSize: 4096,
				SizeLimit:      func(string) int64 { return 100 },
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(tt.cfg).Fetch(context.Background(), srv.URL+tt.path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var tooLarge *limits.TooLargeError
			require.ErrorAs(t, err, &tooLarge)
			assert.Greater(t, tooLarge.Size, tooLarge.Limit)
		})
	}
}

func TestClient_Fetch_RedirectToBlockedAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://169.254.169.254/latest/meta-data/", http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestClient(Config{}).Fetch(context.Background(), srv.URL)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.False(t, netErr.Transient())

	var blocked *security.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, security.ReasonDangerousIPRange, blocked.Reason)
}

func TestClient_Fetch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := newTestClient(Config{RequestsPerSecond: 0.1, Burst: 1})

	_, err := client.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Fetch(ctx, srv.URL)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestStatusError_Transient(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := &StatusError{StatusCode: tt.code}
			assert.Equal(t, tt.want, err.Transient())
		})
	}
}

func TestNetworkError_Transient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "connection reset", err: errors.New("connection reset by peer"), want: true},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "too many redirects", err: fmt.Errorf("get: %w", security.ErrTooManyRedirects), want: false},
		{name: "blocked", err: &security.BlockedError{Reason: security.ReasonPrivateIPRange}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &NetworkError{URL: "https://example.com", Err: tt.err}
			assert.Equal(t, tt.want, err.Transient())
		})
	}
}
