package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// MaxRedirects is the number of redirect hops a guarded client follows
const MaxRedirects = 10

// ErrTooManyRedirects is returned once MaxRedirects is exceeded
var ErrTooManyRedirects = errors.New("too many redirects")

// CheckRedirect returns an http.Client CheckRedirect hook that validates every hop
// against the same policy as the original URL.
func (g *Guard) CheckRedirect(opts Options) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= MaxRedirects {
			return ErrTooManyRedirects
		}
		if _, err := g.ValidateURL(req.Context(), req.URL.String(), opts); err != nil {
			return fmt.Errorf("redirect to %s rejected: %w", redactURL(req.URL.String()), err)
		}
		return nil
	}
}

// DialContext returns a dial function that resolves the target once, checks every
// address and connects to an allowed one. This closes the gap between validation and
// connection that DNS rebinding relies on.
func (g *Guard) DialContext(opts Options) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		var ips []net.IP
		if isLocalhostName(host) {
			if !opts.AllowLocalhost {
				return nil, g.block(addr, ReasonLocalhostBlocked, fmt.Sprintf("access to %s is not allowed", host))
			}
		}

		if ip := net.ParseIP(host); ip != nil {
			ips = []net.IP{ip}
		} else {
			ips, err = g.resolve(ctx, host)
			if err != nil {
				return nil, g.block(addr, ReasonDNSFailure, fmt.Sprintf("could not resolve %s: %v", host, err))
			}
		}

		if reason, msg := checkAddrs(ips, opts); reason != "" {
			return nil, g.block(addr, reason, msg)
		}

		var lastErr error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}
