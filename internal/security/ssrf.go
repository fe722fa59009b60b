package security

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Reason identifies why a URL was blocked
type Reason string

// Block reasons
const (
	ReasonInvalidScheme    Reason = "invalid_scheme"
	ReasonMissingHostname  Reason = "missing_hostname"
	ReasonLocalhostBlocked Reason = "localhost_blocked"
	ReasonPrivateIPRange   Reason = "private_ip_range"
	ReasonDangerousIPRange Reason = "dangerous_ip_range"
	ReasonDNSFailure       Reason = "dns_failure"
)

// DefaultDNSTimeout bounds a single hostname lookup
const DefaultDNSTimeout = 3 * time.Second

// dangerousCIDRs are blocked even before private ranges; 169.254/16 hosts cloud metadata endpoints
var dangerousCIDRs = []*net.IPNet{
	mustParseCIDR("169.254.0.0/16"),
	mustParseCIDR("0.0.0.0/8"),
	mustParseCIDR("fe80::/10"),
	mustParseCIDR("::/128"),
}

var privateCIDRs = []*net.IPNet{
	mustParseCIDR("10.0.0.0/8"),
	mustParseCIDR("172.16.0.0/12"),
	mustParseCIDR("192.168.0.0/16"),
	mustParseCIDR("fc00::/7"),
}

var loopbackCIDRs = []*net.IPNet{
	mustParseCIDR("127.0.0.0/8"),
	mustParseCIDR("::1/128"),
}

func mustParseCIDR(value string) *net.IPNet {
	_, parsed, err := net.ParseCIDR(value)
	if err != nil {
		panic(fmt.Sprintf("invalid CIDR %q: %v", value, err))
	}
	return parsed
}

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Options are the per call policy flags
type Options struct {
	// AllowLocalhost permits localhost and loopback addresses
	AllowLocalhost bool
	// AllowPrivateNetworks permits RFC1918 and link-local targets, for trusted deployments only
	AllowPrivateNetworks bool
}

// DefaultOptions allows localhost and blocks private networks
func DefaultOptions() Options {
	return Options{AllowLocalhost: true}
}

// BlockedError is returned when a URL violates the SSRF policy
type BlockedError struct {
	URL     string
	Reason  Reason
	Message string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("URL blocked (%s): %s", e.Reason, e.Message)
}

// InvalidURLError is returned when a URL is empty or cannot be parsed
type InvalidURLError struct {
	URL     string
	Message string
}

func (e *InvalidURLError) Error() string {
	return e.Message
}

// Guard validates user supplied URLs before any request is made to them
type Guard struct {
	resolver   Resolver
	dnsTimeout time.Duration
	logger     *logrus.Logger
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithResolver replaces the system DNS resolver
func WithResolver(r Resolver) GuardOption {
	return func(g *Guard) {
		g.resolver = r
	}
}

// WithDNSTimeout sets the timeout applied to each lookup
func WithDNSTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.dnsTimeout = d
		}
	}
}

// NewGuard creates a Guard using the system resolver unless overridden
func NewGuard(logger *logrus.Logger, opts ...GuardOption) *Guard {
	g := &Guard{
		resolver:   net.DefaultResolver,
		dnsTimeout: DefaultDNSTimeout,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logrus.New()
	}
	return g
}

// Pin is an allowed URL together with the address its host was validated against
type Pin struct {
	URL  string
	Host string
	IP   net.IP
}

// HostResolverRules renders the pin as a Chromium --host-resolver-rules value. The
// validated host resolves to the checked address and every other name fails, so a
// browser cannot be redirected or rebound to an address the guard never saw.
func (p *Pin) HostResolverRules() string {
	target := p.IP.String()
	if p.IP.To4() == nil {
		target = "[" + target + "]"
	}
	return fmt.Sprintf("MAP %s %s, MAP * ~NOTFOUND", p.Host, target)
}

// ValidateURL checks raw against the scheme, hostname and resolved address policy and
// returns the trimmed URL unchanged when it is allowed. Results are never cached since
// DNS answers and options change between calls.
func (g *Guard) ValidateURL(ctx context.Context, raw string, opts Options) (string, error) {
	pin, err := g.Pin(ctx, raw, opts)
	if err != nil {
		return "", err
	}
	return pin.URL, nil
}

// Pin validates raw like ValidateURL and also returns the allowed address for its host,
// for clients that do their own DNS and must be held to the validated answer.
func (g *Guard) Pin(ctx context.Context, raw string, opts Options) (*Pin, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &InvalidURLError{URL: raw, Message: "URL cannot be empty"}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, &InvalidURLError{URL: trimmed, Message: "Invalid URL format"}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, g.block(trimmed, ReasonInvalidScheme, fmt.Sprintf("scheme %q is not allowed, only http and https are supported", parsed.Scheme))
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, g.block(trimmed, ReasonMissingHostname, "URL has no hostname")
	}

	if isLocalhostName(host) {
		if !opts.AllowLocalhost {
			return nil, g.block(trimmed, ReasonLocalhostBlocked, fmt.Sprintf("access to %s is not allowed", host))
		}
		return &Pin{URL: trimmed, Host: host, IP: net.IPv4(127, 0, 0, 1)}, nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if reason, msg := checkIP(ip, opts); reason != "" {
			return nil, g.block(trimmed, reason, msg)
		}
		return &Pin{URL: trimmed, Host: host, IP: ip}, nil
	}

	addrs, err := g.resolve(ctx, host)
	if err != nil {
		return nil, g.block(trimmed, ReasonDNSFailure, fmt.Sprintf("could not resolve %s: %v", host, err))
	}

	if reason, msg := checkAddrs(addrs, opts); reason != "" {
		return nil, g.block(trimmed, reason, msg)
	}

	return &Pin{URL: trimmed, Host: host, IP: addrs[0]}, nil
}

// resolve looks up host under the guard's own DNS timeout
func (g *Guard) resolve(ctx context.Context, host string) ([]net.IP, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, g.dnsTimeout)
	defer cancel()

	addrs, err := g.resolver.LookupIPAddr(lookupCtx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses found")
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		ips = append(ips, addr.IP)
	}
	return ips, nil
}

func (g *Guard) block(rawURL string, reason Reason, message string) error {
	g.logger.WithFields(logrus.Fields{
		"url":    redactURL(rawURL),
		"reason": reason,
	}).Warn("Blocked URL")
	return &BlockedError{URL: rawURL, Reason: reason, Message: message}
}

// checkAddrs applies the range policy to all resolved addresses. A dangerous address
// anywhere in the answer wins over a private one.
func checkAddrs(ips []net.IP, opts Options) (Reason, string) {
	var first Reason
	var firstMsg string
	for _, ip := range ips {
		reason, msg := checkIP(ip, opts)
		if reason == ReasonDangerousIPRange {
			return reason, msg
		}
		if reason != "" && first == "" {
			first, firstMsg = reason, msg
		}
	}
	return first, firstMsg
}

// checkIP returns the block reason for a single address, or "" when it is allowed
func checkIP(ip net.IP, opts Options) (Reason, string) {
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}

	if inRanges(ip, loopbackCIDRs) {
		if !opts.AllowLocalhost {
			return ReasonLocalhostBlocked, fmt.Sprintf("loopback address %s is not allowed", ip)
		}
		return "", ""
	}

	if opts.AllowPrivateNetworks {
		return "", ""
	}

	if inRanges(ip, dangerousCIDRs) {
		return ReasonDangerousIPRange, fmt.Sprintf("address %s is in a restricted range", ip)
	}
	if inRanges(ip, privateCIDRs) {
		return ReasonPrivateIPRange, fmt.Sprintf("private address %s is not allowed", ip)
	}
	return "", ""
}

func inRanges(ip net.IP, ranges []*net.IPNet) bool {
	for _, cidr := range ranges {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

func isLocalhostName(host string) bool {
	return host == "localhost" || strings.HasSuffix(host, ".localhost")
}

// redactURL drops credentials and the query string for logging
func redactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "[invalid-url]"
	}
	parsed.User = nil
	parsed.RawQuery = ""
	return parsed.String()
}
