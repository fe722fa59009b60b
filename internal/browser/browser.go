// Package browser detects a headless Chromium-family browser and uses it to render
// JavaScript heavy pages.
package browser

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sammcj/md-server/internal/cache"
	"github.com/sammcj/md-server/internal/security"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultProbeTTL is how long an availability result is reused
	DefaultProbeTTL = 10 * time.Minute

	probeTimeout = 5 * time.Second
	probeKey     = "browser"

	// maxDOMSize caps the rendered document read from the browser
	maxDOMSize = 20 * 1024 * 1024
)

// DefaultCandidates are the executable names searched on PATH
var DefaultCandidates = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"headless-shell",
}

// Checker probes for a usable browser and caches the answer
type Checker struct {
	candidates []string
	lookPath   func(string) (string, error)
	run        func(ctx context.Context, path string, args ...string) ([]byte, error)
	probes     *cache.Cache[string]
	logger     *logrus.Logger
}

// Option configures a Checker
type Option func(*Checker)

// WithCandidates replaces the executables searched for. An explicit path may be given.
func WithCandidates(candidates ...string) Option {
	return func(c *Checker) {
		if len(candidates) > 0 {
			c.candidates = candidates
		}
	}
}

// WithProbeTTL changes how long a probe result is cached
func WithProbeTTL(ttl time.Duration) Option {
	return func(c *Checker) {
		c.probes = cache.NewCache[string](ttl)
	}
}

// NewChecker creates a Checker
func NewChecker(logger *logrus.Logger, opts ...Option) *Checker {
	c := &Checker{
		candidates: DefaultCandidates,
		lookPath:   exec.LookPath,
		run:        runCommand,
		probes:     cache.NewCache[string](DefaultProbeTTL),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAvailable reports whether a browser can be started. The probe runs at most once per TTL.
func (c *Checker) IsAvailable() bool {
	return c.Path() != ""
}

// Path returns the executable used for rendering, or "" when none works
func (c *Checker) Path() string {
	if path, ok := c.probes.Get(probeKey); ok {
		return path
	}

	path := c.probe()
	c.probes.Set(probeKey, path)
	return path
}

func (c *Checker) probe() string {
	for _, candidate := range c.candidates {
		path, err := c.lookPath(candidate)
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		out, err := c.run(ctx, path, "--headless", "--version")
		cancel()
		if err != nil {
			c.logger.WithError(err).WithField("path", path).Debug("Browser found but failed to start")
			continue
		}

		c.logger.WithFields(logrus.Fields{
			"path":    path,
			"version": strings.TrimSpace(string(out)),
		}).Info("Browser available for JavaScript rendering")
		return path
	}

	c.logger.Info("No headless browser found, JavaScript rendering disabled")
	return ""
}

// Pinner validates a URL and returns the address the browser must use for its host
type Pinner interface {
	Pin(ctx context.Context, raw string, opts security.Options) (*security.Pin, error)
}

// Renderer loads a page in the headless browser and returns the DOM after scripts ran
type Renderer struct {
	checker    *Checker
	pinner     Pinner
	pinOptions security.Options
	run        func(ctx context.Context, path string, args ...string) ([]byte, error)
	logger     *logrus.Logger
}

// NewRenderer creates a Renderer backed by checker. Every page is validated by pinner
// and the browser may only reach the address it returned.
func NewRenderer(checker *Checker, pinner Pinner, opts security.Options, logger *logrus.Logger) *Renderer {
	return &Renderer{checker: checker, pinner: pinner, pinOptions: opts, run: runCommand, logger: logger}
}

// Render returns the rendered HTML of pageURL. The browser process is killed when ctx ends.
func (r *Renderer) Render(ctx context.Context, pageURL string) (string, error) {
	path := r.checker.Path()
	if path == "" {
		return "", fmt.Errorf("no headless browser available")
	}
	if r.pinner == nil {
		return "", fmt.Errorf("browser rendering requires a URL guard")
	}

	pin, err := r.pinner.Pin(ctx, pageURL, r.pinOptions)
	if err != nil {
		return "", err
	}

	start := time.Now()
	out, err := r.run(ctx, path,
		"--headless",
		"--disable-gpu",
		"--disable-extensions",
		"--no-first-run",
		// Direct connections only, a proxy would resolve names outside the pinning
		"--no-proxy-server",
		"--host-resolver-rules="+pin.HostResolverRules(),
		"--virtual-time-budget=5000",
		"--dump-dom",
		pin.URL,
	)
	if err != nil {
		return "", fmt.Errorf("browser render failed: %w", err)
	}
	if len(out) > maxDOMSize {
		out = out[:maxDOMSize]
	}

	r.logger.WithFields(logrus.Fields{
		"host":       pin.Host,
		"bytes":      len(out),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("Rendered page with browser")

	return string(out), nil
}

func runCommand(ctx context.Context, path string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	return cmd.Output()
}
