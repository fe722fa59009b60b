package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sammcj/md-server/internal/browser"
	"github.com/sammcj/md-server/internal/config"
	"github.com/sammcj/md-server/internal/converter"
	"github.com/sammcj/md-server/internal/fetch"
	"github.com/sammcj/md-server/internal/limits"
	"github.com/sammcj/md-server/internal/metrics"
	"github.com/sammcj/md-server/internal/orchestrator"
	"github.com/sammcj/md-server/internal/security"
	"github.com/sammcj/md-server/internal/telemetry"
)

// services is the conversion pipeline shared by the HTTP API and the MCP tools
type services struct {
	Policy       *limits.Policy
	Guard        *security.Guard
	Counters     *metrics.Counters
	Orchestrator *orchestrator.Orchestrator
	shutdown     func() error
	logger       *logrus.Logger
}

func buildServices(settings config.Settings, logger *logrus.Logger) (*services, error) {
	policy, err := settings.Policy()
	if err != nil {
		return nil, fmt.Errorf("failed to build size policy: %w", err)
	}

	shutdown, err := telemetry.InitMetrics(logger, Version)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialise metrics export, continuing without it")
		shutdown = func() error { return nil }
	}

	counters := metrics.NewCounters()
	sinks := metrics.Multi{counters}
	if telemetry.IsMetricsEnabled() {
		sink, err := telemetry.NewSink(logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to create metric instruments")
		} else {
			sinks = append(sinks, sink)
		}
	}

	guard := security.NewGuard(logger, security.WithDNSTimeout(settings.DNSTimeout))
	guardOptions := settings.GuardOptions()

	fetcher := fetch.NewClient(logger, guard, guardOptions, fetch.Config{
		Timeout:           settings.Timeout,
		MaxContentSize:    policy.MaxLimit(),
		SizeLimit:         policy.Limit,
		RequestsPerSecond: settings.FetchRPS,
		Burst:             settings.FetchBurst,
		UserAgent:         settings.FetchUserAgent,
	})

	var (
		availability orchestrator.Availability = unavailable{}
		renderer     converter.Renderer
	)
	if !settings.DisableBrowser {
		var opts []browser.Option
		if settings.Browser != "" {
			opts = append(opts, browser.WithCandidates(settings.Browser))
		}
		checker := browser.NewChecker(logger, opts...)
		availability = checker
		renderer = browser.NewRenderer(checker, guard, guardOptions, logger)
	}

	engine := converter.NewEngine(logger, converter.DefaultRegistry(), fetcher, renderer)

	orch := orchestrator.New(orchestrator.Config{
		Policy:       policy,
		Guard:        guard,
		GuardOptions: guardOptions,
		Converter:    engine,
		Browser:      availability,
		Metrics:      sinks,
		Logger:       logger,
		Timeout:      settings.Timeout,
		Retry: orchestrator.RetryPolicy{
			MaxAttempts: settings.RetryAttempts,
			BaseDelay:   settings.RetryDelay,
			MaxDelay:    10 * settings.RetryDelay,
		},
	})

	return &services{
		Policy:       policy,
		Guard:        guard,
		Counters:     counters,
		Orchestrator: orch,
		shutdown:     shutdown,
		logger:       logger,
	}, nil
}

// Close flushes exported metrics
func (s *services) Close() {
	if err := s.shutdown(); err != nil {
		s.logger.WithError(err).Debug("Metrics shutdown failed")
	}
}

// unavailable is used when the browser is disabled
type unavailable struct{}

func (unavailable) IsAvailable() bool { return false }
