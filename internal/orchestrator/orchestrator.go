// Package orchestrator runs a single conversion request end to end: classification,
// validation, delegation to the converter with a deadline and bounded retries, then post
// processing. Every failure leaves this package as a taxonomy error.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sammcj/md-server/internal/classify"
	"github.com/sammcj/md-server/internal/converter"
	"github.com/sammcj/md-server/internal/detection"
	"github.com/sammcj/md-server/internal/limits"
	"github.com/sammcj/md-server/internal/metrics"
	"github.com/sammcj/md-server/internal/security"
	"github.com/sammcj/md-server/internal/taxonomy"
)

const (
	// DefaultTimeout applies when neither the request nor the config sets one
	DefaultTimeout = 30 * time.Second

	// WarnJSUnavailable is attached when render_js was requested without a browser
	WarnJSUnavailable = "JavaScript rendering unavailable; converted without it"
)

// URLValidator decides whether a URL may be fetched
type URLValidator interface {
	ValidateURL(ctx context.Context, raw string, opts security.Options) (string, error)
}

// Availability reports whether JavaScript rendering can be used
type Availability interface {
	IsAvailable() bool
}

// Config wires the collaborators of an Orchestrator
type Config struct {
	Policy       *limits.Policy
	Guard        URLValidator
	GuardOptions security.Options
	Converter    converter.Converter
	Browser      Availability
	Metrics      metrics.Sink
	Logger       *logrus.Logger
	// Timeout is the default deadline and the ceiling for per request timeouts
	Timeout      time.Duration
	Retry        RetryPolicy
}

// Orchestrator converts classified requests. It is safe for concurrent use.
type Orchestrator struct {
	policy       *limits.Policy
	guard        URLValidator
	guardOptions security.Options
	converter    converter.Converter
	browser      Availability
	metrics      metrics.Sink
	logger       *logrus.Logger
	timeout      time.Duration
	retry        RetryPolicy
	// detect is swapped in tests
	detect       func(data []byte, filename string) string
}

// New creates an Orchestrator, filling unset fields with defaults
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		policy:       cfg.Policy,
		guard:        cfg.Guard,
		guardOptions: cfg.GuardOptions,
		converter:    cfg.Converter,
		browser:      cfg.Browser,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		timeout:      cfg.Timeout,
		retry:        cfg.Retry,
		detect:       detection.DetectWithHint,
	}
	if o.policy == nil {
		o.policy = limits.DefaultPolicy()
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop{}
	}
	if o.logger == nil {
		o.logger = logrus.New()
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	if o.retry.MaxAttempts <= 0 {
		o.retry = DefaultRetryPolicy()
	}
	return o
}

// Policy returns the size policy in use
func (o *Orchestrator) Policy() *limits.Policy {
	return o.policy
}

// job is the validated work handed to the converter
type job struct {
	input    *classify.Input
	info     converter.StreamInfo
	renderJS bool
	timeout  time.Duration
}

// Convert runs req to completion. The returned Outcome always carries either markdown or
// a taxonomy error.
func (o *Orchestrator) Convert(ctx context.Context, req *classify.Request) *Outcome {
	start := time.Now()
	out := newOutcome()

	in, err := classify.Classify(req)
	if err != nil {
		out.Err = taxonomy.Wrap(err)
		o.record(ctx, out, "unknown", start, 0)
		return out
	}

	timeout := o.effectiveTimeout(in.Options.Timeout)
	out.Metadata.Source = in.SourceLabel()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	j, err := o.validate(ctx, in, &out.Metadata)
	if err != nil {
		out.Err = toTaxonomy(err, in, timeout)
		o.record(ctx, out, sourceTypeFor(in, ""), start, 0)
		return out
	}
	j.timeout = timeout

	result, attempts, err := o.delegate(ctx, j)
	if err != nil {
		out.Err = toTaxonomy(err, in, timeout)
		o.logger.WithFields(logrus.Fields{
			"source":   in.SourceLabel(),
			"mode":     in.Mode,
			"code":     out.Err.Code(),
			"attempts": attempts,
		}).Warn("Conversion failed")
		o.record(ctx, out, sourceTypeFor(in, j.info.MIMEType), start, attempts)
		return out
	}

	o.finish(out, in, j, result)
	out.Metadata.Attempts = attempts
	out.Metadata.ConversionTimeMS = time.Since(start).Milliseconds()
	o.record(ctx, out, out.Metadata.SourceType, start, attempts)
	return out
}

// effectiveTimeout applies the configured timeout when the request sets none and caps
// longer requests at it, so the deadline always fires before the server write timeout
func (o *Orchestrator) effectiveTimeout(requested time.Duration) time.Duration {
	switch {
	case requested <= 0:
		return o.timeout
	case requested > o.timeout:
		o.logger.WithFields(logrus.Fields{
			"requested": requested,
			"limit":     o.timeout,
		}).Debug("Requested timeout above the configured maximum, capping")
		return o.timeout
	}
	return requested
}

// validate runs the guards for the input mode and builds the converter job
func (o *Orchestrator) validate(ctx context.Context, in *classify.Input, meta *Metadata) (*job, error) {
	if in.Mode == classify.ModeURL {
		return o.validateURL(ctx, in, meta)
	}
	return o.validateBytes(in)
}

func (o *Orchestrator) validateURL(ctx context.Context, in *classify.Input, meta *Metadata) (*job, error) {
	if o.guard != nil {
		validated, err := o.guard.ValidateURL(ctx, in.URL, o.guardOptions)
		if err != nil {
			return nil, err
		}
		in.URL = validated
	}

	renderJS := in.Options.RenderJS
	if renderJS && (o.browser == nil || !o.browser.IsAvailable()) {
		renderJS = false
		meta.warn(WarnJSUnavailable)
		o.logger.WithField("url", in.URL).Info("JavaScript rendering requested but no browser is available")
	}

	return &job{
		input:    in,
		info:     converter.StreamInfo{URL: in.URL},
		renderJS: renderJS,
	}, nil
}

func (o *Orchestrator) validateBytes(in *classify.Input) (*job, error) {
	size := int64(len(in.Data))

	// A declared type is checked before detection so oversized bytes are never parsed
	if in.DeclaredType != "" {
		if err := o.policy.Check(size, in.DeclaredType); err != nil {
			return nil, err
		}
	}

	detected := o.detect(in.Data, in.Filename)
	if in.DeclaredType == "" {
		if err := o.policy.Check(size, detected); err != nil {
			return nil, err
		}
	}

	effective := detected
	if in.DeclaredType != "" {
		validated, err := detection.ValidateContentType(in.Data, in.DeclaredType)
		if err != nil {
			return nil, err
		}
		effective = validated
		// A generic container declaration gives way to what the bytes actually are
		if effective == detection.MIMEZip && detection.IsOffice(detected) {
			effective = detected
		}
	}

	if err := unsupported(in.Data, effective); err != nil {
		return nil, err
	}

	return &job{
		input: in,
		info:  converter.NewStreamInfo(effective, in.Filename),
	}, nil
}

// unsupported rejects types no converter handles before any work is delegated
func unsupported(data []byte, mime string) error {
	switch {
	case detection.IsImage(mime):
		return taxonomy.UnsupportedFormat(mime, detection.FormatNames()).
			WithSuggestions("Image OCR is not supported, extract the text first")
	case mime == detection.MIMEOctetStream || mime == detection.MIMEZip:
		e := taxonomy.UnsupportedFormat(mime, detection.FormatNames())
		if bytes.HasPrefix(data, []byte("MZ")) {
			e.Message = "Binary content (Windows executable) cannot be converted to markdown"
			e = e.WithDetail("binary_type", "windows_executable")
		}
		return e
	case !detection.IsSupported(mime):
		return taxonomy.UnsupportedFormat(mime, detection.FormatNames())
	}
	return nil
}

// delegate calls the converter under the request deadline, retrying transient failures.
// A call still running when the deadline fires is abandoned; its result is discarded.
func (o *Orchestrator) delegate(ctx context.Context, j *job) (*converter.Result, int, error) {
	var lastErr error

	for attempt := 0; attempt < o.retry.MaxAttempts; attempt++ {
		result, err := o.attempt(ctx, j)
		if err == nil {
			return result, attempt + 1, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == o.retry.MaxAttempts-1 {
			return nil, attempt + 1, err
		}

		delay := o.retry.Delay(attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			o.logger.WithField("delay", delay).Debug("Not retrying, deadline is closer than the backoff delay")
			return nil, attempt + 1, err
		}

		o.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay":   delay,
			"error":   err.Error(),
		}).Info("Retrying transient conversion failure")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt + 1, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, o.retry.MaxAttempts, lastErr
}

type attemptResult struct {
	result *converter.Result
	err    error
}

func (o *Orchestrator) attempt(ctx context.Context, j *job) (*converter.Result, error) {
	if o.converter == nil {
		return nil, errors.New("no converter configured")
	}

	done := make(chan attemptResult, 1)
	go func() {
		var r attemptResult
		if j.input.Mode == classify.ModeURL {
			r.result, r.err = o.converter.ConvertURL(ctx, j.input.URL, j.renderJS)
		} else {
			r.result, r.err = o.converter.Convert(ctx, j.input.Data, j.info)
		}
		done <- r
	}()

	select {
	case r := <-done:
		if r.err == nil && r.result == nil {
			return nil, errors.New("converter returned no result")
		}
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finish applies post processing and fills the metadata of a successful conversion
func (o *Orchestrator) finish(out *Outcome, in *classify.Input, j *job, result *converter.Result) {
	markdown := result.Markdown
	if in.Options.CleanMarkdown {
		markdown = CleanMarkdown(markdown)
	}

	mime := result.MIMEType
	if mime == "" {
		mime = j.info.MIMEType
	}

	out.Metadata.SourceType = sourceTypeFor(in, mime)
	out.Metadata.DetectedFormat = mime
	out.Metadata.Title = result.Title
	out.Metadata.SourceSize = result.SourceSize
	if out.Metadata.SourceSize == 0 {
		out.Metadata.SourceSize = len(in.Data)
	}

	if strings.TrimSpace(markdown) == "" {
		out.Err = o.contentEmpty(in, j)
		return
	}

	if truncated, cut := Truncate(markdown, in.Options.MaxLength); cut {
		out.Metadata.warn("Content truncated to " + strconv.Itoa(in.Options.MaxLength) + " characters")
		markdown = truncated
	}

	out.Markdown = markdown
	out.Metadata.MarkdownSize = len(markdown)
}

// contentEmpty only suggests render_js for pages that were fetched without it while a
// browser is available to honour the retry
func (o *Orchestrator) contentEmpty(in *classify.Input, j *job) *taxonomy.Error {
	if in.Mode != classify.ModeURL {
		label := in.SourceLabel()
		if in.Filename == "" {
			label += " input"
		}
		return taxonomy.ContentEmpty(label, false)
	}
	suggestJS := !j.renderJS && o.browser != nil && o.browser.IsAvailable()
	return taxonomy.ContentEmpty(in.URL, suggestJS)
}

func (o *Orchestrator) record(ctx context.Context, out *Outcome, sourceType string, start time.Time, attempts int) {
	ev := metrics.Event{
		SourceType: sourceType,
		Success:    out.Err == nil,
		Duration:   time.Since(start),
		Attempts:   attempts,
	}
	if out.Err != nil {
		ev.ErrorCode = out.Err.Code()
	}
	o.metrics.Record(context.WithoutCancel(ctx), ev)
}

// sourceTypeFor names the source for metadata and metrics, e.g. "url", "pdf" or "text"
func sourceTypeFor(in *classify.Input, mime string) string {
	if in == nil {
		return "unknown"
	}
	if in.Mode == classify.ModeURL {
		return "url"
	}
	if mime == "" {
		return string(in.Mode)
	}
	return detection.SourceType(mime)
}
