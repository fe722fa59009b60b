package telemetry

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sammcj/md-server/internal/metrics"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	// Metric export interval in seconds (configurable via environment variable)
	defaultMetricExportInterval = 60 * time.Second

	meterName = "md-server"
)

var (
	metricsMutex        sync.RWMutex
	globalMeterProvider *sdkmetric.MeterProvider
	metricsEnabled      bool
)

// InitMetrics initialises the OpenTelemetry meter provider when OTEL_EXPORTER_OTLP_ENDPOINT
// is set. Without it the global noop provider stays in place.
// Returns a shutdown function and an error if initialisation fails
func InitMetrics(logger *logrus.Logger, version string) (func() error, error) {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		logger.Debug("OTEL Metrics: Not configured, using noop meter")
		metricsEnabled = false
		return func() error { return nil }, nil
	}

	logger.WithField("endpoint", endpoint).Info("OTEL Metrics: Initialising meter")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var exporter sdkmetric.Exporter
	var err error

	switch protocol := getOTLPProtocol(); protocol {
	case "grpc":
		exporter, err = otlpmetricgrpc.New(ctx)
	case "http/protobuf", "http":
		exporter, err = otlpmetrichttp.New(ctx)
	default:
		logger.WithField("protocol", protocol).Warn("OTEL Metrics: Unknown protocol, defaulting to http")
		exporter, err = otlpmetrichttp.New(ctx)
	}
	if err != nil {
		logger.WithError(err).Warn("OTEL Metrics: Failed to create exporter, falling back to noop meter")
		return func() error { return nil }, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(getServiceName()),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithFromEnv(),
	)
	if err != nil {
		logger.WithError(err).Warn("OTEL Metrics: Failed to create resource, using default")
		res = resource.Default()
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(getMetricExportInterval(logger)),
		)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(meterProvider)
	globalMeterProvider = meterProvider
	metricsEnabled = true

	logger.Info("OTEL Metrics: Meter initialised successfully")

	return func() error {
		metricsMutex.Lock()
		defer metricsMutex.Unlock()

		if globalMeterProvider == nil {
			return nil
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := globalMeterProvider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("OTEL Metrics: Failed to shutdown meter provider")
			return err
		}
		logger.Debug("OTEL Metrics: Meter provider shutdown successfully")
		return nil
	}, nil
}

// IsMetricsEnabled returns true if metrics are exported
func IsMetricsEnabled() bool {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	return metricsEnabled
}

// Sink records conversion events as OpenTelemetry instruments
type Sink struct {
	conversions metric.Int64Counter
	duration    metric.Float64Histogram
	errors      metric.Int64Counter
	attempts    metric.Int64Histogram
}

// NewSink creates the conversion instruments on the current global meter provider.
// Call it after InitMetrics.
func NewSink(logger *logrus.Logger) (*Sink, error) {
	meter := otel.GetMeterProvider().Meter(meterName)
	s := &Sink{}
	var err error

	s.conversions, err = meter.Int64Counter(
		"md.conversions",
		metric.WithDescription("Total conversions by source type and result"),
		metric.WithUnit("{conversion}"),
	)
	if err != nil {
		logger.WithError(err).Error("OTEL Metrics: Failed to create md.conversions counter")
		return nil, err
	}

	s.duration, err = meter.Float64Histogram(
		"md.conversion.duration",
		metric.WithDescription("Conversion duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000),
	)
	if err != nil {
		logger.WithError(err).Error("OTEL Metrics: Failed to create md.conversion.duration histogram")
		return nil, err
	}

	s.errors, err = meter.Int64Counter(
		"md.conversion.errors",
		metric.WithDescription("Failed conversions by error code"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.WithError(err).Error("OTEL Metrics: Failed to create md.conversion.errors counter")
		return nil, err
	}

	s.attempts, err = meter.Int64Histogram(
		"md.conversion.attempts",
		metric.WithDescription("Converter attempts per conversion including retries"),
		metric.WithUnit("{attempt}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5),
	)
	if err != nil {
		logger.WithError(err).Error("OTEL Metrics: Failed to create md.conversion.attempts histogram")
		return nil, err
	}

	return s, nil
}

// Record implements metrics.Sink
func (s *Sink) Record(ctx context.Context, ev metrics.Event) {
	result := "success"
	if !ev.Success {
		result = "error"
	}

	s.conversions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source.type", ev.SourceType),
		attribute.String("result", result),
	))
	s.duration.Record(ctx, float64(ev.Duration.Milliseconds()), metric.WithAttributes(
		attribute.String("source.type", ev.SourceType),
	))
	if ev.Attempts > 0 {
		s.attempts.Record(ctx, int64(ev.Attempts))
	}
	if !ev.Success && ev.ErrorCode != "" {
		s.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("error.code", ev.ErrorCode),
		))
	}
}

func getOTLPProtocol() string {
	protocol := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	if protocol == "" {
		// Check endpoint to guess protocol
		if strings.Contains(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), ":4317") {
			return "grpc"
		}
		return "http/protobuf"
	}
	return protocol
}

func getServiceName() string {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return meterName
}

func getMetricExportInterval(logger *logrus.Logger) time.Duration {
	intervalStr := os.Getenv("OTEL_METRIC_EXPORT_INTERVAL")
	if intervalStr == "" {
		return defaultMetricExportInterval
	}

	// Bare numbers are seconds
	duration, err := time.ParseDuration(intervalStr)
	if err != nil {
		duration, err = time.ParseDuration(intervalStr + "s")
		if err != nil {
			logger.WithField("interval", intervalStr).Warn("OTEL Metrics: Invalid export interval, using default")
			return defaultMetricExportInterval
		}
	}

	return duration
}
