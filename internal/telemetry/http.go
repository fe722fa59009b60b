package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WrapHTTPTransport adds client request metrics to transport when metrics are exported.
// The transport's own proxy and dialer settings are kept.
func WrapHTTPTransport(transport http.RoundTripper) http.RoundTripper {
	if !IsMetricsEnabled() {
		return transport
	}
	return otelhttp.NewTransport(transport)
}

// WrapHandler instruments an inbound handler when metrics are exported
func WrapHandler(handler http.Handler, operation string) http.Handler {
	if !IsMetricsEnabled() {
		return handler
	}
	return otelhttp.NewHandler(handler, operation)
}
