package httpclient

import (
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ProxyEnvironmentVariables defines the order of preference for proxy environment variables
// Following standard conventions used by curl, wget, and other tools
var ProxyEnvironmentVariables = []string{
	"MD_SERVER_HTTPS_PROXY",
	"MD_SERVER_HTTP_PROXY",
	"HTTPS_PROXY",
	"https_proxy",
	"HTTP_PROXY",
	"http_proxy",
}

// NewTransport returns a cloned default transport with the proxy applied when one is configured.
// Callers layer their own dialer and instrumentation on top.
func NewTransport(logger *logrus.Logger) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ResponseHeaderTimeout = 30 * time.Second
	transport.MaxIdleConnsPerHost = 4

	proxyURL := getProxyURL()
	if proxyURL == "" {
		return transport
	}

	parsedProxy, err := url.Parse(proxyURL)
	if err != nil {
		if logger != nil {
			logger.WithError(err).WithField("proxy_url", redactProxyCredentials(proxyURL)).Warn("Failed to parse proxy URL, using direct connection")
		}
		return transport
	}

	transport.Proxy = http.ProxyURL(parsedProxy)
	if logger != nil {
		logger.WithField("proxy_url", redactProxyCredentials(proxyURL)).Debug("HTTP client configured with proxy")
	}
	return transport
}

// getProxyURL returns the first valid proxy URL from environment variables
// Returns empty string if no proxy is configured
func getProxyURL() string {
	for _, envVar := range ProxyEnvironmentVariables {
		if proxyURL := os.Getenv(envVar); proxyURL != "" {
			// Skip placeholder values that some tools use
			if proxyURL != "$HTTPS_PROXY" && proxyURL != "$HTTP_PROXY" {
				return proxyURL
			}
		}
	}
	return ""
}

// redactProxyCredentials removes credentials from proxy URL for safe logging
func redactProxyCredentials(proxyURL string) string {
	if parsed, err := url.Parse(proxyURL); err == nil {
		if parsed.User != nil {
			parsed.User = url.UserPassword("***", "***")
		}
		return parsed.String()
	}
	return "[invalid-url]"
}

// IsProxyConfigured returns true if any proxy environment variable is set
func IsProxyConfigured() bool {
	return getProxyURL() != ""
}
