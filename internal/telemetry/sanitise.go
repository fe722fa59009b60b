package telemetry

import (
	"net/url"
	"strings"
)

// URL query parameters that might contain secrets
var sensitiveQueryParams = map[string]bool{
	"api_key":      true,
	"apikey":       true,
	"token":        true,
	"access_token": true,
	"secret":       true,
	"key":          true,
	"password":     true,
	"auth":         true,
	"signature":    true,
	"sig":          true,
}

// SanitiseURL removes credentials and sensitive query parameters so a URL can be logged
func SanitiseURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" {
		return "[INVALID_URL]"
	}

	parsedURL.User = nil

	if parsedURL.RawQuery != "" {
		query := parsedURL.Query()
		for key := range query {
			keyLower := strings.ToLower(key)
			if sensitiveQueryParams[keyLower] || strings.Contains(keyLower, "key") || strings.Contains(keyLower, "token") {
				query.Set(key, "[REDACTED]")
			}
		}
		parsedURL.RawQuery = query.Encode()
	}

	return parsedURL.String()
}
