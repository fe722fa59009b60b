package taxonomy

import (
	"fmt"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/sammcj/md-server/internal/limits"
)

// Timeout reports an operation that exceeded its deadline
func Timeout(operation string, timeout time.Duration) *Error {
	seconds := timeout.Seconds()
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("Operation '%s' timed out after %s seconds", operation, formatSeconds(seconds)),
		Suggestions: []string{
			"Increase timeout in options",
			"Try with a smaller file",
			"Check if the source is responding slowly",
		},
		Details: map[string]any{"operation": operation, "timeout_seconds": seconds},
	}
}

// ConnectionFailed reports a network failure while reaching url
func ConnectionFailed(url, reason string) *Error {
	return &Error{
		Kind:    KindConnectionFailed,
		Message: fmt.Sprintf("Failed to connect to %s: %s", url, reason),
		Suggestions: []string{
			"Check that the URL is reachable from the server",
			"Verify the hostname and port are correct",
			"Try again later if the site is temporarily unavailable",
		},
		Details: map[string]any{"url": url, "reason": reason},
	}
}

// NotFound reports a 404 from the remote server
func NotFound(url string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("Resource not found: %s", url),
		Suggestions: []string{
			"Check the URL for typos",
			"Verify the page still exists",
		},
		Details: map[string]any{"url": url, "status_code": 404},
	}
}

// AccessDenied reports a remote server refusing access
func AccessDenied(url string, status int) *Error {
	return &Error{
		Kind:    KindAccessDenied,
		Message: fmt.Sprintf("Access denied to %s (HTTP %d)", url, status),
		Suggestions: []string{
			"Use a public URL that does not require authentication",
			"The site may block automated requests",
		},
		Details: map[string]any{"url": url, "status_code": status},
	}
}

// InvalidURL reports an unusable URL
func InvalidURL(url, reason string) *Error {
	return &Error{
		Kind:    KindInvalidURL,
		Message: fmt.Sprintf("Invalid URL '%s': %s", url, reason),
		Suggestions: []string{
			"Use a complete URL starting with http:// or https://",
			"Check the URL for typos",
		},
		Details: map[string]any{"url": url},
	}
}

// Blocked reports a URL rejected by the outbound request policy
func Blocked(url, reason, message string) *Error {
	e := InvalidURL(url, message).WithDetail("reason", reason)
	switch reason {
	case "private_ip_range", "dangerous_ip_range", "localhost_blocked":
		e.Suggestions = []string{
			"Use a public URL",
			"Avoid private IP addresses and internal hostnames",
		}
	case "dns_failure":
		e.Suggestions = []string{
			"Check that the hostname exists",
			"Verify DNS is reachable from the server",
		}
	}
	return e
}

// UnsupportedFormat reports a format that cannot be converted
func UnsupportedFormat(format string, supported []string) *Error {
	return &Error{
		Kind:    KindUnsupportedFormat,
		Message: fmt.Sprintf("Unsupported format: %s", format),
		Suggestions: []string{
			fmt.Sprintf("Supported formats: %s", strings.Join(supported, ", ")),
			"Check supported formats at /formats",
		},
		Details: map[string]any{"format": format, "supported_formats": supported},
	}
}

// FileTooLarge reports a payload above its size ceiling, sizes in bytes
func FileTooLarge(size, limit int64, contentType string) *Error {
	return &Error{
		Kind: KindFileTooLarge,
		Message: fmt.Sprintf("File size %.1fMB (%d bytes) exceeds limit of %sMB (%d bytes) for %s",
			float64(size)/float64(limits.MB), size, limits.FormatMB(limit), limit, contentType),
		Suggestions: []string{
			"Use a smaller file",
			"Split the document into parts",
			"Check size limits at /formats",
		},
		Details: map[string]any{"size_bytes": size, "limit_bytes": limit, "content_type": contentType},
	}
}

// ConversionFailed is the catch-all for converter failures
func ConversionFailed(reason string) *Error {
	return &Error{
		Kind:    KindConversionFailed,
		Message: fmt.Sprintf("Conversion failed: %s", reason),
		Suggestions: []string{
			"Check that the file is not corrupted",
			"Try a different format of the same document",
		},
	}
}

// ContentEmpty reports a conversion that produced no text. suggestJS offers a retry with
// JavaScript rendering, which only helps for pages that have not been rendered yet and
// only when a browser is available.
func ContentEmpty(source string, suggestJS bool) *Error {
	suggestions := []string{"Check that the source has text content"}
	if suggestJS {
		suggestions = append([]string{"Retry with render_js enabled, the page may load content with JavaScript"}, suggestions...)
	} else {
		suggestions = append(suggestions, "The content may be behind a login or stored in an unsupported way")
	}
	return &Error{
		Kind:        KindContentEmpty,
		Message:     fmt.Sprintf("No content could be extracted from %s", source),
		Suggestions: suggestions,
		Details:     map[string]any{"source": source, "render_js_suggested": suggestJS},
	}
}

// InvalidInput reports a malformed request
func InvalidInput(message string) *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Message: message,
		Suggestions: []string{
			"Provide exactly one of: url, text, content, a file upload or a raw body",
			"Check the request format in the API documentation",
		},
	}
}

// ContentMismatch reports bytes that contradict the declared content type
func ContentMismatch(declared, detected string) *Error {
	return &Error{
		Kind:    KindInvalidContent,
		Message: fmt.Sprintf("Content type mismatch: declared %s but content is %s", declared, detected),
		Suggestions: []string{
			"Ensure file matches declared content type",
			"Omit the content type to let the server detect it",
		},
		Details: map[string]any{"declared_type": declared, "detected_type": detected},
	}
}

// UnknownOperation reports a call to an operation that does not exist
func UnknownOperation(name string, valid []string) *Error {
	suggestions := []string{fmt.Sprintf("Available operations: %s", strings.Join(valid, ", "))}
	if matches := fuzzy.Find(name, valid); len(matches) > 0 {
		suggestions = append([]string{fmt.Sprintf("Did you mean '%s'?", matches[0].Str)}, suggestions...)
	}
	return &Error{
		Kind:        KindUnknownOperation,
		Message:     fmt.Sprintf("Unknown operation: %s", name),
		Suggestions: suggestions,
		Details:     map[string]any{"name": name, "available": valid},
	}
}

func formatSeconds(seconds float64) string {
	if seconds == float64(int64(seconds)) {
		return fmt.Sprintf("%d", int64(seconds))
	}
	return fmt.Sprintf("%.1f", seconds)
}
