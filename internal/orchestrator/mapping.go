package orchestrator

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sammcj/md-server/internal/classify"
	"github.com/sammcj/md-server/internal/converter"
	"github.com/sammcj/md-server/internal/detection"
	"github.com/sammcj/md-server/internal/fetch"
	"github.com/sammcj/md-server/internal/limits"
	"github.com/sammcj/md-server/internal/security"
	"github.com/sammcj/md-server/internal/taxonomy"
)

// toTaxonomy maps a component error onto the public error vocabulary
func toTaxonomy(err error, in *classify.Input, timeout time.Duration) *taxonomy.Error {
	if err == nil {
		return nil
	}
	if categorised, ok := taxonomy.As(err); ok {
		return categorised
	}

	source := in.SourceLabel()

	var (
		netErr      net.Error
		tooLarge    *limits.TooLargeError
		blocked     *security.BlockedError
		invalidURL  *security.InvalidURLError
		mismatch    *detection.MismatchError
		unsupported *converter.UnsupportedFormatError
		status      *fetch.StatusError
		network     *fetch.NetworkError
		conversion  *converter.ConversionError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return taxonomy.Timeout(operationName(in), timeout).WithCause(err)
	case errors.Is(err, context.Canceled):
		return taxonomy.ConversionFailed("request was cancelled").WithCause(err)
	case errors.As(err, &tooLarge):
		return taxonomy.FileTooLarge(tooLarge.Size, tooLarge.Limit, tooLarge.ContentType).WithCause(err)
	case errors.As(err, &blocked):
		return taxonomy.Blocked(blocked.URL, string(blocked.Reason), blocked.Message).WithCause(err)
	case errors.As(err, &invalidURL):
		return taxonomy.InvalidURL(invalidURL.URL, invalidURL.Message).WithCause(err)
	case errors.As(err, &mismatch):
		return taxonomy.ContentMismatch(mismatch.Declared, mismatch.Detected).WithCause(err)
	case errors.As(err, &unsupported):
		format := unsupported.MIMEType
		if format == "" {
			format = unsupported.Extension
		}
		return taxonomy.UnsupportedFormat(format, detection.FormatNames()).WithCause(err)
	case errors.As(err, &status):
		switch status.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return taxonomy.NotFound(status.URL).WithCause(err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return taxonomy.AccessDenied(status.URL, status.StatusCode).WithCause(err)
		}
		return taxonomy.ConnectionFailed(status.URL, status.Error()).
			WithDetail("status_code", status.StatusCode).WithCause(err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return taxonomy.Timeout(operationName(in), timeout).WithCause(err)
	case errors.As(err, &network):
		if errors.Is(network.Err, security.ErrTooManyRedirects) {
			return taxonomy.InvalidURL(network.URL, security.ErrTooManyRedirects.Error()).WithCause(err)
		}
		return taxonomy.ConnectionFailed(network.URL, network.Err.Error()).WithCause(err)
	case errors.As(err, &conversion):
		return taxonomy.ConversionFailed(conversion.Error()).
			WithDetail("converter", conversion.Converter).
			WithDetail("source", source).WithCause(err)
	}

	return taxonomy.Wrap(err)
}

func operationName(in *classify.Input) string {
	if in == nil {
		return "conversion"
	}
	if in.Mode == classify.ModeURL {
		return "url_conversion"
	}
	return string(in.Mode) + "_conversion"
}
