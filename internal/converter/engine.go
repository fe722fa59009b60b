package converter

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/sammcj/md-server/internal/detection"
	"github.com/sammcj/md-server/internal/fetch"
	"github.com/sammcj/md-server/internal/security"
	"github.com/sirupsen/logrus"
)

// Fetcher downloads a remote document
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Response, error)
}

// Renderer returns the HTML of a page after JavaScript ran
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Engine is the default Converter: local bytes go straight to the registry, URLs are
// fetched (or rendered) first.
type Engine struct {
	registry *Registry
	fetcher  Fetcher
	renderer Renderer
	html     *HTMLConverter
	logger   *logrus.Logger
}

// NewEngine creates an Engine. renderer may be nil when no browser is installed.
func NewEngine(logger *logrus.Logger, registry *Registry, fetcher Fetcher, renderer Renderer) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Engine{
		registry: registry,
		fetcher:  fetcher,
		renderer: renderer,
		html:     NewHTMLConverter(),
		logger:   logger,
	}
}

// Convert implements Converter
func (e *Engine) Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error) {
	return e.registry.Convert(ctx, data, info)
}

// ConvertURL implements Converter
func (e *Engine) ConvertURL(ctx context.Context, pageURL string, renderJS bool) (*Result, error) {
	if renderJS && e.renderer != nil {
		rendered, err := e.renderer.Render(ctx, pageURL)
		if err != nil {
			var blocked *security.BlockedError
			if errors.As(err, &blocked) {
				return nil, err
			}
			return nil, Transient(err)
		}
		result, err := e.html.ConvertString(rendered)
		if err != nil {
			return nil, &ConversionError{Converter: "html", Err: err}
		}
		result.Format = "html"
		result.MIMEType = detection.MIMEHTML
		result.SourceSize = len(rendered)
		return result, nil
	}

	if e.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}

	resp, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	info := streamInfoForResponse(resp)
	e.logger.WithFields(logrus.Fields{
		"mime_type": info.MIMEType,
		"extension": info.Extension,
		"bytes":     len(resp.Body),
	}).Debug("Converting fetched document")

	return e.registry.Convert(ctx, resp.Body, info)
}

// streamInfoForResponse prefers the sniffed type over the server's header, which is
// often wrong for downloads served as application/octet-stream.
func streamInfoForResponse(resp *fetch.Response) StreamInfo {
	filename := ""
	if parsed, err := url.Parse(resp.FinalURL); err == nil {
		filename = path.Base(parsed.Path)
	}

	declared, params, _ := mime.ParseMediaType(resp.ContentType)
	sniffed := detection.DetectWithHint(resp.Body, filename)

	mimeType := sniffed
	switch {
	case sniffed == detection.MIMEOctetStream && declared != "":
		mimeType = declared
	case sniffed == detection.MIMEText && declared != "" && declared != detection.MIMEText && strings.HasPrefix(declared, "text/"):
		mimeType = declared
	case sniffed == detection.MIMEText && (declared == detection.MIMEJSON || declared == detection.MIMEXML):
		mimeType = declared
	}

	info := NewStreamInfo(mimeType, filename)
	info.Charset = params["charset"]
	info.URL = resp.FinalURL
	return info
}
