// Package converter turns documents and web pages into Markdown. Format specific
// converters are registered in a static registry and selected by stream metadata.
package converter

import (
	"context"
	"path/filepath"
	"strings"
)

// StreamInfo describes the bytes handed to a converter
type StreamInfo struct {
	MIMEType  string
	Extension string
	Charset   string
	Filename  string
	URL       string
}

// NewStreamInfo builds stream metadata. The filename extension is only used for
// selection when the content type is unknown, so a misleading name cannot route bytes to
// the wrong converter.
func NewStreamInfo(mimeType, filename string) StreamInfo {
	info := StreamInfo{
		MIMEType: strings.ToLower(mimeType),
		Filename: filename,
	}
	if info.MIMEType == "" || info.MIMEType == "application/octet-stream" {
		info.Extension = strings.ToLower(filepath.Ext(filename))
	}
	return info
}

// Result is the output of a conversion
type Result struct {
	Markdown string
	Title    string
	// Format is the registry name of the converter that produced the result
	Format string
	// MIMEType and SourceSize describe the bytes that were converted
	MIMEType   string
	SourceSize int
}

// DocumentConverter converts a single format
type DocumentConverter interface {
	Accepts(info StreamInfo) bool
	Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error)
}

// Converter is the collaborator used by the orchestrator. Implementations may block and
// are not required to honour ctx; callers enforce their own deadline.
type Converter interface {
	Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error)
	ConvertURL(ctx context.Context, url string, renderJS bool) (*Result, error)
}
