// Package classify turns a heterogeneous conversion request into exactly one
// normalised input.
package classify

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sammcj/md-server/internal/taxonomy"
)

// Mode is the kind of input a request carries
type Mode string

const (
	ModeURL     Mode = "url"
	ModeText    Mode = "text"
	ModeContent Mode = "content"
	ModeRaw     Mode = "raw"
	ModeUpload  Mode = "upload"
)

// Options tune a single conversion
type Options struct {
	Timeout            time.Duration
	MaxLength          int
	RenderJS           bool
	CleanMarkdown      bool
	IncludeFrontmatter bool
}

// Upload is a file received as multipart form data
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Request holds every input mode a caller may use; exactly one must be set
type Request struct {
	URL            string
	Text           string
	MIMEType       string
	Content        string
	Filename       string
	Raw            []byte
	RawContentType string
	Upload         *Upload
	Options        Options
}

// Input is the normalised result of classification
type Input struct {
	Mode         Mode
	URL          string
	Data         []byte
	DeclaredType string
	Filename     string
	Options      Options
}

// SourceLabel is a short human description of where the input came from
func (in *Input) SourceLabel() string {
	switch in.Mode {
	case ModeURL:
		return in.URL
	case ModeUpload, ModeContent:
		if in.Filename != "" {
			return in.Filename
		}
	}
	return string(in.Mode)
}

// Classify determines the single input mode of req and extracts its payload
func Classify(req *Request) (*Input, error) {
	if req == nil {
		return nil, taxonomy.InvalidInput("Request body is required")
	}

	modes := populatedModes(req)
	switch len(modes) {
	case 0:
		return nil, taxonomy.InvalidInput("No input provided: supply one of url, text, content, a file upload or a raw body")
	case 1:
	default:
		names := make([]string, len(modes))
		for i, m := range modes {
			names[i] = string(m)
		}
		return nil, taxonomy.InvalidInput(fmt.Sprintf("Multiple inputs provided (%s): supply exactly one", strings.Join(names, ", "))).
			WithDetail("modes", names)
	}

	in := &Input{Mode: modes[0], Options: req.Options}

	switch in.Mode {
	case ModeURL:
		in.URL = strings.TrimSpace(req.URL)

	case ModeText:
		in.Data = []byte(req.Text)
		in.DeclaredType = "text/plain"
		if strings.TrimSpace(req.MIMEType) != "" {
			mt, err := ValidateMIMEType(req.MIMEType)
			if err != nil {
				return nil, taxonomy.InvalidInput(err.Error()).WithDetail("mime_type", req.MIMEType)
			}
			in.DeclaredType = essence(mt)
		}

	case ModeContent:
		data, err := decodeBase64(req.Content)
		if err != nil {
			return nil, taxonomy.InvalidInput("Invalid base64 content").WithCause(err)
		}
		if len(data) == 0 {
			return nil, taxonomy.InvalidInput("Decoded content is empty")
		}
		in.Data = data
		in.Filename = safeFilename(req.Filename)

	case ModeRaw:
		in.Data = req.Raw
		in.DeclaredType = essence(req.RawContentType)
		if in.DeclaredType == "application/octet-stream" {
			in.DeclaredType = ""
		}

	case ModeUpload:
		if len(req.Upload.Data) == 0 {
			return nil, taxonomy.InvalidInput("Uploaded file is empty")
		}
		in.Data = req.Upload.Data
		in.Filename = safeFilename(req.Upload.Filename)
		in.DeclaredType = essence(req.Upload.ContentType)
		if in.DeclaredType == "application/octet-stream" {
			in.DeclaredType = ""
		}
	}

	return in, nil
}

func populatedModes(req *Request) []Mode {
	var modes []Mode
	if strings.TrimSpace(req.URL) != "" {
		modes = append(modes, ModeURL)
	}
	if req.Text != "" {
		modes = append(modes, ModeText)
	}
	if strings.TrimSpace(req.Content) != "" {
		modes = append(modes, ModeContent)
	}
	if len(req.Raw) > 0 {
		modes = append(modes, ModeRaw)
	}
	if req.Upload != nil {
		modes = append(modes, ModeUpload)
	}
	return modes
}

// decodeBase64 accepts standard and URL alphabets, padded or not, ignoring whitespace
func decodeBase64(content string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, content)

	// data URLs carry the payload after the comma
	if strings.HasPrefix(cleaned, "data:") {
		if _, payload, ok := strings.Cut(cleaned, ","); ok {
			cleaned = payload
		}
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(cleaned)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// safeFilename keeps only the base name; it is a detection hint and never a path
func safeFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

func essence(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}
