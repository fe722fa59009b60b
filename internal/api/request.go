package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sammcj/md-server/internal/classify"
	"github.com/sammcj/md-server/internal/taxonomy"
)

// maxMemory is held in memory while parsing multipart uploads, the rest spills to disk
const maxMemory = 32 << 20

// convertOptions are the per request options accepted in JSON and multipart bodies.
// Size ceilings are server configuration and cannot be set per request.
type convertOptions struct {
	// Timeout in seconds, capped at the server timeout
	Timeout            float64 `json:"timeout"`
	MaxLength          int     `json:"max_length"`
	JSRendering        *bool   `json:"js_rendering"`
	RenderJS           *bool   `json:"render_js"`
	CleanMarkdown      bool    `json:"clean_markdown"`
	IncludeFrontmatter bool    `json:"include_frontmatter"`
}

// convertRequest is the JSON form of POST /convert
type convertRequest struct {
	URL      string          `json:"url"`
	Text     string          `json:"text"`
	MIMEType string          `json:"mime_type"`
	Content  string          `json:"content"`
	Filename string          `json:"filename"`
	Options  *convertOptions `json:"options"`
}

func (o *convertOptions) toClassify() (classify.Options, error) {
	if o == nil {
		return classify.Options{}, nil
	}
	if o.Timeout < 0 {
		return classify.Options{}, errors.New("timeout must not be negative")
	}
	if o.MaxLength < 0 {
		return classify.Options{}, errors.New("max_length must not be negative")
	}

	opts := classify.Options{
		Timeout:            time.Duration(o.Timeout * float64(time.Second)),
		MaxLength:          o.MaxLength,
		CleanMarkdown:      o.CleanMarkdown,
		IncludeFrontmatter: o.IncludeFrontmatter,
	}
	switch {
	case o.JSRendering != nil:
		opts.RenderJS = *o.JSRendering
	case o.RenderJS != nil:
		opts.RenderJS = *o.RenderJS
	}
	return opts, nil
}

// parseConvertRequest turns an inbound request into a classify.Request according to its
// content type: JSON, multipart form data or a raw document body
func parseConvertRequest(r *http.Request) (*classify.Request, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch {
	case mediaType == "application/json":
		return parseJSON(r.Body)
	case mediaType == "multipart/form-data":
		return parseMultipart(r)
	default:
		return parseRaw(r)
	}
}

func parseJSON(body io.Reader) (*classify.Request, error) {
	var req convertRequest
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, taxonomy.InvalidInput(fmt.Sprintf("Invalid JSON body: %v", err)).WithCause(err)
	}

	opts, err := req.Options.toClassify()
	if err != nil {
		return nil, taxonomy.InvalidInput("Invalid options: " + err.Error())
	}

	return &classify.Request{
		URL:      req.URL,
		Text:     req.Text,
		MIMEType: req.MIMEType,
		Content:  req.Content,
		Filename: req.Filename,
		Options:  opts,
	}, nil
}

func parseMultipart(r *http.Request) (*classify.Request, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, taxonomy.InvalidInput("Invalid multipart body").WithCause(err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, taxonomy.InvalidInput("File parameter 'file' is required").WithCause(err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, taxonomy.InvalidInput("Failed to read uploaded file").WithCause(err)
	}

	var opts classify.Options
	if raw := r.FormValue("options"); raw != "" {
		var parsed convertOptions
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil, taxonomy.InvalidInput("Invalid options: " + err.Error())
		}
		if opts, err = parsed.toClassify(); err != nil {
			return nil, taxonomy.InvalidInput("Invalid options: " + err.Error())
		}
	}

	return &classify.Request{
		Upload: &classify.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		},
		Options: opts,
	}, nil
}

func parseRaw(r *http.Request) (*classify.Request, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, taxonomy.InvalidInput("Failed to read request body").WithCause(err)
	}
	if len(data) == 0 {
		return nil, taxonomy.InvalidInput("Request body is empty")
	}

	opts, err := optionsFromQuery(r.URL.Query())
	if err != nil {
		return nil, taxonomy.InvalidInput("Invalid options: " + err.Error())
	}

	return &classify.Request{
		Raw:            data,
		RawContentType: strings.TrimSpace(r.Header.Get("Content-Type")),
		Options:        opts,
	}, nil
}

// optionsFromQuery reads options for raw bodies, which have nowhere else to carry them
func optionsFromQuery(query url.Values) (classify.Options, error) {
	var o convertOptions
	var err error

	if v := query.Get("timeout"); v != "" {
		if o.Timeout, err = strconv.ParseFloat(v, 64); err != nil {
			return classify.Options{}, fmt.Errorf("timeout: %w", err)
		}
	}
	if v := query.Get("max_length"); v != "" {
		if o.MaxLength, err = strconv.Atoi(v); err != nil {
			return classify.Options{}, fmt.Errorf("max_length: %w", err)
		}
	}
	if v := query.Get("clean_markdown"); v != "" {
		if o.CleanMarkdown, err = strconv.ParseBool(v); err != nil {
			return classify.Options{}, fmt.Errorf("clean_markdown: %w", err)
		}
	}
	return o.toClassify()
}
