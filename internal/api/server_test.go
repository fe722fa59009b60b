package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammcj/md-server/internal/classify"
	"github.com/sammcj/md-server/internal/converter"
	"github.com/sammcj/md-server/internal/limits"
	"github.com/sammcj/md-server/internal/metrics"
	"github.com/sammcj/md-server/internal/orchestrator"
	"github.com/sammcj/md-server/internal/taxonomy"
	"github.com/sammcj/md-server/internal/testutil"
)

type fakeConverter struct {
	last    *classify.Request
	outcome *orchestrator.Outcome
}

func (f *fakeConverter) Convert(_ context.Context, req *classify.Request) *orchestrator.Outcome {
	f.last = req
	if f.outcome != nil {
		return f.outcome
	}
	return &orchestrator.Outcome{
		Markdown: "# Converted",
		Metadata: orchestrator.Metadata{SourceType: "text", MarkdownSize: 11},
	}
}

func newTestServer(conv Converter) *httptest.Server {
	s := NewServer(Config{
		Converter:   conv,
		MaxBodySize: 1024,
		SizeLimit:   limits.DefaultPolicy().Limit,
		Version:     "test",
		Logger:      testutil.CreateTestLogger(),
	})
	return httptest.NewServer(s.Handler())
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var body T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestConvert_JSONRequest(t *testing.T) {
	conv := &fakeConverter{}
	srv := newTestServer(conv)
	defer srv.Close()

	payload := `{"text":"hello","mime_type":"text/plain","options":{"timeout":5,"max_length":100,"js_rendering":true,"clean_markdown":true}}`
	resp, err := http.Post(srv.URL+"/convert", "application/json", strings.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[ConvertResponse](t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, "# Converted", body.Markdown)
	assert.True(t, strings.HasPrefix(body.RequestID, "req_"))
	assert.Equal(t, body.RequestID, resp.Header.Get("X-Request-ID"))

	require.NotNil(t, conv.last)
	assert.Equal(t, "hello", conv.last.Text)
	assert.Equal(t, "text/plain", conv.last.MIMEType)
	assert.Equal(t, 5*time.Second, conv.last.Options.Timeout)
	assert.Equal(t, 100, conv.last.Options.MaxLength)
	assert.True(t, conv.last.Options.RenderJS)
	assert.True(t, conv.last.Options.CleanMarkdown)
}

func TestConvert_RenderJSAlias(t *testing.T) {
	conv := &fakeConverter{}
	srv := newTestServer(conv)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/convert", "application/json",
		strings.NewReader(`{"url":"https://example.com","options":{"render_js":true}}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.NotNil(t, conv.last)
	assert.True(t, conv.last.Options.RenderJS)
	assert.Equal(t, "https://example.com", conv.last.URL)
}

func TestConvert_MultipartUpload(t *testing.T) {
	conv := &fakeConverter{}
	srv := newTestServer(conv)
	defer srv.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "notes.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("# Notes"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("options", `{"max_length":10}`))
	require.NoError(t, writer.Close())

	resp, err := http.Post(srv.URL+"/convert", writer.FormDataContentType(), &buf)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, conv.last)
	require.NotNil(t, conv.last.Upload)
	assert.Equal(t, "notes.md", conv.last.Upload.Filename)
	assert.Equal(t, []byte("# Notes"), conv.last.Upload.Data)
	assert.Equal(t, 10, conv.last.Options.MaxLength)
}

func TestConvert_RawBody(t *testing.T) {
	conv := &fakeConverter{}
	srv := newTestServer(conv)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/convert?max_length=5", "text/html; charset=utf-8",
		strings.NewReader("<html><body>Hi</body></html>"))
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.NotNil(t, conv.last)
	assert.Equal(t, "text/html; charset=utf-8", conv.last.RawContentType)
	assert.Equal(t, 5, conv.last.Options.MaxLength)
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		outcome     *orchestrator.Outcome
		wantStatus  int
		wantCode    string
	}{
		{
			name:        "malformed json",
			contentType: "application/json",
			body:        `{"text":`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_INPUT",
		},
		{
			name:        "body over cap",
			contentType: "text/plain",
			body:        strings.Repeat("a", 2048),
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantCode:    "FILE_TOO_LARGE",
		},
		{
			name:        "empty raw body",
			contentType: "text/plain",
			body:        "",
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_INPUT",
		},
		{
			name:        "timeout from orchestrator",
			contentType: "application/json",
			body:        `{"text":"hi"}`,
			outcome:     &orchestrator.Outcome{Err: taxonomy.Timeout("text_conversion", 30*time.Second)},
			wantStatus:  http.StatusRequestTimeout,
			wantCode:    "TIMEOUT",
		},
		{
			name:        "unsupported from orchestrator",
			contentType: "application/json",
			body:        `{"text":"hi"}`,
			outcome:     &orchestrator.Outcome{Err: taxonomy.UnsupportedFormat("image/png", []string{"pdf"})},
			wantStatus:  http.StatusUnsupportedMediaType,
			wantCode:    "UNSUPPORTED_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeConverter{outcome: tt.outcome})
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/convert", tt.contentType, strings.NewReader(tt.body))
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decode[ErrorResponse](t, resp)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
			assert.NotEmpty(t, body.Error.Suggestions)
			assert.True(t, strings.HasPrefix(body.RequestID, "req_"))
		})
	}
}

// passthrough returns its input as markdown
type passthrough struct{}

func (passthrough) Convert(_ context.Context, data []byte, info converter.StreamInfo) (*converter.Result, error) {
	return &converter.Result{Markdown: string(data), MIMEType: info.MIMEType}, nil
}

func (passthrough) ConvertURL(context.Context, string, bool) (*converter.Result, error) {
	return &converter.Result{Markdown: "# Page"}, nil
}

func TestConvert_SizeCeilingIgnoresRequestOptions(t *testing.T) {
	s := NewServer(Config{
		Converter: orchestrator.New(orchestrator.Config{
			Converter: passthrough{},
			Logger:    testutil.CreateTestLogger(),
		}),
		MaxBodySize: 64 * limits.MB,
		SizeLimit:   limits.DefaultPolicy().Limit,
		Logger:      testutil.CreateTestLogger(),
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	text := strings.Repeat("a", int(12*limits.MB))

	tests := []struct {
		name string
		url  string
		body func(t *testing.T) (string, []byte)
	}{
		{
			name: "json options",
			url:  "/convert",
			body: func(t *testing.T) (string, []byte) {
				payload, err := json.Marshal(map[string]any{
					"text":    text,
					"options": map[string]any{"max_size_mb": 1000},
				})
				require.NoError(t, err)
				return "application/json", payload
			},
		},
		{
			name: "query options",
			url:  "/convert?max_size_mb=1000",
			body: func(t *testing.T) (string, []byte) {
				return "text/plain", []byte(text)
			},
		},
		{
			name: "multipart options",
			url:  "/convert",
			body: func(t *testing.T) (string, []byte) {
				var buf bytes.Buffer
				writer := multipart.NewWriter(&buf)
				part, err := writer.CreateFormFile("file", "big.txt")
				require.NoError(t, err)
				_, err = part.Write([]byte(text))
				require.NoError(t, err)
				require.NoError(t, writer.WriteField("options", `{"max_size_mb":1000}`))
				require.NoError(t, writer.Close())
				return writer.FormDataContentType(), buf.Bytes()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contentType, body := tt.body(t)
			resp, err := http.Post(srv.URL+tt.url, contentType, bytes.NewReader(body))
			require.NoError(t, err)

			assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
			errBody := decode[ErrorResponse](t, resp)
			assert.Equal(t, "FILE_TOO_LARGE", errBody.Error.Code)
			assert.Contains(t, errBody.Error.Message, "exceeds limit of 10MB")
		})
	}
}

func TestConvert_WarningsEncodedAsArray(t *testing.T) {
	srv := newTestServer(&fakeConverter{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/convert", "application/json", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	meta, ok := body["metadata"].(map[string]any)
	require.True(t, ok)
	warnings, ok := meta["warnings"].([]any)
	require.True(t, ok, "warnings must be present as an array")
	assert.Empty(t, warnings)
}

func TestHealthEndpoints(t *testing.T) {
	counters := metrics.NewCounters()
	counters.Record(context.Background(), metrics.Event{Success: true})

	s := NewServer(Config{
		Converter: &fakeConverter{},
		Counters:  counters,
		Version:   "1.2.3",
		Logger:    testutil.CreateTestLogger(),
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp))

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health := decode[healthResponse](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "1.2.3", health.Version)
	assert.Equal(t, int64(1), health.Conversions.Total)
	assert.Equal(t, int64(1), health.Conversions.ConversionsLastHour)
}

func TestFormatsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeConverter{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/formats")
	require.NoError(t, err)
	body := decode[formatsResponse](t, resp)

	require.NotEmpty(t, body.Formats)
	byName := map[string]float64{}
	for _, f := range body.Formats {
		byName[f.Name] = f.MaxSizeMB
	}
	assert.Equal(t, float64(50), byName["pdf"])
	assert.Equal(t, float64(25), byName["docx"])
	assert.Equal(t, float64(5), byName["json"])
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(&fakeConverter{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/convertt")
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "UNKNOWN_TOOL", body.Error.Code)
	assert.Contains(t, strings.Join(body.Error.Suggestions, " "), "POST /convert")
}
