package converter

import (
	"context"
	"errors"
	"testing"

	"github.com/sammcj/md-server/internal/fetch"
	"github.com/sammcj/md-server/internal/security"
	"github.com/sammcj/md-server/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	resp *fetch.Response
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.Response, error) {
	f.urls = append(f.urls, url)
	return f.resp, f.err
}

type fakeRenderer struct {
	html string
	err  error
}

func (f *fakeRenderer) Render(context.Context, string) (string, error) {
	return f.html, f.err
}

func TestEngine_ConvertURL(t *testing.T) {
	tests := []struct {
		name        string
		finalURL    string
		contentType string
		body        string
		wantFormat  string
		wantMIME    string
	}{
		{
			name:        "html page",
			finalURL:    "https://example.com/",
			contentType: "text/html; charset=utf-8",
			body:        "<html><body><h1>Hi</h1></body></html>",
			wantFormat:  "html",
			wantMIME:    "text/html",
		},
		{
			name:        "json api",
			finalURL:    "https://example.com/api/data",
			contentType: "application/json",
			body:        `{"ok":true}`,
			wantFormat:  "json",
			wantMIME:    "application/json",
		},
		{
			name:        "csv served as text",
			finalURL:    "https://example.com/export",
			contentType: "text/csv",
			body:        "a,b\n1,2\n",
			wantFormat:  "csv",
			wantMIME:    "text/csv",
		},
		{
			name:        "markdown by extension",
			finalURL:    "https://example.com/README.md",
			contentType: "text/plain",
			body:        "# Title",
			wantFormat:  "text",
			wantMIME:    "text/markdown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{resp: &fetch.Response{
				URL:         tt.finalURL,
				FinalURL:    tt.finalURL,
				StatusCode:  200,
				ContentType: tt.contentType,
				Body:        []byte(tt.body),
			}}
			engine := NewEngine(testutil.CreateTestLogger(), nil, fetcher, nil)

			result, err := engine.ConvertURL(context.Background(), tt.finalURL, false)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, result.Format)
			assert.Equal(t, tt.wantMIME, result.MIMEType)
			assert.Equal(t, len(tt.body), result.SourceSize)
			assert.Equal(t, []string{tt.finalURL}, fetcher.urls)
		})
	}
}

func TestEngine_ConvertURL_Unsupported(t *testing.T) {
	fetcher := &fakeFetcher{resp: &fetch.Response{
		FinalURL:    "https://example.com/blob",
		ContentType: "application/x-custom",
		Body:        []byte{0x00, 0x01, 0x02, 0xff},
	}}
	engine := NewEngine(testutil.CreateTestLogger(), nil, fetcher, nil)

	_, err := engine.ConvertURL(context.Background(), "https://example.com/blob", false)
	var unsupported *UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "application/x-custom", unsupported.MIMEType)
}

func TestEngine_ConvertURL_FetchError(t *testing.T) {
	cause := &fetch.StatusError{URL: "https://example.com", StatusCode: 404, Status: "404 Not Found"}
	engine := NewEngine(testutil.CreateTestLogger(), nil, &fakeFetcher{err: cause}, nil)

	_, err := engine.ConvertURL(context.Background(), "https://example.com", false)
	assert.ErrorIs(t, err, cause)
}

func TestEngine_ConvertURL_Rendered(t *testing.T) {
	fetcher := &fakeFetcher{}

	t.Run("renders with browser", func(t *testing.T) {
		html := "<html><head><title>App</title></head><body><p>Loaded by script</p></body></html>"
		engine := NewEngine(testutil.CreateTestLogger(), nil, fetcher, &fakeRenderer{html: html})

		result, err := engine.ConvertURL(context.Background(), "https://spa.example", true)
		require.NoError(t, err)
		assert.Equal(t, "html", result.Format)
		assert.Equal(t, "App", result.Title)
		assert.Contains(t, result.Markdown, "Loaded by script")
		assert.Equal(t, len(html), result.SourceSize)
		assert.Empty(t, fetcher.urls)
	})

	t.Run("render failure is transient", func(t *testing.T) {
		engine := NewEngine(testutil.CreateTestLogger(), nil, fetcher, &fakeRenderer{err: errors.New("browser crashed")})

		_, err := engine.ConvertURL(context.Background(), "https://spa.example", true)
		var transient *TransientError
		require.ErrorAs(t, err, &transient)
		assert.True(t, transient.Transient())
	})

	t.Run("blocked render is not retried", func(t *testing.T) {
		blocked := &security.BlockedError{
			URL: "https://rebind.example", Reason: security.ReasonDangerousIPRange, Message: "restricted range",
		}
		engine := NewEngine(testutil.CreateTestLogger(), nil, fetcher, &fakeRenderer{err: blocked})

		_, err := engine.ConvertURL(context.Background(), "https://rebind.example", true)
		require.ErrorIs(t, err, blocked)
		var transient *TransientError
		assert.False(t, errors.As(err, &transient))
	})

	t.Run("no renderer falls back to fetch", func(t *testing.T) {
		fallback := &fakeFetcher{resp: &fetch.Response{
			FinalURL:    "https://spa.example/",
			ContentType: "text/plain",
			Body:        []byte("static text"),
		}}
		engine := NewEngine(testutil.CreateTestLogger(), nil, fallback, nil)

		result, err := engine.ConvertURL(context.Background(), "https://spa.example/", true)
		require.NoError(t, err)
		assert.Equal(t, "static text", result.Markdown)
	})
}
