package limits

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Limit(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		contentType string
		want        int64
	}{
		{contentType: "application/pdf", want: 50 * MB},
		{contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", want: 25 * MB},
		{contentType: "text/plain; charset=utf-8", want: 10 * MB},
		{contentType: "TEXT/HTML", want: 10 * MB},
		{contentType: "application/json", want: 5 * MB},
		{contentType: "image/png", want: 20 * MB},
		{contentType: "application/x-unknown", want: DefaultMaxSize},
		{contentType: "", want: DefaultMaxSize},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Limit(tt.contentType))
		})
	}
}

func TestPolicy_Check(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name        string
		size        int64
		contentType string
		wantErr     bool
	}{
		{name: "zero size", size: 0, contentType: "text/plain"},
		{name: "unknown size", size: -1, contentType: "text/plain"},
		{name: "at limit", size: 10 * MB, contentType: "text/plain"},
		{name: "over limit", size: 10*MB + 1, contentType: "text/plain", wantErr: true},
		{name: "parameters ignored", size: 10*MB + 1, contentType: "text/plain; charset=utf-8", wantErr: true},
		{name: "default ceiling", size: 51 * MB, contentType: "application/x-unknown", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Check(tt.size, tt.contentType)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var tooLarge *TooLargeError
			require.ErrorAs(t, err, &tooLarge)
			assert.Equal(t, tt.size, tooLarge.Size)
		})
	}
}

func TestTooLargeError_Message(t *testing.T) {
	err := DefaultPolicy().Check(11*MB, "text/plain")
	require.Error(t, err)
	assert.Equal(t,
		"File size 11.0MB (11534336 bytes) exceeds limit of 10MB (10485760 bytes) for text/plain",
		err.Error())
}

func TestFormatMB(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{size: 10 * MB, want: "10"},
		{size: 10*MB + MB/2, want: "10.5"},
		{size: MB / 4, want: "0.25"},
		{size: int64(0.001 * float64(MB)), want: "0.001"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMB(tt.size))
		})
	}
}

func TestPolicy_WithOverrides(t *testing.T) {
	base := DefaultPolicy()
	p := base.WithOverrides(map[string]int64{
		"application/pdf": 100 * MB,
		"text/*":          1 * MB,
		"default":         2 * MB,
		"ignored":         0,
	})

	assert.Equal(t, 100*MB, p.Limit("application/pdf"))
	assert.Equal(t, 10*MB, p.Limit("text/plain"), "exact entries win over family entries")
	assert.Equal(t, 1*MB, p.Limit("text/x-custom"))
	assert.Equal(t, 2*MB, p.Limit("application/x-unknown"))
	assert.Equal(t, 100*MB, p.MaxLimit())

	assert.Equal(t, 50*MB, base.Limit("application/pdf"), "base policy is unchanged")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, p *Policy)
		wantErr bool
	}{
		{
			name:    "overrides",
			content: "default_mb: 20\nlimits_mb:\n  application/pdf: 75\n  text/*: 1.5\n",
			check: func(t *testing.T, p *Policy) {
				assert.Equal(t, 75*MB, p.Limit("application/pdf"))
				assert.Equal(t, int64(1.5*float64(MB)), p.Limit("text/x-log"))
				assert.Equal(t, 20*MB, p.Limit("application/x-unknown"))
			},
		},
		{name: "negative limit", content: "limits_mb:\n  application/pdf: -1\n", wantErr: true},
		{name: "invalid yaml", content: "limits_mb: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			p, err := LoadFile(path, DefaultPolicy())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}
