package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "collapses blank runs", input: "a\n\n\n\nb", want: "a\n\nb"},
		{name: "trims lines", input: "  a  \n\tb\t", want: "a\nb"},
		{name: "drops leading and trailing blanks", input: "\n\n a\n\n\n", want: "a"},
		{name: "whitespace only", input: "  \n \n", want: ""},
		{
			name:  "keeps code block indentation",
			input: "```go\nfunc main() {\n\n\n\tfmt.Println()\n}\n```",
			want:  "```go\nfunc main() {\n\n\n\tfmt.Println()\n}\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanMarkdown(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int
		want    string
		wantCut bool
	}{
		{name: "no limit", input: "hello", max: 0, want: "hello"},
		{name: "under limit", input: "hello", max: 10, want: "hello"},
		{name: "exact", input: "hello", max: 5, want: "hello"},
		{name: "cut", input: strings.Repeat("Long text ", 20), max: 20, want: "Long text Long text ...", wantCut: true},
		{name: "multibyte", input: "héllo wörld", max: 4, want: "héll...", wantCut: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cut := Truncate(tt.input, tt.max)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCut, cut)
		})
	}
}
