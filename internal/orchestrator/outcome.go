package orchestrator

import (
	"github.com/sammcj/md-server/internal/taxonomy"
)

// Metadata describes a finished conversion
type Metadata struct {
	SourceType       string   `json:"source_type" yaml:"source_type"`
	SourceSize       int      `json:"source_size" yaml:"source_size"`
	MarkdownSize     int      `json:"markdown_size" yaml:"markdown_size"`
	ConversionTimeMS int64    `json:"conversion_time_ms" yaml:"conversion_time_ms"`
	DetectedFormat   string   `json:"detected_format" yaml:"detected_format"`
	Title            string   `json:"title,omitempty" yaml:"title,omitempty"`
	Source           string   `json:"source,omitempty" yaml:"source,omitempty"`
	Attempts         int      `json:"attempts,omitempty" yaml:"-"`
	Warnings         []string `json:"warnings" yaml:"warnings"`
}

// Outcome is either converted markdown with metadata or a taxonomy error
type Outcome struct {
	Markdown string
	Metadata Metadata
	Err      *taxonomy.Error
}

func newOutcome() *Outcome {
	return &Outcome{Metadata: Metadata{Warnings: []string{}}}
}

// Success reports whether the conversion produced markdown
func (o *Outcome) Success() bool {
	return o.Err == nil
}

func (m *Metadata) warn(message string) {
	m.Warnings = append(m.Warnings, message)
}
