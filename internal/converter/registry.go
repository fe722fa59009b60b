package converter

import (
	"context"
	"sort"
	"sync"
)

// Priorities for registered converters, lower runs first
const (
	PrioritySpecific = 0.0
	PriorityGeneric  = 10.0
)

type registration struct {
	name      string
	converter DocumentConverter
	priority  float64
}

// Registry selects a DocumentConverter by stream metadata
type Registry struct {
	mu      sync.RWMutex
	entries []registration
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry with every built in converter
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("pdf", NewPDFConverter(), PrioritySpecific)
	r.Register("docx", NewDocxConverter(), PrioritySpecific)
	r.Register("pptx", NewPptxConverter(), PrioritySpecific)
	r.Register("xlsx", NewXlsxConverter(), PrioritySpecific)
	r.Register("html", NewHTMLConverter(), PrioritySpecific)
	r.Register("csv", NewCSVConverter(), PrioritySpecific)
	r.Register("json", NewJSONConverter(), PrioritySpecific)
	r.Register("xml", NewXMLConverter(), PrioritySpecific)
	r.Register("text", NewPlainTextConverter(), PriorityGeneric)
	return r
}

// Register adds a converter. Converters with equal priority keep registration order.
func (r *Registry) Register(name string, conv DocumentConverter, priority float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, registration{name: name, converter: conv, priority: priority})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].priority < r.entries[j].priority
	})
}

// Lookup returns the first converter that accepts info
func (r *Registry) Lookup(info StreamInfo) (string, DocumentConverter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.entries {
		if entry.converter.Accepts(info) {
			return entry.name, entry.converter, true
		}
	}
	return "", nil, false
}

// Names lists registered converters in priority order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.entries))
	for i, entry := range r.entries {
		names[i] = entry.name
	}
	return names
}

// Convert runs the matching converter
func (r *Registry) Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error) {
	name, conv, ok := r.Lookup(info)
	if !ok {
		return nil, &UnsupportedFormatError{MIMEType: info.MIMEType, Extension: info.Extension}
	}

	result, err := conv.Convert(ctx, data, info)
	if err != nil {
		return nil, &ConversionError{Converter: name, Err: err}
	}
	result.Format = name
	result.MIMEType = info.MIMEType
	result.SourceSize = len(data)
	return result, nil
}
