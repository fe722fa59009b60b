// Package limits enforces per content type size ceilings on inbound payloads.
package limits

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// MB is one mebibyte, the unit used for all configured ceilings
const MB int64 = 1024 * 1024

// DefaultMaxSize applies to content types without a specific ceiling
const DefaultMaxSize = 50 * MB

// defaultCeilings mirrors the limits published on /formats
var defaultCeilings = map[string]int64{
	"application/pdf": 50 * MB,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   25 * MB,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": 25 * MB,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         25 * MB,
	"text/plain":       10 * MB,
	"text/html":        10 * MB,
	"text/markdown":    10 * MB,
	"text/csv":         10 * MB,
	"application/json": 5 * MB,
	"image/png":        20 * MB,
	"image/jpeg":       20 * MB,
	"image/jpg":        20 * MB,
}

// Policy maps content types to maximum byte sizes. A Policy is never modified after
// construction so it can be shared between requests without locking.
type Policy struct {
	ceilings    map[string]int64
	defaultSize int64
}

// DefaultPolicy returns the built in size policy
func DefaultPolicy() *Policy {
	return &Policy{
		ceilings:    maps.Clone(defaultCeilings),
		defaultSize: DefaultMaxSize,
	}
}

// WithOverrides returns a copy of the policy with the given ceilings (in bytes) replaced.
// The key "default" replaces the fallback ceiling.
func (p *Policy) WithOverrides(overrides map[string]int64) *Policy {
	next := &Policy{
		ceilings:    maps.Clone(p.ceilings),
		defaultSize: p.defaultSize,
	}
	for contentType, size := range overrides {
		if size <= 0 {
			continue
		}
		key := normalise(contentType)
		if key == "default" {
			next.defaultSize = size
			continue
		}
		next.ceilings[key] = size
	}
	return next
}

// Limit returns the ceiling in bytes for a content type. Exact matches win, then a
// "type/*" family entry, then the default.
func (p *Policy) Limit(contentType string) int64 {
	key := normalise(contentType)
	if size, ok := p.ceilings[key]; ok {
		return size
	}
	if family, _, ok := strings.Cut(key, "/"); ok {
		if size, ok := p.ceilings[family+"/*"]; ok {
			return size
		}
	}
	return p.defaultSize
}

// MaxLimit returns the largest ceiling in the policy
func (p *Policy) MaxLimit() int64 {
	largest := p.defaultSize
	for _, size := range p.ceilings {
		largest = max(largest, size)
	}
	return largest
}

// Check validates size against the ceiling for contentType. Sizes of zero or less are
// accepted as unknown.
func (p *Policy) Check(size int64, contentType string) error {
	if size <= 0 {
		return nil
	}

	if limit := p.Limit(contentType); size > limit {
		return &TooLargeError{Size: size, Limit: limit, ContentType: normalise(contentType)}
	}
	return nil
}

// TooLargeError reports a payload above its ceiling
type TooLargeError struct {
	Size        int64
	Limit       int64
	ContentType string
}

func (e *TooLargeError) Error() string {
	contentType := e.ContentType
	if contentType == "" {
		contentType = "unknown content type"
	}
	return fmt.Sprintf("File size %.1fMB (%d bytes) exceeds limit of %sMB (%d bytes) for %s",
		toMB(e.Size), e.Size, FormatMB(e.Limit), e.Limit, contentType)
}

func toMB(size int64) float64 {
	return float64(size) / float64(MB)
}

// FormatMB prints a byte count in megabytes with up to three decimals, so fractional
// ceilings never round down to a misleading whole number
func FormatMB(size int64) string {
	if size%MB == 0 {
		return strconv.FormatInt(size/MB, 10)
	}
	formatted := strings.TrimRight(strconv.FormatFloat(toMB(size), 'f', 3, 64), "0")
	return strings.TrimSuffix(formatted, ".")
}

func normalise(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}
