package limits

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML layout accepted by LoadFile
//
//	default_mb: 50
//	limits_mb:
//	  application/pdf: 100
//	  text/*: 5
type File struct {
	DefaultMB float64            `yaml:"default_mb"`
	LimitsMB  map[string]float64 `yaml:"limits_mb"`
}

// LoadFile reads size overrides from a YAML file and applies them to base
func LoadFile(path string, base *Policy) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read limits file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse limits file %s: %w", path, err)
	}

	overrides := make(map[string]int64, len(file.LimitsMB)+1)
	for contentType, mb := range file.LimitsMB {
		if mb <= 0 {
			return nil, fmt.Errorf("limit for %s must be positive, got %v", contentType, mb)
		}
		overrides[contentType] = int64(mb * float64(MB))
	}
	if file.DefaultMB > 0 {
		overrides["default"] = int64(file.DefaultMB * float64(MB))
	}

	return base.WithOverrides(overrides), nil
}
