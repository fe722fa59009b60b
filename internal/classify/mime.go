package classify

import (
	"errors"
	"strings"
)

// MaxMIMELength bounds a caller supplied MIME type
const MaxMIMELength = 100

// MIME type validation failures
var (
	ErrMIMEEmpty         = errors.New("MIME type cannot be empty")
	ErrMIMETooLong       = errors.New("MIME type too long (max 100 characters)")
	ErrMIMENoSeparator   = errors.New("MIME type must contain '/' separator")
	ErrMIMEManySeparator = errors.New("MIME type must contain exactly one '/' separator")
	ErrMIMEInvalidChars  = errors.New("Invalid characters in MIME type")
)

// ValidateMIMEType checks the structure of a MIME type and returns it trimmed and
// lowercased. Parameters such as charset are allowed after a ';'.
func ValidateMIMEType(mimeType string) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if mt == "" {
		return "", ErrMIMEEmpty
	}
	if len(mt) > MaxMIMELength {
		return "", ErrMIMETooLong
	}
	if strings.Contains(mt, "..") || strings.Contains(mt, "\\") {
		return "", ErrMIMEInvalidChars
	}

	essence, params, _ := strings.Cut(mt, ";")
	essence = strings.TrimSpace(essence)

	switch strings.Count(essence, "/") {
	case 0:
		return "", ErrMIMENoSeparator
	case 1:
	default:
		return "", ErrMIMEManySeparator
	}

	mainType, subType, _ := strings.Cut(essence, "/")
	if !isToken(mainType) || !isToken(subType) {
		return "", ErrMIMEInvalidChars
	}
	for _, r := range params {
		if r < 0x20 || r > 0x7e {
			return "", ErrMIMEInvalidChars
		}
	}

	return mt, nil
}

// isToken reports whether s only uses the restricted-name characters of RFC 6838
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case strings.ContainsRune("!#$&-^_.+", r):
		default:
			return false
		}
	}
	return true
}
