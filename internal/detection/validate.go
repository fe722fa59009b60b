package detection

import (
	"fmt"
	"strings"
)

// MismatchError is returned when the bytes contradict the declared content type
type MismatchError struct {
	Declared string
	Detected string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("content type mismatch: declared %s but content looks like %s", e.Declared, e.Detected)
}

// ValidateContentType sniffs data and checks it against the declared type, returning the
// type that should be used for conversion.
func ValidateContentType(data []byte, declared string) (string, error) {
	declared = NormaliseMIME(declared)
	detected := Detect(data)

	if declared == "" {
		return detected, nil
	}

	// Nothing recognisable, trust the declaration
	if detected == MIMEOctetStream {
		return declared, nil
	}

	if detected == declared {
		return declared, nil
	}

	// The sniffer cannot tell Office variants apart, any of them matches a zip
	if detected == MIMEZip && IsOffice(declared) {
		return declared, nil
	}

	if strings.HasPrefix(declared, "text/") && detected == MIMEHTML {
		return declared, nil
	}

	// Structured text formats are plain text as far as the sniffer can tell
	if detected == MIMEText && isTextual(declared) {
		return declared, nil
	}

	if IsStrong(detected) || IsStrong(declared) {
		return "", &MismatchError{Declared: declared, Detected: detected}
	}

	return declared, nil
}

// NormaliseMIME lowercases a content type and strips any parameters
func NormaliseMIME(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}

func isTextual(mime string) bool {
	switch mime {
	case MIMEJSON, MIMEXML, "application/xhtml+xml", "application/javascript":
		return true
	}
	return strings.HasPrefix(mime, "text/")
}
