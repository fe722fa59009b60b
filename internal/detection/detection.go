// Package detection identifies the real format of untrusted bytes without trusting
// caller supplied labels.
package detection

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// MIME types produced by the sniffer
const (
	MIMEPDF         = "application/pdf"
	MIMEZip         = "application/zip"
	MIMEDOCX        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEPPTX        = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMEPNG         = "image/png"
	MIMEJPEG        = "image/jpeg"
	MIMEGIF         = "image/gif"
	MIMEHTML        = "text/html"
	MIMEText        = "text/plain"
	MIMEMarkdown    = "text/markdown"
	MIMECSV         = "text/csv"
	MIMEJSON        = "application/json"
	MIMEXML         = "application/xml"
	MIMEOctetStream = "application/octet-stream"
)

// sniffWindow is the number of leading bytes inspected for text heuristics
const sniffWindow = 1024

type signature struct {
	magic []byte
	mime  string
}

// signatures are checked in order; the first match wins
var signatures = []signature{
	{[]byte("%PDF"), MIMEPDF},
	{[]byte("PK\x03\x04"), MIMEZip},
	{[]byte("PK\x05\x06"), MIMEZip},
	{[]byte("PK\x07\x08"), MIMEZip},
	{[]byte("\x89PNG\r\n\x1a\n"), MIMEPNG},
	{[]byte("\xff\xd8\xff"), MIMEJPEG},
	{[]byte("GIF87a"), MIMEGIF},
	{[]byte("GIF89a"), MIMEGIF},
}

var utf8BOM = []byte("\xef\xbb\xbf")

// Detect returns the best-effort MIME type of data based purely on its content.
// It never fails: bytes that match nothing are reported as application/octet-stream.
func Detect(data []byte) string {
	if len(data) == 0 {
		return MIMEOctetStream
	}

	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.mime
		}
	}

	window := data[:min(len(data), sniffWindow)]

	if looksLikeHTML(window) {
		return MIMEHTML
	}

	if isUTF8Prefix(window, len(data) > sniffWindow) {
		return MIMEText
	}

	return MIMEOctetStream
}

// looksLikeHTML requires a leading '<' and an html or doctype token near the start
func looksLikeHTML(window []byte) bool {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(window, utf8BOM), " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return false
	}

	lower := bytes.ToLower(trimmed)
	return bytes.Contains(lower, []byte("<html")) || bytes.Contains(lower, []byte("<!doctype"))
}

// isUTF8Prefix validates the window as UTF-8. When the window was cut from a longer
// input, an incomplete rune at the very end is tolerated.
func isUTF8Prefix(window []byte, truncated bool) bool {
	if utf8.Valid(window) {
		return !bytes.ContainsRune(window, 0)
	}
	if !truncated {
		return false
	}

	// Drop at most utf8.UTFMax-1 trailing bytes belonging to a split rune
	for cut := 1; cut < utf8.UTFMax && cut < len(window); cut++ {
		head := window[:len(window)-cut]
		if utf8.Valid(head) && !utf8.FullRune(window[len(window)-cut:]) {
			return !bytes.ContainsRune(head, 0)
		}
	}
	return false
}

// IsOffice reports whether mime is a zip container or one of the Office Open XML formats.
func IsOffice(mime string) bool {
	switch mime {
	case MIMEZip, MIMEDOCX, MIMEXLSX, MIMEPPTX:
		return true
	}
	return false
}

// IsStrong reports whether mime comes from an unambiguous magic-byte signature.
func IsStrong(mime string) bool {
	switch mime {
	case MIMEPDF, MIMEPNG, MIMEJPEG, MIMEGIF:
		return true
	}
	return IsOffice(mime)
}

// IsImage reports whether mime is an image type.
func IsImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}
