package detection

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// officeMembers maps a distinguishing zip member prefix to its Office format
var officeMembers = []struct {
	prefix string
	mime   string
}{
	{"word/", MIMEDOCX},
	{"xl/", MIMEXLSX},
	{"ppt/", MIMEPPTX},
}

// DetectWithHint works like Detect and then refines generic results. Zip containers are
// inspected for Office Open XML members; plain text uses the filename extension to pick
// a more specific text format. The filename is only a hint and is never opened.
func DetectWithHint(data []byte, filename string) string {
	detected := Detect(data)

	switch detected {
	case MIMEZip:
		if office := detectOffice(data); office != "" {
			return office
		}
		if hinted := MIMEFromFilename(filename); IsOffice(hinted) {
			return hinted
		}
	case MIMEText:
		switch hinted := MIMEFromFilename(filename); hinted {
		case MIMEMarkdown, MIMECSV, MIMEJSON, MIMEXML, MIMEHTML:
			return hinted
		}
	}

	return detected
}

// detectOffice returns the Office Open XML type of a zip container, or "" when the
// archive does not look like one.
func detectOffice(data []byte) string {
	// mimetype only reads the first entries of the archive
	if m := mimetype.Detect(data); m != nil {
		for _, candidate := range []string{MIMEDOCX, MIMEXLSX, MIMEPPTX} {
			if m.Is(candidate) {
				return candidate
			}
		}
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range reader.File {
		name := strings.ToLower(f.Name)
		for _, member := range officeMembers {
			if strings.HasPrefix(name, member.prefix) {
				return member.mime
			}
		}
	}
	return ""
}

// extensionTypes maps lowercase file extensions to MIME types
var extensionTypes = map[string]string{
	".pdf":      MIMEPDF,
	".docx":     MIMEDOCX,
	".xlsx":     MIMEXLSX,
	".pptx":     MIMEPPTX,
	".zip":      MIMEZip,
	".png":      MIMEPNG,
	".jpg":      MIMEJPEG,
	".jpeg":     MIMEJPEG,
	".gif":      MIMEGIF,
	".html":     MIMEHTML,
	".htm":      MIMEHTML,
	".txt":      MIMEText,
	".text":     MIMEText,
	".md":       MIMEMarkdown,
	".markdown": MIMEMarkdown,
	".csv":      MIMECSV,
	".json":     MIMEJSON,
	".xml":      MIMEXML,
}

// MIMEFromFilename returns the MIME type associated with the filename extension, or ""
func MIMEFromFilename(filename string) string {
	if filename == "" {
		return ""
	}
	return extensionTypes[strings.ToLower(filepath.Ext(filename))]
}
