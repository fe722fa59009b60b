package detection

// Format describes a supported input format
type Format struct {
	Name       string   `json:"name"`
	MIMETypes  []string `json:"mime_types"`
	Extensions []string `json:"extensions"`
	MaxSizeMB  float64  `json:"max_size_mb"`
	Features   []string `json:"features"`
}

var supportedFormats = []Format{
	{Name: "pdf", MIMETypes: []string{MIMEPDF}, Extensions: []string{".pdf"}, Features: []string{"text_extraction"}},
	{Name: "docx", MIMETypes: []string{MIMEDOCX}, Extensions: []string{".docx"}, Features: []string{"text_extraction"}},
	{Name: "xlsx", MIMETypes: []string{MIMEXLSX}, Extensions: []string{".xlsx"}, Features: []string{"tables"}},
	{Name: "pptx", MIMETypes: []string{MIMEPPTX}, Extensions: []string{".pptx"}, Features: []string{"text_extraction"}},
	{Name: "html", MIMETypes: []string{MIMEHTML, "application/xhtml+xml"}, Extensions: []string{".html", ".htm"}, Features: []string{"structure_preservation", "tables", "links", "js_rendering"}},
	{Name: "text", MIMETypes: []string{MIMEText}, Extensions: []string{".txt", ".text"}, Features: []string{"charset_detection"}},
	{Name: "markdown", MIMETypes: []string{MIMEMarkdown}, Extensions: []string{".md", ".markdown"}, Features: []string{"passthrough"}},
	{Name: "csv", MIMETypes: []string{MIMECSV}, Extensions: []string{".csv"}, Features: []string{"tables"}},
	{Name: "json", MIMETypes: []string{MIMEJSON}, Extensions: []string{".json"}, Features: []string{"code_block"}},
	{Name: "xml", MIMETypes: []string{MIMEXML, "text/xml"}, Extensions: []string{".xml"}, Features: []string{"code_block"}},
}

// Formats returns the supported format registry. limit reports the byte ceiling for a MIME
// type and is used to fill MaxSizeMB.
func Formats(limit func(mime string) int64) []Format {
	formats := make([]Format, len(supportedFormats))
	for i, f := range supportedFormats {
		formats[i] = f
		if limit != nil && len(f.MIMETypes) > 0 {
			formats[i].MaxSizeMB = float64(limit(f.MIMETypes[0])) / (1024 * 1024)
		}
	}
	return formats
}

// FormatNames lists the names of all supported formats
func FormatNames() []string {
	names := make([]string, 0, len(supportedFormats))
	for _, f := range supportedFormats {
		names = append(names, f.Name)
	}
	return names
}

// sourceTypes maps MIME types that are not listed in the registry
var sourceTypes = map[string]string{
	MIMEZip:         "zip",
	MIMEPNG:         "image",
	MIMEJPEG:        "image",
	MIMEGIF:         "image",
	MIMEOctetStream: "binary",
	"text/xml":      "xml",
}

// SourceType returns a short name for a MIME type, e.g. "pdf" or "html"
func SourceType(mime string) string {
	mime = NormaliseMIME(mime)
	for _, f := range supportedFormats {
		for _, m := range f.MIMETypes {
			if m == mime {
				return f.Name
			}
		}
	}
	if name, ok := sourceTypes[mime]; ok {
		return name
	}
	return "unknown"
}

// IsSupported reports whether a MIME type can be converted
func IsSupported(mime string) bool {
	name := SourceType(mime)
	for _, f := range supportedFormats {
		if f.Name == name {
			return true
		}
	}
	return false
}
