package orchestrator

import "strings"

// TruncationMarker is appended when output is cut to max_length
const TruncationMarker = "..."

// CleanMarkdown trims every line, collapses runs of blank lines into one and drops
// leading and trailing blank lines. Fenced code blocks are left untouched.
func CleanMarkdown(markdown string) string {
	if markdown == "" {
		return markdown
	}

	lines := strings.Split(markdown, "\n")
	cleaned := make([]string, 0, len(lines))

	var inCodeBlock bool
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			inCodeBlock = !inCodeBlock
			cleaned = append(cleaned, trimmed)
			continue
		}
		if inCodeBlock {
			cleaned = append(cleaned, strings.TrimRight(line, " \t\r"))
			continue
		}

		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		} else if len(cleaned) > 0 && cleaned[len(cleaned)-1] != "" {
			cleaned = append(cleaned, "")
		}
	}

	for len(cleaned) > 0 && cleaned[len(cleaned)-1] == "" {
		cleaned = cleaned[:len(cleaned)-1]
	}

	return strings.Join(cleaned, "\n")
}

// Truncate cuts markdown to maxLength characters and appends TruncationMarker. The
// second return value reports whether anything was cut.
func Truncate(markdown string, maxLength int) (string, bool) {
	if maxLength <= 0 {
		return markdown, false
	}

	runes := []rune(markdown)
	if len(runes) <= maxLength {
		return markdown, false
	}
	return string(runes[:maxLength]) + TruncationMarker, true
}
