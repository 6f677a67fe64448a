package naming

import (
	"strings"
	"unicode"
)

// fallbackBaseName is used when sanitization removes every character.
const fallbackBaseName = "diagram"

// invalidNameRunes are characters that are unsafe or invalid in filenames
// on at least one supported filesystem.
const invalidNameRunes = `/\:*?"<>|`

// SanitizeBaseName cleans a base name so it is safe to use as a filename
// component. Path separators, traversal sequences, control characters, and
// filesystem-reserved characters are stripped; surrounding whitespace and
// dots are trimmed. If nothing survives, a fallback name is returned.
//
// Sanitization happens once, before any sequence or hash lookup, so the
// sanitized name is what all directory scans operate against.
func SanitizeBaseName(name string) string {
	// Drop traversal sequences before per-rune filtering so "..%2F"-style
	// fragments cannot reassemble.
	name = strings.ReplaceAll(name, "..", "")

	var b strings.Builder
	for _, r := range name {
		if unicode.IsControl(r) || strings.ContainsRune(invalidNameRunes, r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.Trim(b.String(), " .")
	if cleaned == "" {
		return fallbackBaseName
	}
	return cleaned
}
