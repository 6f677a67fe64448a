package errors

import (
	"strings"
	"unicode"
)

// ValidateBaseName validates an output base name for safety and correctness.
// It rejects names that could be used for path traversal or injection attacks.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path separators or traversal sequences
//   - No null bytes
//   - Maximum length of 200 characters
//
// Cosmetic cleanup (spaces, odd punctuation) is handled separately by the
// naming engine's sanitizer; this function only rejects unsafe input.
func ValidateBaseName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "base name cannot be empty")
	}

	if len(name) > 200 {
		return New(ErrCodeInvalidInput, "base name too long (max 200 characters)")
	}

	// Check for control characters and null bytes
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "base name contains invalid control characters")
		}
	}

	// Check for path traversal patterns
	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "base name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateOutputDir validates an output directory path.
// Unlike base names, directories may be absolute and may contain separators,
// but traversal sequences and control characters are still rejected.
func ValidateOutputDir(dir string) error {
	if dir == "" {
		return New(ErrCodeInvalidPath, "output directory cannot be empty")
	}

	const maxPathLength = 500
	if len(dir) > maxPathLength {
		return New(ErrCodeInvalidPath, "output directory too long (max %d characters)", maxPathLength)
	}

	// Check for null bytes and control characters
	for _, r := range dir {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "output directory contains invalid characters")
		}
	}

	// Check for path traversal
	if strings.Contains(dir, "..") {
		return New(ErrCodeInvalidPath, "output directory cannot contain path traversal sequences (..)")
	}

	return nil
}
