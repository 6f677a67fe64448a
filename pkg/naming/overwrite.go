package naming

import (
	"fmt"
	"path/filepath"
	"regexp"

	"diagramport/pkg/errors"
)

// OverwritePolicy implements stable naming.
//
// The output path is a pure function of the base name and format: a trailing
// number carried over from the source name is kept as the stable suffix
// (defaulting to 1), and content identity never influences the path. Stable
// names trade deduplication for predictability: every export re-renders so
// the file reflects the latest content. This is a deliberate policy choice,
// not a gap in the skip logic.
type OverwritePolicy struct{}

// Mode returns ModeOverwrite.
func (*OverwritePolicy) Mode() Mode { return ModeOverwrite }

// trailingNumberPattern splits a base name into its stem and an optional
// trailing numeric suffix.
var trailingNumberPattern = regexp.MustCompile(`^(.*?)(\d+)$`)

// ComputePath resolves the stable output path for content under dir.
// The content hash is still computed and recorded, but it plays no part in
// the path: {stem}{suffix}.{format} is identical across every invocation
// with the same base name and format.
func (*OverwritePolicy) ComputePath(dir, baseName, format, content string) (Record, error) {
	if err := errors.ValidateBaseName(baseName); err != nil {
		return Record{}, err
	}
	base := SanitizeBaseName(baseName)
	hash := ShortHash(content)

	stem, suffix := base, "1"
	if m := trailingNumberPattern.FindStringSubmatch(base); m != nil && m[1] != "" {
		stem, suffix = m[1], m[2]
	}

	name := fmt.Sprintf("%s%s.%s", stem, suffix, format)
	return Record{
		OutputPath:  filepath.Join(dir, name),
		ContentHash: hash,
	}, nil
}

// ShouldSkip always reports false: overwrite mode performs a fresh render
// on every export so the stable file tracks the latest content.
func (*OverwritePolicy) ShouldSkip(Record) bool {
	return false
}

// Ensure OverwritePolicy implements Policy.
var _ Policy = (*OverwritePolicy)(nil)
