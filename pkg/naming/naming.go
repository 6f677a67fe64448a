// Package naming computes deterministic output paths for rendered diagrams.
//
// This package implements the two naming policies used by the export
// orchestrator:
//
//   - Versioned: content-addressed naming. Each distinct diagram content gets
//     a new file named {base}-{seq}-{hash}.{format}, where seq is a two-digit
//     sequence number recovered by scanning the output directory and hash is
//     a short digest of the trimmed content. Re-exporting identical content
//     resolves to the existing file and the render step is skipped.
//
//   - Overwrite: stable naming. The output path is a pure function of the
//     base name and format ({base}{n}.{format}); every export re-renders so
//     the file always reflects the latest content.
//
// Sequence numbers are never held in memory between calls. The output
// directory is the source of truth: each ComputePath call rescans it, so
// naming stays correct across process restarts and concurrent invocations
// (see LockSequence for the concurrent case).
//
// # Usage
//
//	policy, err := naming.ForMode(naming.ModeVersioned)
//	if err != nil {
//	    return err
//	}
//	rec, err := policy.ComputePath("out", "diagram", "svg", content)
//	if err != nil {
//	    return err
//	}
//	if policy.ShouldSkip(rec) {
//	    // identical content already exported at rec.OutputPath
//	}
package naming

import (
	"diagramport/pkg/errors"
)

// Mode selects a naming policy.
type Mode string

// Supported naming modes.
const (
	// ModeVersioned creates a new file per distinct content, reusing
	// existing files for repeated content.
	ModeVersioned Mode = "versioned"

	// ModeOverwrite always writes to the same stable path regardless of
	// content changes.
	ModeOverwrite Mode = "overwrite"
)

// ValidModes is the set of supported naming modes.
var ValidModes = map[Mode]bool{
	ModeVersioned: true,
	ModeOverwrite: true,
}

// ValidateMode checks that a naming mode is valid.
func ValidateMode(mode Mode) error {
	if !ValidModes[mode] {
		return errors.New(errors.ErrCodeInvalidNamingMode,
			"invalid naming mode: %q (must be 'versioned' or 'overwrite')", mode)
	}
	return nil
}

// Record is the result of a path computation.
type Record struct {
	// OutputPath is the full path the artifact should be written to.
	OutputPath string

	// ContentHash is the short digest of the trimmed content.
	ContentHash string

	// Sequence is the allocated sequence number (versioned mode only).
	Sequence int

	// Reused reports whether an existing file with identical content
	// identity was found at OutputPath.
	Reused bool
}

// Policy computes output paths and skip decisions for one naming mode.
//
// Implementations are stateless; the output directory itself carries all
// state. Policies are safe for concurrent use, but concurrent writers to
// the same (directory, base, format) triple must serialize the
// compute-then-write window with LockSequence.
type Policy interface {
	// Mode returns the mode this policy implements.
	Mode() Mode

	// ComputePath resolves the output path for content under dir.
	// The base name is sanitized before any directory lookup.
	ComputePath(dir, baseName, format, content string) (Record, error)

	// ShouldSkip reports whether the render step can be skipped for a
	// record previously returned by ComputePath.
	ShouldSkip(rec Record) bool
}

// ForMode returns the policy implementing the given mode.
func ForMode(mode Mode) (Policy, error) {
	switch mode {
	case ModeVersioned:
		return &VersionedPolicy{}, nil
	case ModeOverwrite:
		return &OverwritePolicy{}, nil
	default:
		return nil, ValidateMode(mode)
	}
}
