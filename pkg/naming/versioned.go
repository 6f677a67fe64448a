package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"diagramport/pkg/errors"
)

// VersionedPolicy implements content-addressed naming.
//
// Files are named {base}-{seq:02d}-{hash}.{format}. The sequence number is
// recovered by scanning the output directory on every call, never cached:
// the directory is the source of truth for what has been exported.
type VersionedPolicy struct{}

// Mode returns ModeVersioned.
func (*VersionedPolicy) Mode() Mode { return ModeVersioned }

// ComputePath resolves the versioned output path for content under dir.
//
// If a file whose name embeds the same content hash already exists for the
// (base, format) pair, its path is returned with Reused set - the caller
// must skip the render entirely and treat the existing file as the job's
// output. Otherwise the next free sequence number is allocated, starting
// at 01.
func (*VersionedPolicy) ComputePath(dir, baseName, format, content string) (Record, error) {
	if err := errors.ValidateBaseName(baseName); err != nil {
		return Record{}, err
	}
	base := SanitizeBaseName(baseName)
	hash := ShortHash(content)

	entries, err := readDirIfExists(dir)
	if err != nil {
		return Record{}, err
	}

	pattern, err := versionedPattern(base, format)
	if err != nil {
		return Record{}, errors.Wrap(errors.ErrCodeInternal, err, "build name pattern for %q", base)
	}

	maxSeq := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		seq, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if m[2] == hash {
			// Identical content already exported; existence at this exact
			// path proves content equality by construction.
			return Record{
				OutputPath:  filepath.Join(dir, entry.Name()),
				ContentHash: hash,
				Sequence:    seq,
				Reused:      true,
			}, nil
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}

	seq := maxSeq + 1
	name := fmt.Sprintf("%s-%02d-%s.%s", base, seq, hash, format)
	return Record{
		OutputPath:  filepath.Join(dir, name),
		ContentHash: hash,
		Sequence:    seq,
	}, nil
}

// ShouldSkip reports whether the render can be skipped. In versioned mode
// the path computation already proved content equality, so a reused record
// is sufficient; the existing file's bytes are not re-hashed.
func (*VersionedPolicy) ShouldSkip(rec Record) bool {
	return rec.Reused
}

// versionedPattern builds the filename matcher for a (base, format) pair.
func versionedPattern(base, format string) (*regexp.Regexp, error) {
	expr := fmt.Sprintf(`^%s-(\d{2,})-([0-9a-f]{%d})\.%s$`,
		regexp.QuoteMeta(base), shortHashLen, regexp.QuoteMeta(format))
	return regexp.Compile(expr)
}

// readDirIfExists lists dir, treating a missing directory as empty.
func readDirIfExists(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileSystem, err, "scan output directory %s", dir)
	}
	return entries, nil
}

// Ensure VersionedPolicy implements Policy.
var _ Policy = (*VersionedPolicy)(nil)
