package source

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"diagramport/pkg/errors"
)

// DefaultMaxDepth is the default recursion depth for directory discovery.
// Depth 0 is the root directory itself.
const DefaultMaxDepth = 5

// Options configures a discovery pass.
type Options struct {
	// MaxDepth is the maximum directory recursion depth. The root is
	// depth 0; subdirectories deeper than MaxDepth are not entered.
	// Zero means DefaultMaxDepth.
	MaxDepth int

	// Logger receives per-file diagnostics. Defaults to a discarding
	// logger.
	Logger *log.Logger
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.MaxDepth == 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Discover collects diagram sources under root in deterministic traversal
// order (lexical directory order, block order within documents).
//
// Root may be a single file or a directory. An inaccessible root is fatal;
// individual unreadable files inside the tree are logged and skipped so a
// single bad entry cannot abort discovery. Depth is enforced during the
// walk: directories beyond MaxDepth are never entered.
func Discover(root string, opts Options) ([]Source, error) {
	opts.setDefaults()

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "discovery root %s is not accessible", root)
	}

	if !info.IsDir() {
		return FromFile(root)
	}

	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	var sources []Source
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return errors.Wrap(errors.ErrCodeInvalidSource, err, "discovery root %s is not accessible", root)
			}
			opts.Logger.Warn("skipping inaccessible path", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Depth is enforced on directories alone: pruning a directory at
		// MaxDepth+1 keeps every file below it out of the walk, while
		// files directly inside a directory at MaxDepth stay reachable.
		if d.IsDir() {
			depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
			if depth > opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		found, err := FromFile(path)
		if err != nil {
			opts.Logger.Warn("skipping unreadable file", "path", path, "err", err)
			return nil
		}
		sources = append(sources, found...)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return sources, nil
}

// FromFile extracts the diagram sources contained in a single file.
//
// Standalone diagram files produce exactly one source holding the whole
// file text. Markdown files produce one embedded source per fenced mermaid
// block, in document order; a markdown file without any blocks produces
// nothing. Files with other extensions are ignored.
func FromFile(path string) ([]Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !standaloneExtensions[ext] && !markdownExtensions[ext] {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "read %s", path)
	}
	text := string(data)

	if standaloneExtensions[ext] {
		return []Source{{Path: path, Text: text, Kind: KindStandalone}}, nil
	}

	blocks := ExtractBlocks(text)
	sources := make([]Source, len(blocks))
	for i, block := range blocks {
		sources[i] = Source{Path: path, Text: block, Kind: KindEmbedded, BlockIndex: i}
	}
	return sources, nil
}
