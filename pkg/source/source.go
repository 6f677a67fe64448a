// Package source discovers diagram sources on disk.
//
// A source is one unit of diagram text to be rendered: either a standalone
// diagram file (.mmd, .mermaid) or one fenced mermaid block embedded in a
// markdown document. Discovery walks a file tree with a configurable
// maximum recursion depth and returns sources in deterministic traversal
// order, which downstream batch processing relies on for reproducible
// output.
package source

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind distinguishes the two source shapes.
type Kind string

// Source kinds.
const (
	// KindStandalone is a file whose entire content is one diagram.
	KindStandalone Kind = "standalone"

	// KindEmbedded is one fenced diagram block inside a larger document.
	KindEmbedded Kind = "embedded-block"
)

// Source is one discovered unit of diagram text. Sources are immutable
// once created and scoped to a single discovery pass.
type Source struct {
	// Path is the file the source was found in.
	Path string

	// Text is the raw diagram text.
	Text string

	// Kind reports whether this is a standalone file or an embedded block.
	Kind Kind

	// BlockIndex is the zero-based index of the block within its document.
	// Only meaningful for embedded sources.
	BlockIndex int
}

// BaseName derives the output base name for this source: the file stem for
// standalone files, and stem-N (1-based) for embedded blocks so multiple
// blocks in one document get distinct names.
func (s Source) BaseName() string {
	stem := strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
	if s.Kind == KindEmbedded {
		return fmt.Sprintf("%s-%d", stem, s.BlockIndex+1)
	}
	return stem
}

// standaloneExtensions are file extensions treated as whole-file diagrams.
var standaloneExtensions = map[string]bool{
	".mmd":     true,
	".mermaid": true,
}

// markdownExtensions are file extensions scanned for embedded blocks.
var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}
