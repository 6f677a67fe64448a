package source

import "strings"

// fenceMarker opens and closes fenced code blocks.
const fenceMarker = "```"

// ExtractBlocks returns the text of every fenced mermaid code block in a
// markdown document, in document order. The fence info string must name
// mermaid (optionally with attributes, e.g. "mermaid {theme:dark}"); other
// fenced blocks are ignored. An unterminated fence yields the remaining
// lines of the document.
func ExtractBlocks(doc string) []string {
	var blocks []string
	var current []string
	inBlock := false

	for _, line := range strings.Split(doc, "\n") {
		trimmed := strings.TrimSpace(line)

		if inBlock {
			if strings.HasPrefix(trimmed, fenceMarker) {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = nil
				inBlock = false
				continue
			}
			current = append(current, line)
			continue
		}

		if isMermaidFence(trimmed) {
			inBlock = true
		}
	}

	if inBlock {
		blocks = append(blocks, strings.Join(current, "\n"))
	}

	return blocks
}

// isMermaidFence reports whether a trimmed line opens a mermaid code fence.
func isMermaidFence(line string) bool {
	if !strings.HasPrefix(line, fenceMarker) {
		return false
	}
	info := strings.TrimSpace(strings.TrimPrefix(line, fenceMarker))
	return info == "mermaid" || strings.HasPrefix(info, "mermaid ") || strings.HasPrefix(info, "mermaid{")
}
