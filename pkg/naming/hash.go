package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// shortHashLen is the number of hex characters kept from the content digest.
// Eight characters keep filenames human-readable while giving ample collision
// tolerance within a single directory; paths are re-verified against existing
// files rather than trusted blindly, so full collision resistance is not
// required.
const shortHashLen = 8

// ShortHash computes the short content digest used in versioned filenames.
// Content is trimmed of surrounding whitespace first, so formatting-only
// differences at the edges do not produce new files. Empty content hashes
// like any other input.
func ShortHash(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])[:shortHashLen]
}
