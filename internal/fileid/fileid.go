// Package fileid derives stable output names for inbox payload files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"unicode"
)

const hashLen = 12

// PageName returns the file name of the rendered page for a payload path.
// The same path always yields the same name, so a page can be removed after
// its payload is gone. The name keeps a readable slug of the base name.
func PageName(payloadPath string) string {
	normalized := filepath.Clean(payloadPath)
	sum := sha256.Sum256([]byte(normalized))
	hash := hex.EncodeToString(sum[:])[:hashLen]
	base := strings.TrimSuffix(filepath.Base(normalized), filepath.Ext(normalized))
	if slug := slugify(base); slug != "" {
		return slug + "-" + hash + ".html"
	}
	return hash + ".html"
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
