// Package checksum fingerprints note files. The index uses it to skip
// unchanged files and the API uses it as the note's entity tag.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether tag names the current content. Quoted and weak
// entity tags ("abc", W/"abc") are accepted; an empty tag or "*" matches
// anything.
func Matches(data []byte, tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || tag == "*" {
		return true
	}
	tag = strings.TrimPrefix(tag, "W/")
	tag = strings.Trim(tag, `"`)
	return strings.EqualFold(tag, Sum(data))
}
