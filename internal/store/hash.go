package store

import (
	"crypto/sha256"
	"fmt"
)

// HashContent computes the SHA-256 of a syllabus's label and text. Saving
// the same file twice yields the same hash, which `syllabus list` shows so
// re-extractions of one document can be spotted.
func HashContent(label, text string) string {
	h := sha256.New()
	h.Write([]byte(label))
	h.Write([]byte{0}) // separator
	h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum(nil))
}
