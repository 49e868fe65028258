package ingest

import (
	"path/filepath"
	"strings"
)

// PlainTextImporter handles .txt and .text files.
type PlainTextImporter struct{}

// CanHandle returns true for plain text extensions.
func (t *PlainTextImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".text"
}

// Parse normalizes the file contents. Blank files produce an empty
// document rather than an error.
func (t *PlainTextImporter) Parse(data []byte) (Document, error) {
	return Document{Text: normalizeText(data)}, nil
}
