// Package ingest reads syllabus documents from disk and hands back clean
// text ready for extraction.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize is 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024

var (
	ErrUnsupported = errors.New("unsupported document format")
	ErrTooLarge    = errors.New("document too large")
)

// Document is one syllabus read from disk.
type Document struct {
	Path     string            // absolute path
	Label    string            // base name, or the front matter title
	Text     string            // normalized body text
	Metadata map[string]string // front matter, when present
}

// Importer handles a specific file format.
type Importer interface {
	// CanHandle returns true if this importer supports the given file path.
	CanHandle(path string) bool
	// Parse turns raw file contents into a Document. Path and Label are
	// filled in by ReadDocument when left empty.
	Parse(data []byte) (Document, error)
}

// Importers is the default importer list, tried in order.
var Importers = []Importer{
	&MarkdownImporter{},
	&PlainTextImporter{},
}

// Supported reports whether path has an extension ReadDocument accepts.
func Supported(path string) bool {
	return importerFor(path) != nil
}

func importerFor(path string) Importer {
	for _, imp := range Importers {
		if imp.CanHandle(path) {
			return imp
		}
	}
	return nil
}

// ReadDocument reads and normalizes a syllabus file.
func ReadDocument(path string) (Document, error) {
	imp := importerFor(path)
	if imp == nil {
		return Document{}, fmt.Errorf("%s: %w (supported: .txt, .text, .md, .markdown)", path, ErrUnsupported)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Document{}, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return Document{}, err
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > DefaultMaxFileSize {
		return Document{}, fmt.Errorf("%s: %w (%d bytes)", path, ErrTooLarge, info.Size())
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Document{}, err
	}

	doc, err := imp.Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	doc.Path = absPath
	if doc.Label == "" {
		doc.Label = filepath.Base(absPath)
	}
	return doc, nil
}

// normalizeText strips a byte order mark, converts line endings and drops
// invalid UTF-8.
func normalizeText(data []byte) string {
	s := strings.TrimPrefix(string(data), "\uFEFF")
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
