package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarkdownImporter handles .md and .markdown files.
type MarkdownImporter struct{}

// CanHandle returns true for Markdown file extensions.
func (m *MarkdownImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// Parse strips YAML front matter, keeping it as metadata. A "title" or
// "course" key becomes the document label. Markdown markup is left in
// place; the extractors treat "#" headers and "-" bullets as noise.
func (m *MarkdownImporter) Parse(data []byte) (Document, error) {
	content := normalizeText(data)
	metadata, body, err := stripFrontMatter(content)
	if err != nil {
		return Document{}, err
	}
	doc := Document{Text: body, Metadata: metadata}
	for _, key := range []string{"title", "course"} {
		if v := strings.TrimSpace(metadata[key]); v != "" {
			doc.Label = v
			break
		}
	}
	return doc, nil
}

// stripFrontMatter splits a leading "---" block off content.
func stripFrontMatter(content string) (map[string]string, string, error) {
	trimmed := strings.TrimLeft(content, " \t\n")
	if !strings.HasPrefix(trimmed, "---\n") {
		return nil, content, nil
	}

	rest := trimmed[4:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, content, nil
	}
	fm := rest[:idx]
	body := strings.TrimPrefix(rest[idx+4:], "\n")

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(fm), &raw); err != nil {
		return nil, "", fmt.Errorf("front matter: %w", err)
	}
	metadata := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		metadata[k] = strings.TrimSpace(fmt.Sprint(v))
	}
	return metadata, body, nil
}
