package extract

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultContextWindow is the token budget assumed for a provider
	// when none is configured.
	DefaultContextWindow = 32000

	// chunkOverlap repeats the tail of one chunk at the head of the next so
	// an event split across the boundary is seen whole at least once.
	chunkOverlap = 200
)

// ChunkDocument splits a syllabus into pieces that fit within the
// provider's context window. Tokens are estimated as len(text)/4 and a
// quarter of the window is left for the prompt and the reply.
func ChunkDocument(text string, contextWindow int) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}

	maxTokensPerChunk := (contextWindow * 3) / 4
	if len(text)/4 <= maxTokensPerChunk {
		return []string{text}
	}

	maxChars := maxTokensPerChunk * 4
	overlap := chunkOverlap
	if overlap >= maxChars/2 {
		overlap = maxChars / 4
	}

	var chunks []string
	pos := 0
	for pos < len(text) {
		end := pos + maxChars
		if end >= len(text) {
			end = len(text)
		} else {
			end = splitPoint(text, pos, end)
		}

		if chunk := text[pos:end]; strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(text) {
			break
		}

		next := runeStart(text, end-overlap)
		if next <= pos {
			next = end
		}
		pos = next
	}

	if len(chunks) == 0 {
		chunks = []string{text}
	}
	return chunks
}

// splitPoint picks where a chunk running from pos to at most end should
// stop: a paragraph break in its last third, else a line break there, else
// the nearest rune boundary. Schedules are line oriented, so cutting a
// line in half would lose the date or the title.
func splitPoint(text string, pos, end int) int {
	window := text[pos:end]
	searchStart := len(window) * 2 / 3
	for _, sep := range []string{"\n\n", "\n"} {
		if idx := strings.LastIndex(window[searchStart:], sep); idx != -1 {
			return pos + searchStart + idx + len(sep)
		}
	}
	return runeStart(text, end)
}

// runeStart moves i back to the start of the rune containing it.
func runeStart(text string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(text) {
		return len(text)
	}
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}
