package rag

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	// DefaultLookback bounds how far back a window end may snap to a
	// paragraph, sentence or word boundary before falling back to a hard split.
	DefaultLookback = 200
)

// Chunker splits extracted report text into overlapping passages. Size and
// Overlap are measured in runes so multi-byte text never splits mid-character.
type Chunker struct {
	Size     int
	Overlap  int
	Lookback int
}

func NewChunker() *Chunker {
	return &Chunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap, Lookback: DefaultLookback}
}

// Chunk returns the ordered passages of rawText. The same input always yields
// the same output. Whitespace-only input is rejected.
func (c *Chunker) Chunk(rawText string) ([]string, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, ErrEmptyInput()
	}

	size := c.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := c.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	lookback := c.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}, nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunk := strings.TrimSpace(string(runes[start:]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		end = snapToBoundary(runes, start, end, lookback)
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - overlap
		next = snapToWordStart(runes, next, end, lookback)
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// snapToBoundary moves end back to the nearest paragraph break, sentence end
// or space within lookback runes. Returns end unchanged when no boundary is
// found, which hard-splits degenerate text with no whitespace.
func snapToBoundary(runes []rune, start, end, lookback int) int {
	limit := end - lookback
	if limit < start+1 {
		limit = start + 1
	}

	for i := end; i > limit; i-- {
		if i+1 < len(runes) && runes[i-1] == '\n' && runes[i] == '\n' {
			return i + 1
		}
	}
	for i := end; i > limit; i-- {
		if isSentenceEnd(runes[i-1]) && unicode.IsSpace(runes[i]) {
			return i
		}
	}
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// snapToWordStart moves pos back to the rune after the nearest whitespace so
// overlapping chunks begin on a word.
func snapToWordStart(runes []rune, pos, end, lookback int) int {
	if pos <= 0 || pos >= len(runes) {
		return pos
	}
	limit := pos - lookback
	if limit < 0 {
		limit = 0
	}
	for i := pos; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return pos
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
