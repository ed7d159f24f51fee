package rag

import (
	"math/rand"
	"strings"
	"testing"
)

func TestChunkEmptyInput(t *testing.T) {
	c := NewChunker()
	for _, input := range []string{"", "   ", "\n\t\n"} {
		_, err := c.Chunk(input)
		if CodeOf(err) != CodeEmptyInput {
			t.Errorf("Chunk(%q): expected empty_input, got %v", input, err)
		}
	}
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := NewChunker()
	chunks, err := c.Chunk("The patient presented with mild symptoms.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestChunkLongReport(t *testing.T) {
	sentence := "The patient shows stable vital signs and no acute distress. "
	text := strings.Repeat(sentence, 42) // ~2500 chars
	c := NewChunker()
	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > c.Size {
			t.Errorf("chunk %d has %d runes, limit %d", i, n, c.Size)
		}
	}
	// consecutive chunks must share text so context survives the split
	for i := 1; i < len(chunks); i++ {
		head := []rune(chunks[i])
		if len(head) > 40 {
			head = head[:40]
		}
		if !strings.Contains(chunks[i-1], string(head)) {
			t.Errorf("chunk %d does not overlap its predecessor", i)
		}
	}
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("Blood pressure 120/80. Heart rate 72 bpm. ", 60)
	c := NewChunker()
	first, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkDeterministicRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"patient", "stable", "hemoglobin", "白血球", "normal", "elevated", "dosage", "10mg"}
	params := []struct{ size, overlap, lookback int }{
		{1000, 200, 200},
		{400, 80, 60},
		{250, 50, 50},
		{120, 30, 20},
		{64, 8, 8},
	}

	for trial := 0; trial < 20; trial++ {
		var b strings.Builder
		n := 200 + rng.Intn(2000)
		for i := 0; i < n; i++ {
			b.WriteString(words[rng.Intn(len(words))])
			switch rng.Intn(12) {
			case 0:
				b.WriteString(".\n\n")
			case 1, 2:
				b.WriteString(". ")
			default:
				b.WriteString(" ")
			}
		}
		text := b.String()

		for _, p := range params {
			c := &Chunker{Size: p.size, Overlap: p.overlap, Lookback: p.lookback}
			first, err := c.Chunk(text)
			if err != nil {
				t.Fatalf("trial %d size=%d: %v", trial, p.size, err)
			}
			second, err := c.Chunk(text)
			if err != nil {
				t.Fatalf("trial %d size=%d second run: %v", trial, p.size, err)
			}
			if len(first) != len(second) {
				t.Fatalf("trial %d size=%d: chunk counts differ, %d vs %d", trial, p.size, len(first), len(second))
			}
			for i := range first {
				if first[i] != second[i] {
					t.Fatalf("trial %d size=%d: chunk %d differs between runs", trial, p.size, i)
				}
				if len([]rune(first[i])) > p.size {
					t.Fatalf("trial %d size=%d: chunk %d has %d runes", trial, p.size, i, len([]rune(first[i])))
				}
				if strings.TrimSpace(first[i]) == "" {
					t.Fatalf("trial %d size=%d: chunk %d is blank", trial, p.size, i)
				}
			}
		}
	}
}

func TestChunkNoWhitespaceHardSplit(t *testing.T) {
	text := strings.Repeat("x", 3000)
	c := NewChunker()
	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected hard split into multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > c.Size {
			t.Errorf("chunk %d has %d runes, limit %d", i, n, c.Size)
		}
	}
	var total int
	for _, chunk := range chunks[:len(chunks)-1] {
		total += len(chunk) - c.Overlap
	}
	total += len(chunks[len(chunks)-1])
	if total < len(text) {
		t.Errorf("chunks cover %d of %d chars", total, len(text))
	}
}

func TestChunkMultiByteRunesNotSplit(t *testing.T) {
	text := strings.Repeat("患者は安定した状態です。", 200)
	c := NewChunker()
	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, chunk := range chunks {
		if !strings.ContainsRune("患者はです。安定した状態", []rune(chunk)[0]) {
			t.Errorf("chunk %d starts mid-character: %q", i, chunk[:12])
		}
		for _, r := range chunk {
			if r == '�' {
				t.Fatalf("chunk %d contains a broken rune", i)
			}
		}
	}
}

func TestChunkEndsAtSentenceBoundary(t *testing.T) {
	para := strings.Repeat("Findings within normal limits. ", 20) // ~620 chars
	text := para + "\n\n" + para + "\n\n" + para
	c := NewChunker()
	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "limits.") {
		t.Errorf("first chunk should end at a boundary, ends %q", chunks[0][len(chunks[0])-20:])
	}
}
