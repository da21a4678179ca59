package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/johnyohanyoon/alfred-ai/config"
)

func newChunker(maxChars, overlap, window int) *Chunker {
	return New(config.ChunkingConfig{
		MaxChars:       maxChars,
		OverlapChars:   overlap,
		BoundaryWindow: window,
	})
}

func TestSplitEmptyInput(t *testing.T) {
	c := newChunker(100, 20, 10)
	if got := c.Split(""); got != nil {
		t.Fatalf("expected nil for empty input, got %#v", got)
	}
	if got := c.Split("   \n\t  "); got != nil {
		t.Fatalf("expected nil for whitespace input, got %#v", got)
	}
}

func TestSplitSingleChunk(t *testing.T) {
	c := newChunker(100, 20, 10)
	text := "short text that fits in a single chunk"
	got := c.Split(text)
	if len(got) != 1 || got[0] != text {
		t.Fatalf("expected one chunk equal to input, got %#v", got)
	}
	// Idempotent on already-chunk-sized input.
	again := c.Split(got[0])
	if len(again) != 1 || again[0] != got[0] {
		t.Fatalf("re-splitting a single chunk should be a no-op, got %#v", again)
	}
}

func TestSplitReconstructsOriginal(t *testing.T) {
	const overlap = 20
	c := newChunker(80, overlap, 0)
	text := strings.Repeat("abcdefghij", 50) // 500 chars, no natural boundaries
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	rebuilt := chunks[0]
	for _, ch := range chunks[1:] {
		if !strings.HasSuffix(rebuilt, ch[:overlap]) {
			t.Fatalf("chunk head does not overlap previous tail")
		}
		rebuilt += ch[overlap:]
	}
	if rebuilt != text {
		t.Fatalf("reconstruction mismatch: got %d chars, want %d", len(rebuilt), len(text))
	}
}

func TestSplitZeroOverlapDisjoint(t *testing.T) {
	c := newChunker(50, 0, 0)
	text := strings.Repeat("x", 220)
	chunks := c.Split(text)
	total := 0
	for _, ch := range chunks {
		total += len(ch)
	}
	if total != len(text) {
		t.Fatalf("disjoint chunks should cover text exactly: got %d chars, want %d", total, len(text))
	}
	if strings.Join(chunks, "") != text {
		t.Fatalf("concatenation of disjoint chunks should equal input")
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	c := newChunker(60, 0, 40)
	text := "This is the first sentence. This is the second one that keeps going for a while longer."
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least two chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Fatalf("expected first chunk to end at a sentence boundary, got %q", chunks[0])
	}
}

func TestSplitMultibyteText(t *testing.T) {
	const overlap = 10
	c := newChunker(100, overlap, 0)
	// No spaces or sentence ends, so every cut is a hard cut.
	text := strings.Repeat("안녕하세요", 100) // 500 runes, 1500 bytes
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, ch := range chunks {
		if !utf8.ValidString(ch) {
			t.Fatalf("chunk %d contains invalid UTF-8: %q", i, ch)
		}
		if n := utf8.RuneCountInString(ch); n > 100 {
			t.Fatalf("chunk %d has %d runes, want <= 100", i, n)
		}
	}

	rebuilt := []rune(chunks[0])
	for _, ch := range chunks[1:] {
		r := []rune(ch)
		if string(rebuilt[len(rebuilt)-overlap:]) != string(r[:overlap]) {
			t.Fatalf("chunk head does not overlap previous tail")
		}
		rebuilt = append(rebuilt, r[overlap:]...)
	}
	if string(rebuilt) != text {
		t.Fatalf("reconstruction mismatch: got %d runes, want %d", len(rebuilt), utf8.RuneCountInString(text))
	}
}

func TestSplitMultibyteWordBoundary(t *testing.T) {
	c := newChunker(20, 0, 10)
	text := strings.Repeat("héllo wörld ", 10)
	for i, ch := range c.Split(text) {
		if !utf8.ValidString(ch) {
			t.Fatalf("chunk %d contains invalid UTF-8: %q", i, ch)
		}
	}
}

func TestSplitNormalizesWhitespace(t *testing.T) {
	c := newChunker(100, 0, 0)
	got := c.Split("hello \n\t world")
	if len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("expected whitespace-normalized chunk, got %#v", got)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Hello \n  World  "); got != "Hello World" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}
