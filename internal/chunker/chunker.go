package chunker

import (
	"regexp"
	"strings"

	"github.com/johnyohanyoon/alfred-ai/config"
)

var reSpaces = regexp.MustCompile(`\s+`)

// Chunker splits raw document text into bounded, overlapping segments
// suitable for embedding. Boundaries prefer sentence or paragraph ends
// within a tolerance window before falling back to a hard character cut.
type Chunker struct {
	maxChars       int
	overlap        int
	boundaryWindow int
}

func New(cfg config.ChunkingConfig) *Chunker {
	return &Chunker{
		maxChars:       cfg.MaxChars,
		overlap:        cfg.OverlapChars,
		boundaryWindow: cfg.BoundaryWindow,
	}
}

// Split breaks text into chunks of at most maxChars characters where each
// chunk starts overlap characters before the previous chunk's end. Sizes
// count runes, not bytes, so a cut never lands inside a multi-byte
// character. Empty or whitespace-only input yields no chunks. Whitespace
// runs are collapsed to single spaces before splitting, so coverage of the
// normalized text is exact.
func (c *Chunker) Split(text string) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.maxChars {
		return []string{text}
	}

	var out []string
	for start := 0; start < len(runes); {
		end := start + c.maxChars
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		end = c.adjustBoundary(runes, start, end)
		out = append(out, string(runes[start:end]))
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// adjustBoundary pulls the cut point back to the nearest sentence end, then
// word end, inside the boundary window. Falls back to the hard cut.
func (c *Chunker) adjustBoundary(runes []rune, start, end int) int {
	if c.boundaryWindow <= 0 {
		return end
	}
	low := end - c.boundaryWindow
	if low <= start {
		low = start + 1
	}
	window := runes[low:end]

	if i := lastSentenceEnd(window); i >= 0 {
		return low + i + 1
	}
	if i := lastSpace(window); i > 0 {
		return low + i
	}
	return end
}

func lastSentenceEnd(s []rune) int {
	best := -1
	for i, r := range s {
		switch r {
		case '.', '!', '?':
			// Only treat as sentence end when followed by a space or when
			// it closes the window.
			if i == len(s)-1 || s[i+1] == ' ' {
				best = i
			}
		}
	}
	return best
}

func lastSpace(s []rune) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' {
			return i
		}
	}
	return -1
}

// Normalize collapses whitespace runs and trims the text. Applied both
// before chunking and when fingerprinting cached queries so that equivalent
// inputs compare equal.
func Normalize(text string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(text, " "))
}
