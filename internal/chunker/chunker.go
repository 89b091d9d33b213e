// Package chunker splits document text into overlapping chunks sized for
// embedding. It prefers splitting at paragraph and sentence boundaries and
// only falls back to mid-word cuts when a single run of text exceeds the
// chunk size on its own.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSize is the target chunk length in characters.
	DefaultSize = 1000

	// DefaultOverlap is how many trailing characters of one chunk reappear
	// at the start of the next.
	DefaultOverlap = 200
)

// separators are tried in order, coarsest boundary first. The empty string
// is the last resort: a hard cut at the size limit.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text recursively at natural boundaries.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Non-positive arguments take the defaults.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		return nil, fmt.Errorf("overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the target chunk length in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// Split divides text into chunks of at most Size characters with Overlap
// characters of continuity between consecutive chunks. Empty input yields
// no chunks.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, separators)
}

func (c *Chunker) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = hardCut(text, c.size)
	} else {
		pieces = strings.SplitAfter(text, sep)
	}

	var chunks []string
	var pending []string
	for _, piece := range pieces {
		if runeLen(piece) <= c.size {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, c.merge(pending)...)
			pending = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, c.split(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, c.merge(pending)...)
	}
	return chunks
}

// merge packs adjacent pieces into chunks up to the size limit, carrying the
// overlap tail forward into the next chunk.
func (c *Chunker) merge(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0

	flush := func() {
		chunk := strings.TrimSpace(strings.Join(current, ""))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > c.size && len(current) > 0 {
			flush()
			for len(current) > 0 && (total > c.overlap || total+n > c.size) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if len(current) > 0 {
		flush()
	}
	return chunks
}

// hardCut slices text into fixed-size rune windows without boundary hints.
func hardCut(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
