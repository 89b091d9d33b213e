// Package textsafety repairs arbitrary text so it survives UTF-8 encoding,
// JSON serialization, and transport to embedding and index APIs.
//
// The dominant real-world failure mode is orphaned UTF-16 surrogate code
// points leaked by PDF/DOCX extractors; those arrive here as invalid UTF-8
// byte sequences and are dropped. Sanitize never fails and never returns an
// empty string: callers downstream may assume the output round-trips through
// strict UTF-8 encoding and JSON without re-checking.
package textsafety

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/plnlabs/vectord/internal/logging"
)

// Placeholder is substituted when no usable text survives the fallback
// ladder. Downstream code is contractually owed a non-empty string.
const Placeholder = "content could not be recovered from charset corruption"

var (
	// residualControl matches ASCII control bytes that survive rune-level
	// stripping, excluding \t \n \r.
	residualControl = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	excessNewlines = regexp.MustCompile(`\n{3,}`)
	spaceRuns      = regexp.MustCompile(`[ \t]+`)
)

// Guard validates and repairs text before it crosses a process boundary.
type Guard struct {
	logger *logging.Logger
}

// NewGuard creates a guard. A nil logger disables diagnostics.
func NewGuard(logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Guard{logger: logger.Named("textsafety")}
}

// Sanitize returns a transport-safe, non-empty version of text.
//
// Stages, each idempotent:
//  1. Strip Unicode control-category runes except \n \r \t, dropping
//     undecodable byte sequences (orphaned surrogates) along the way.
//  2. Normalize to NFC.
//  3. Re-encode as valid UTF-8, discarding anything left over.
//  4. Strip residual ASCII control bytes.
//  5. Collapse 3+ newlines to 2, collapse space/tab runs, trim lines.
//
// If the result fails verification or comes out empty, the ladder falls
// back to a printable-ASCII filter and finally to Placeholder.
func (g *Guard) Sanitize(text string) string {
	cleaned := collapseWhitespace(residualControl.ReplaceAllString(
		strings.ToValidUTF8(norm.NFC.String(stripUnsafeRunes(text)), ""), ""))

	if err := Verify(cleaned); err == nil {
		return cleaned
	}

	ascii := strings.TrimSpace(ASCIIFallback(text))
	if ascii != "" && Verify(ascii) == nil {
		g.logger.Debug(context.Background(), "sanitize fell back to ascii filter",
			zap.Int("input_bytes", len(text)),
		)
		return ascii
	}

	g.logger.Warn(context.Background(), "sanitize exhausted fallback ladder, substituting placeholder",
		zap.Int("input_bytes", len(text)),
	)
	return Placeholder
}

// ASCIIFallback retains only printable ASCII and whitespace. It is the
// first rung of the fallback ladder and is also used by the embedding
// provider for its one-shot retry after a remote rejection.
func ASCIIFallback(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= 128 {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Verify reports whether text satisfies the sanitized-output contract:
// non-empty, strictly valid UTF-8, and JSON-serializable.
func Verify(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is empty")
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("text is not valid UTF-8")
	}
	if _, err := json.Marshal(text); err != nil {
		return fmt.Errorf("text is not JSON-serializable: %w", err)
	}
	return nil
}

// stripUnsafeRunes removes Unicode control-category runes (keeping \n \r \t)
// and drops bytes that do not decode as UTF-8. Orphaned UTF-16 surrogates
// surface here as invalid byte sequences and are discarded.
func stripUnsafeRunes(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.Is(unicode.C, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// collapseWhitespace normalizes vertical and horizontal whitespace runs and
// trims each line.
func collapseWhitespace(text string) string {
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
