package textsafety

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	g := NewGuard(nil)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean text passes through",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:     "unicode preserved",
			input:    "olá mundo 世界",
			expected: "olá mundo 世界",
		},
		{
			name:     "control characters stripped",
			input:    "he\x00llo\x01 wor\x1fld",
			expected: "hello world",
		},
		{
			name:     "newline tab and cr kept",
			input:    "line one\nline two\tend",
			expected: "line one\nline two end",
		},
		{
			name:     "orphaned surrogate bytes removed",
			input:    "before\xed\xa0\x80after",
			expected: "beforeafter",
		},
		{
			name:     "invalid utf8 bytes dropped",
			input:    "caf\xff\xfeé",
			expected: "café",
		},
		{
			name:     "excess newlines collapsed",
			input:    "a\n\n\n\n\nb",
			expected: "a\n\nb",
		},
		{
			name:     "space runs collapsed and lines trimmed",
			input:    "  a   b  \n   c\t\td   ",
			expected: "a b\nc d",
		},
		{
			name:     "empty input yields placeholder",
			input:    "",
			expected: Placeholder,
		},
		{
			name:     "only control bytes yields placeholder",
			input:    "\x00\x01\x02",
			expected: Placeholder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, g.Sanitize(tt.input))
		})
	}
}

func TestSanitize_SurrogateRemovalKeepsRemainder(t *testing.T) {
	g := NewGuard(nil)

	// A lone high surrogate encoded as WTF-8, as leaked by some PDF
	// extractors, embedded in otherwise healthy text.
	input := "intro \xed\xbf\xbf body conclusion"
	out := g.Sanitize(input)

	assert.Equal(t, "intro body conclusion", out)
}

func TestSanitize_OutputContract(t *testing.T) {
	g := NewGuard(nil)

	inputs := []string{
		"",
		"plain",
		"\xed\xa0\x80",
		"mixed \xff content \x00 here",
		strings.Repeat("\n", 50),
		"très long éléphant \U0001F600",
		string(rune(0x7F)),
	}

	for _, input := range inputs {
		out := g.Sanitize(input)

		require.NotEmpty(t, out, "input %q", input)
		assert.True(t, utf8.ValidString(out), "input %q", input)
		_, err := json.Marshal(out)
		assert.NoError(t, err, "input %q", input)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	g := NewGuard(nil)

	inputs := []string{
		"hello\nworld",
		"a\n\n\n\nb",
		"café \x01 bar",
		"\xed\xa0\x80 tail",
	}

	for _, input := range inputs {
		once := g.Sanitize(input)
		twice := g.Sanitize(once)
		assert.Equal(t, once, twice, "input %q", input)
	}
}

func TestASCIIFallback(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "printable ascii kept",
			input:    "abc 123!",
			expected: "abc 123!",
		},
		{
			name:     "non-ascii dropped",
			input:    "café 世界 ok",
			expected: "caf  ok",
		},
		{
			name:     "whitespace kept",
			input:    "a\nb\tc",
			expected: "a\nb\tc",
		},
		{
			name:     "control bytes dropped",
			input:    "a\x00b\x1fc",
			expected: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ASCIIFallback(tt.input))
		})
	}
}

func TestVerify(t *testing.T) {
	assert.NoError(t, Verify("ok"))
	assert.Error(t, Verify(""))
	assert.Error(t, Verify("   "))
	assert.Error(t, Verify("bad\xffbytes"))
}
