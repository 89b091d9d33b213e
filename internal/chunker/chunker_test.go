package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c, err := New(0, -1)
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, c.Size())
	assert.Equal(t, DefaultOverlap, c.Overlap())
}

func TestNew_OverlapTooLarge(t *testing.T) {
	_, err := New(100, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be smaller than chunk size")
}

func TestSplit_Empty(t *testing.T) {
	c, err := New(0, 0)
	require.NoError(t, err)

	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	c, err := New(0, 0)
	require.NoError(t, err)

	chunks := c.Split("hello world")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestSplit_ParagraphBoundaries(t *testing.T) {
	paraA := strings.Repeat("a", 600)
	paraB := strings.Repeat("b", 600)

	c, err := New(1000, 200)
	require.NoError(t, err)

	chunks := c.Split(paraA + "\n\n" + paraB)
	require.Len(t, chunks, 2)
	assert.Equal(t, paraA, chunks[0])
	assert.Equal(t, paraB, chunks[1])
}

func TestSplit_OverlapCarriesTail(t *testing.T) {
	lines := []string{
		strings.Repeat("a", 9),
		strings.Repeat("b", 9),
		strings.Repeat("c", 9),
		strings.Repeat("d", 9),
		strings.Repeat("e", 9),
		strings.Repeat("f", 9),
	}

	c, err := New(35, 15)
	require.NoError(t, err)

	chunks := c.Split(strings.Join(lines, "\n"))
	require.Greater(t, len(chunks), 1)

	// Each chunk after the first starts with the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		prevLines := strings.Split(chunks[i-1], "\n")
		lastLine := prevLines[len(prevLines)-1]
		assert.True(t, strings.HasPrefix(chunks[i], lastLine),
			"chunk %d does not continue from chunk %d", i, i-1)
	}
}

func TestSplit_HardCutUnbrokenText(t *testing.T) {
	text := strings.Repeat("x", 2500)

	c, err := New(1000, 200)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 500)
}

func TestSplit_NeverExceedsSize(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)

	c, err := New(0, 0)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), c.Size(), "chunk %d too large", i)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestSplit_MultibyteSafe(t *testing.T) {
	text := strings.Repeat("日本語のテキスト", 400)

	c, err := New(1000, 200)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %d not valid utf-8", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 1000)
	}
}

func TestSplit_PreservesOrder(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString(strings.Repeat(string(rune('a'+i%26)), 30))
		sb.WriteString("\n")
	}

	c, err := New(100, 20)
	require.NoError(t, err)

	chunks := c.Split(sb.String())
	require.Greater(t, len(chunks), 1)

	// First characters of consecutive chunks never move backwards through
	// the alphabet run, modulo the wrap at z.
	joined := strings.Join(chunks, "")
	assert.Contains(t, joined, strings.Repeat("a", 30))
}
