package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_ConcatenationEqualsInput(t *testing.T) {
	inputs := []string{
		"One. Two! Three? Four.",
		"  leading space. trailing space.   ",
		"No terminal punctuation at all",
		"Hook: Stop scrolling.\n\nCaption: Here is how I did it! #growth\n\nTranscript: so first... you start",
		"Wait...what?! Really.  Yes.",
	}

	for _, in := range inputs {
		for _, budget := range []int{1, 2, 3, 800} {
			chunks := ChunkText(in, budget)
			assert.Equal(t, in, strings.Join(chunks, ""), "budget %d", budget)
			for _, c := range chunks {
				assert.NotEmpty(t, strings.TrimSpace(c))
			}
		}
	}
}

func TestChunkText_RespectsBudget(t *testing.T) {
	text := "One two three. Four five six. Seven eight nine. Ten eleven twelve."

	chunks := ChunkText(text, 6)

	require.Len(t, chunks, 2)
	assert.Equal(t, "One two three. Four five six. ", chunks[0])
	assert.Equal(t, "Seven eight nine. Ten eleven twelve.", chunks[1])
}

func TestChunkText_OversizedSentenceStandsAlone(t *testing.T) {
	long := strings.Repeat("word ", 20) + "end."
	text := "Short one. " + long + " Short two."

	chunks := ChunkText(text, 5)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Short one. ", chunks[0])
	assert.Equal(t, 21, ApproxTokens(chunks[1]))
	assert.Equal(t, "Short two.", chunks[2])
}

func TestChunkText_EmptyAndWhitespace(t *testing.T) {
	assert.Nil(t, ChunkText("", 10))
	assert.Nil(t, ChunkText("  \n\t ", 10))
}

func TestChunkText_NonPositiveBudgetUsesDefault(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma delta. ", 300)

	assert.Equal(t, ChunkText(text, DefaultChunkTargetTokens), ChunkText(text, 0))
	assert.Len(t, ChunkText(text, -1), 2)
}

func TestChunkText_FifteenHundredWords(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 150; i++ {
		b.WriteString("this sentence has exactly ten words in it right ok. ")
	}
	text := b.String()
	require.Equal(t, 1500, ApproxTokens(text))

	chunks := ChunkText(text, 100)

	total := 0
	for _, c := range chunks {
		n := ApproxTokens(c)
		assert.LessOrEqual(t, n, 100)
		total += n
	}
	assert.Equal(t, 1500, total)
	assert.Len(t, chunks, 15)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, ApproxTokens("   "))
	assert.Equal(t, 3, ApproxTokens(" a\tb\nc "))
}
