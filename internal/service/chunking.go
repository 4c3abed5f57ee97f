package service

import (
	"regexp"
	"strings"
)

// DefaultChunkTargetTokens is the approximate token budget per chunk.
const DefaultChunkTargetTokens = 800

// ChunkConfig controls chunking for item embeddings.
type ChunkConfig struct {
	TargetTokens int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{TargetTokens: DefaultChunkTargetTokens}
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// ApproxTokens approximates a token count by whitespace-delimited words.
func ApproxTokens(text string) int {
	return len(strings.Fields(text))
}

// ChunkText splits text into sentence-aligned segments of at most
// targetTokens approximate tokens. Each sentence keeps its trailing
// whitespace, so joining the segments yields text unchanged. A sentence larger
// than the budget becomes a segment of its own.
func ChunkText(text string, targetTokens int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if targetTokens <= 0 {
		targetTokens = DefaultChunkTargetTokens
	}

	chunks := make([]string, 0, 4)
	var current strings.Builder
	currentTokens := 0

	for _, sentence := range splitSentences(text) {
		tokens := ApproxTokens(sentence)
		if current.Len() > 0 && currentTokens+tokens > targetTokens {
			chunks = append(chunks, current.String())
			current.Reset()
			currentTokens = 0
		}
		current.WriteString(sentence)
		currentTokens += tokens
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func splitSentences(text string) []string {
	bounds := sentenceEnd.FindAllStringIndex(text, -1)
	sentences := make([]string, 0, len(bounds)+1)
	start := 0
	for _, b := range bounds {
		sentences = append(sentences, text[start:b[1]])
		start = b[1]
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}
