package service

import (
	"math"
	"strings"
)

// CosineSimilarity returns dot(a,b)/(|a||b|). It is 0 when the lengths differ
// or either vector has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// KeywordOverlap is the fraction of distinct query words found among the
// words of texts. Words are lower-cased and split on whitespace.
func KeywordOverlap(query string, texts ...string) float64 {
	queryWords := wordSet(query)
	if len(queryWords) == 0 {
		return 0
	}

	docWords := make(map[string]struct{})
	for _, t := range texts {
		for w := range wordSet(t) {
			docWords[w] = struct{}{}
		}
	}

	hits := 0
	for w := range queryWords {
		if _, ok := docWords[w]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(queryWords))
}

// QueryWords returns the distinct lower-cased words of query in order.
func QueryWords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func wordSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
