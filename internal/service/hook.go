package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	hookMaxChars     = 140
	hookMinChars     = 10
	hookMaxLineChars = 100
)

var hookSentenceSplit = regexp.MustCompile(`[.!?]+`)

// ExtractHook derives a short attention line for an item. The caption is
// tried first, then the transcript. Returns "" when nothing qualifies.
func ExtractHook(caption, transcript string) string {
	if hook := hookFrom(caption); hook != "" {
		return hook
	}
	return hookFrom(transcript)
}

func hookFrom(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	sentences := hookSentenceSplit.Split(text, -1)

	// First punchy sentence.
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		n := utf8.RuneCountInString(s)
		if n > hookMinChars && n <= hookMaxChars {
			return s
		}
	}

	// First two short lines.
	lines := strings.Split(text, "\n")
	if len(lines) > 2 {
		lines = lines[:2]
	}
	short := make([]string, 0, 2)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && utf8.RuneCountInString(line) < hookMaxLineChars {
			short = append(short, line)
		}
	}
	if len(short) > 0 {
		return strings.Join(short, " ")
	}

	// Truncated first sentence.
	first := strings.TrimSpace(sentences[0])
	if utf8.RuneCountInString(first) > hookMinChars {
		return truncateRunes(first, hookMaxChars)
	}

	return ""
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
