package utils

import (
	"regexp"
	"strings"
)

var (
	sentenceTerminator = regexp.MustCompile(`[.!?。？！]`)
	lineBreaks         = regexp.MustCompile(`(\r\n|\r|\n)+`)
)

// CountWords returns the number of whitespace separated tokens in text.
// Text without any token, including the empty string, counts as one word.
func CountWords(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 1
	}
	return len(words)
}

// CountSentences returns the number of sentence terminators in text, latin and CJK.
func CountSentences(text string) int {
	return len(sentenceTerminator.FindAllStringIndex(text, -1))
}

// CountParagraphs returns the number of non-blank segments between runs of line breaks.
func CountParagraphs(text string) int {
	count := 0
	for _, p := range lineBreaks.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			count++
		}
	}
	return count
}
