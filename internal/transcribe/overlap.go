package transcribe

import (
	"strings"
	"unicode"
)

// minOverlapWords is the shortest repeated run treated as overlap. A single
// shared word at a boundary is too likely to be a coincidence.
const minOverlapWords = 2

// trimOverlap removes the longest run of leading words in next that repeats
// the trailing words of prev, up to maxWords. Words compare case and
// punctuation insensitive.
func trimOverlap(prev, next string, maxWords int) string {
	prevWords := normalizeWords(prev)
	nextFields := strings.Fields(next)
	nextWords := make([]string, len(nextFields))
	for i, f := range nextFields {
		nextWords[i] = normalizeWord(f)
	}

	limit := min(maxWords, len(prevWords), len(nextWords))
	for k := limit; k >= minOverlapWords; k-- {
		if equalWords(prevWords[len(prevWords)-k:], nextWords[:k]) {
			return strings.Join(nextFields[k:], " ")
		}
	}
	return next
}

func equalWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalizeWords lowercases text, strips punctuation, and splits into words.
func normalizeWords(s string) []string {
	fields := strings.Fields(s)
	words := make([]string, len(fields))
	for i, f := range fields {
		words[i] = normalizeWord(f)
	}
	return words
}

func normalizeWord(w string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, w)
}
