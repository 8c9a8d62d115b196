package optimize

import (
	"strings"
	"unicode/utf8"
)

// chunkText splits text into chunks of at most maxBytes. It prefers a
// paragraph break, then a sentence end, then a space, and never splits a
// UTF-8 character. Concatenating the chunks yields text exactly.
func chunkText(text string, maxBytes int) []string {
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	for len(text) > maxBytes {
		split := maxBytes
		for split > 0 && !utf8.RuneStart(text[split]) {
			split--
		}
		if at := boundary(text[:split]); at > 0 {
			split = at
		}
		if split == 0 {
			// A single rune wider than maxBytes.
			_, size := utf8.DecodeRuneInString(text)
			split = size
		}
		chunks = append(chunks, text[:split])
		text = text[split:]
	}
	return append(chunks, text)
}

// boundary returns the best cut position in window, just after the
// separator, or 0 if the window holds no space at all. Paragraph and sentence
// breaks only count in the second half so chunks stay reasonably full.
func boundary(window string) int {
	half := len(window) / 2
	if i := strings.LastIndex(window, "\n\n"); i >= half {
		return i + 2
	}
	for _, sep := range []string{". ", "? ", "! ", ".\n", "?\n", "!\n"} {
		if i := strings.LastIndex(window, sep); i >= half {
			return i + len(sep)
		}
	}
	if i := strings.LastIndexAny(window, " \n"); i >= 0 {
		return i + 1
	}
	return 0
}
