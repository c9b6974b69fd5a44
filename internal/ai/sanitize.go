package ai

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minSpacedRun is the shortest run of spaced single letters treated as a
// mangled word. Two-letter sequences like "option A B" stay untouched.
const minSpacedRun = 3

// CollapseLetterSpacing undoes artificial per-character spacing in model
// output ("U S E R  A C C O U N T"). The synthesis contract forbids it, but
// models do not always honor that. Runs of spaced single letters are joined
// back into words; the double spaces mangled text uses as word separators
// become single spaces. Text without such runs is returned unchanged.
func CollapseLetterSpacing(s string) string {
	tokens := strings.Split(s, " ")

	var out []string
	collapsed := false
	for i := 0; i < len(tokens); {
		j := i
		for j < len(tokens) && isSingleLetter(tokens[j]) {
			j++
		}
		if j-i >= minSpacedRun {
			out = append(out, strings.Join(tokens[i:j], ""))
			collapsed = true
			i = j
			continue
		}
		out = append(out, tokens[i:j]...)
		if j < len(tokens) {
			if tokens[j] != "" {
				out = append(out, tokens[j])
			}
			j++
		}
		i = j
	}
	if !collapsed {
		return s
	}
	return strings.Join(out, " ")
}

func isSingleLetter(tok string) bool {
	r, size := utf8.DecodeRuneInString(tok)
	return size > 0 && size == len(tok) && unicode.IsLetter(r)
}
