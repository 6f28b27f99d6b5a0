package store

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercased search tokens. Runs of letters and
// digits form tokens; everything else separates. CJK runs additionally emit
// character bigrams so that Japanese and Korean titles, which have no word
// boundaries, still match partial queries.
func Tokenize(text string) []string {
	var tokens []string

	var run []rune
	flush := func() {
		if len(run) == 0 {
			return
		}
		token := strings.ToLower(string(run))
		tokens = append(tokens, token)
		if isCJK(run[0]) && len(run) > 2 {
			tokens = append(tokens, bigrams(run)...)
		}
		run = run[:0]
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			// A script change inside a run splits it, so "Dawn戦記" yields
			// both the latin and the CJK token.
			if len(run) > 0 && isCJK(run[len(run)-1]) != isCJK(r) {
				flush()
			}
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// bigrams returns the sliding character pairs of a CJK run.
func bigrams(run []rune) []string {
	out := make([]string, 0, len(run)-1)
	for i := 0; i+1 < len(run); i++ {
		out = append(out, string(run[i:i+2]))
	}
	return out
}

func isCJK(r rune) bool {
	return unicode.In(r,
		unicode.Han,
		unicode.Hiragana,
		unicode.Katakana,
		unicode.Hangul)
}
