package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize puts an utterance in NFC, case-folds it and collapses whitespace.
// Devanagari and Latin text go through the same path.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Tokens splits text into words; marks stay attached so Devanagari words survive intact
func Tokens(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
}

// ContainsPhrase reports whether phrase occurs in text on word boundaries
func ContainsPhrase(text, phrase string) bool {
	return PhraseIndex(Tokens(text), Tokens(phrase)) >= 0
}

// PhraseIndex returns the position of the token sequence phrase in tokens, or -1
func PhraseIndex(tokens, phrase []string) int {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return -1
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		return i
	}
	return -1
}
