package extract

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/avvvet/hrbuddy-intent/internal/schema"
)

// MinOptionScore is the similarity an utterance word needs to select an option
const MinOptionScore = 0.75

// words every leave type shares; they say nothing about which one is meant
var genericOptionWords = map[string]bool{
	"leave": true, "leaves": true, "type": true, "the": true, "and": true, "for": true,
}

// MatchOption picks the option the text refers to, tolerating typos and initials
// ("sck" and "SL" both select "Sick Leave"). It returns the canonical option.
func MatchOption(text string, options []string) (string, float64, bool) {
	tokens := Tokens(text)
	if len(tokens) == 0 || len(options) == 0 {
		return "", 0, false
	}

	best, bestScore := "", 0.0
	for _, opt := range options {
		score := optionScore(tokens, opt)
		if score > bestScore {
			best, bestScore = opt, score
		}
	}

	if bestScore < MinOptionScore {
		return "", bestScore, false
	}
	return best, bestScore, true
}

func optionScore(tokens []string, option string) float64 {
	optTokens := Tokens(option)
	if len(optTokens) == 0 {
		return 0
	}

	if PhraseIndex(tokens, optTokens) >= 0 {
		return 1
	}

	score := 0.0
	if len(optTokens) > 1 {
		var initials strings.Builder
		for _, t := range optTokens {
			initials.WriteString(string([]rune(t)[:1]))
		}
		for _, tok := range tokens {
			if tok == initials.String() {
				score = 0.95
			}
		}
	}

	for _, ow := range optTokens {
		if len([]rune(ow)) < 3 || genericOptionWords[ow] {
			continue
		}
		for _, tok := range tokens {
			if len([]rune(tok)) < 3 || genericOptionWords[tok] {
				continue
			}
			if s := similarity(tok, ow); s > score {
				score = s
			}
		}
	}
	return score
}

func similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// MatchChoice resolves a fixed-choice slot from free text. The longest alias wins so
// "check out" beats "out".
func MatchChoice(spec schema.SlotSpec, text string) (string, bool) {
	tokens := Tokens(text)
	best, bestLen := "", 0
	for _, c := range spec.Choices {
		phrases := append([]string{c.Value}, c.Aliases...)
		for _, p := range phrases {
			pt := Tokens(strings.ReplaceAll(p, "_", " "))
			if len(pt) > bestLen && PhraseIndex(tokens, pt) >= 0 {
				best, bestLen = c.Value, len(pt)
			}
		}
	}
	return best, best != ""
}
