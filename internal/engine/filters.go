package engine

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minMeaningfulRunes = 10

// Meaningful reports whether text is worth sending for enhancement, and why
// not when it isn't.
func Meaningful(text string) (bool, string) {
	trimmed := strings.TrimSpace(text)
	switch {
	case utf8.RuneCountInString(trimmed) < minMeaningfulRunes:
		return false, "too short"
	case allRunes(trimmed, func(r rune) bool { return unicode.IsDigit(r) || unicode.IsSpace(r) }):
		return false, "numeric only"
	case allRunes(trimmed, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }):
		return false, "symbols only"
	case len(strings.Fields(trimmed)) < 3:
		return false, "fewer than 3 words"
	}
	return true, ""
}

func allRunes(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if !pred(r) {
			return false
		}
	}
	return true
}

var ErrRejected = errors.New("rewrite rejected")

var refusalPhrases = []string{"i cannot", "as an ai"}

// ValidRewrite accepts a model rewrite only when it stays within half to
// double the original length and is not a refusal.
func ValidRewrite(before string, after string) error {
	trimmed := strings.TrimSpace(after)
	if trimmed == "" {
		return fmt.Errorf("%w: empty rewrite", ErrRejected)
	}

	original := utf8.RuneCountInString(before)
	if original > 0 {
		ratio := float64(utf8.RuneCountInString(after)) / float64(original)
		if ratio < 0.5 || ratio > 2.0 {
			return fmt.Errorf("%w: length ratio %.2f outside [0.5, 2.0]", ErrRejected, ratio)
		}
	}

	lowered := strings.ToLower(trimmed)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lowered, phrase) {
			return fmt.Errorf("%w: reply looks like a refusal", ErrRejected)
		}
	}
	return nil
}
