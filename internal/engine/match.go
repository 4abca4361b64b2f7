package engine

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Matcher finds occurrences of a search term. By default an occurrence must
// stand as a whole word; scripts written without spaces (Han, kana, Thai)
// never need a boundary.
type Matcher struct {
	find      string
	substring bool
	pattern   *regexp.Regexp
}

func NewMatcher(find string, matchCase bool, substring bool) Matcher {
	expr := regexp.QuoteMeta(find)
	if !matchCase {
		expr = "(?i)" + expr
	}
	return Matcher{
		find:      find,
		substring: substring,
		pattern:   regexp.MustCompile(expr),
	}
}

// Match reports whether text holds at least one valid occurrence.
func (m Matcher) Match(text string) bool {
	if m.find == "" {
		return false
	}
	for _, loc := range m.pattern.FindAllStringIndex(text, -1) {
		if m.valid(text, loc[0], loc[1]) {
			return true
		}
	}
	return false
}

// ReplaceAll substitutes every valid occurrence with replacement, literally.
func (m Matcher) ReplaceAll(text string, replacement string) string {
	if m.find == "" {
		return text
	}
	var builder strings.Builder
	last := 0
	for _, loc := range m.pattern.FindAllStringIndex(text, -1) {
		if !m.valid(text, loc[0], loc[1]) {
			continue
		}
		builder.WriteString(text[last:loc[0]])
		builder.WriteString(replacement)
		last = loc[1]
	}
	if last == 0 {
		return text
	}
	builder.WriteString(text[last:])
	return builder.String()
}

func (m Matcher) valid(text string, start int, end int) bool {
	if m.substring {
		return true
	}

	first, _ := utf8.DecodeRuneInString(text[start:end])
	if isWordRune(first) && start > 0 {
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(before) {
			return false
		}
	}

	last, _ := utf8.DecodeLastRuneInString(text[start:end])
	if isWordRune(last) && end < len(text) {
		after, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(after) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	if boundaryFree(r) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.Is(unicode.Mn, r)
}

func boundaryFree(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Thai, r)
}
