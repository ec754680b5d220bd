// Package textutil provides the text primitives shared by every classifier:
// case folding, whitespace collapsing, tokenization, accent stripping, and
// the question/emphasis probes used for cross-turn statistics.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	wordRe       = regexp.MustCompile(`\b\w+\b`)
	numberRe     = regexp.MustCompile(`\d+`)
	cleanRe      = regexp.MustCompile(`[^a-zA-Z0-9\s.,!?]`)
)

// questionStarters are checked as prefixes of normalized text.
var questionStarters = []string{
	"what", "why", "how", "when", "where", "who", "which", "do", "can", "is", "are",
}

// Normalize lowercases, trims, and collapses internal whitespace runs to a
// single space. All keyword matching downstream operates on this form.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRe.ReplaceAllString(s, " ")
}

// Clean drops every rune outside the basic conversational alphabet
// (letters, digits, whitespace, and . , ! ? punctuation).
func Clean(s string) string {
	return cleanRe.ReplaceAllString(s, "")
}

// StripAccents removes combining marks after NFD decomposition, so
// "café" becomes "cafe".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokenize splits normalized text into word tokens.
func Tokenize(s string) []string {
	return wordRe.FindAllString(Normalize(s), -1)
}

// WordCount returns the number of word tokens in the text.
func WordCount(s string) int {
	return len(Tokenize(s))
}

// CharCount returns the rune length of the trimmed text.
func CharCount(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// IsQuestion reports whether the text contains a question mark or opens with
// an interrogative word.
func IsQuestion(s string) bool {
	n := Normalize(s)
	if strings.Contains(n, "?") {
		return true
	}
	for _, q := range questionStarters {
		if strings.HasPrefix(n, q) {
			return true
		}
	}
	return false
}

// ContainsEmphasis reports whether the raw text carries an exclamation mark
// or an all-caps token longer than two runes.
func ContainsEmphasis(s string) bool {
	if strings.Contains(s, "!") {
		return true
	}
	return HasAllCapsToken(s)
}

// HasAllCapsToken reports whether any whitespace-separated token longer than
// two runes is fully uppercase. Tokens without letters never qualify.
func HasAllCapsToken(s string) bool {
	for _, tok := range strings.Fields(s) {
		if utf8.RuneCountInString(tok) > 2 && isUpperToken(tok) {
			return true
		}
	}
	return false
}

func isUpperToken(tok string) bool {
	hasCased := false
	for _, r := range tok {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasCased = true
		}
	}
	return hasCased
}

// ExtractNumbers returns every contiguous digit run in the text, in order.
func ExtractNumbers(s string) []string {
	return numberRe.FindAllString(s, -1)
}
