// Package lexicon turns text into the normalised keywords and term ids the
// index is keyed by. It lower-cases and NFKC-normalises input, splits on
// non-alphanumeric boundaries, removes stop-words, and applies a simple
// suffix-based stemmer.
package lexicon

import (
	"math"
	"strings"
	"unicode"

	"github.com/huichen/murmur"
	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token is a keyword and its position among the kept keywords of a text.
type Token struct {
	Term     string
	TermID   int64
	Position int
}

// Normalize applies NFKC and lower-cases s.
func Normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// TermID hashes a normalised keyword to its non-negative term id.
func TermID(keyword string) int64 {
	b := []byte(keyword)
	hi := murmur.Murmur3(b)
	lo := murmur.Murmur3(append(b, 0))
	return int64(uint64(hi)<<32|uint64(lo)) & math.MaxInt64
}

// Keyword normalises and stems a single word the way Tokenize does, and
// reports false for stop-words and words too short to index.
func Keyword(word string) (string, bool) {
	word = Normalize(word)
	if len(word) < 2 {
		return "", false
	}
	if _, isStop := stopWords[word]; isStop {
		return "", false
	}
	stemmed := stem(word)
	return stemmed, stemmed != ""
}

// Tokenize breaks text into a slice of stemmed, normalised Tokens with
// stop-words removed.
func Tokenize(text string) []Token {
	text = Normalize(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words)/2)
	pos := 0
	for _, word := range words {
		kw, ok := Keyword(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{Term: kw, TermID: TermID(kw), Position: pos})
		pos++
	}
	return tokens
}

var suffixes = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// stem applies the first matching suffix rule whose result stays long
// enough.
func stem(word string) string {
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
