package classify

import "strings"

// stopwords are common English words excluded from the feature set.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "but": true, "by": true, "for": true,
	"from": true, "has": true, "have": true, "he": true, "her": true,
	"his": true, "i": true, "in": true, "is": true, "it": true,
	"its": true, "my": true, "not": true, "of": true, "on": true,
	"or": true, "our": true, "she": true, "that": true, "the": true,
	"their": true, "they": true, "this": true, "to": true, "was": true,
	"we": true, "were": true, "will": true, "with": true, "you": true,
	"your": true,
}

// tokenize lowercases the text, splits it on non-alphanumeric runes,
// and drops stopwords and single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}

	return tokens
}
