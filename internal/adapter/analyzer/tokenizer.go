package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lowercase terms on non-alphanumeric boundaries,
// with stopword removal and optional Porter stemming.
type Tokenizer struct {
	stemmer   *Stemmer
	stopwords map[string]struct{}
	useStem   bool
}

// NewTokenizer creates a new Tokenizer. Stemming changes recall, not
// correctness, and is off by default in config.
func NewTokenizer(useStemming bool) *Tokenizer {
	var stemmer *Stemmer
	if useStemming {
		stemmer = NewStemmer()
	}
	return &Tokenizer{
		stemmer:   stemmer,
		stopwords: defaultStopwords(),
		useStem:   useStemming,
	}
}

// Tokenize splits text into index terms.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len(word) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		if t.useStem && t.stemmer != nil {
			word = t.stemmer.Stem(word)
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// splitWords splits text into words at non-alphanumeric boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
