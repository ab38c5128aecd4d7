package analyzer

import "strings"

// Stemmer implements the Porter stemming algorithm.
type Stemmer struct{}

// NewStemmer creates a new Porter stemmer.
func NewStemmer() *Stemmer {
	return &Stemmer{}
}

// Stem returns the stem of a word.
func (s *Stemmer) Stem(word string) string {
	if len(word) < 3 {
		return word
	}

	word = strings.ToLower(word)
	word = stripPlurals(word)
	word = stripPastParticiples(word)
	word = terminalYToI(word)
	word = mapDoubleSuffixes(word)
	word = mapSuffixes(word)
	word = stripResidualSuffixes(word)
	word = stripFinalE(word)
	word = undoubleFinalL(word)

	return word
}

func isConsonant(word string, i int) bool {
	switch word[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	case 'y':
		if i == 0 {
			return true
		}
		return !isConsonant(word, i-1)
	}
	return true
}

// measure counts vowel-consonant sequences, the "m" of Porter's papers.
func measure(word string) int {
	n := len(word)
	m := 0
	i := 0

	for i < n && isConsonant(word, i) {
		i++
	}

	for i < n {
		for i < n && !isConsonant(word, i) {
			i++
		}
		if i >= n {
			break
		}
		m++
		for i < n && isConsonant(word, i) {
			i++
		}
	}

	return m
}

func hasVowel(word string) bool {
	for i := 0; i < len(word); i++ {
		if !isConsonant(word, i) {
			return true
		}
	}
	return false
}

func endsDoubleConsonant(word string) bool {
	n := len(word)
	if n < 2 {
		return false
	}
	return word[n-1] == word[n-2] && isConsonant(word, n-1)
}

// endsCVC reports a consonant-vowel-consonant ending where the final
// consonant is not w, x or y.
func endsCVC(word string) bool {
	n := len(word)
	if n < 3 {
		return false
	}
	if !isConsonant(word, n-3) || isConsonant(word, n-2) || !isConsonant(word, n-1) {
		return false
	}
	c := word[n-1]
	return c != 'w' && c != 'x' && c != 'y'
}

func stripPlurals(word string) string {
	switch {
	case strings.HasSuffix(word, "sses"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ies"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ss"):
		return word
	case strings.HasSuffix(word, "s"):
		return word[:len(word)-1]
	}
	return word
}

func stripPastParticiples(word string) string {
	if strings.HasSuffix(word, "eed") {
		stem := word[:len(word)-3]
		if measure(stem) > 0 {
			return word[:len(word)-1]
		}
		return word
	}

	var stem string
	modified := false

	if strings.HasSuffix(word, "ed") {
		stem = word[:len(word)-2]
		if hasVowel(stem) {
			word = stem
			modified = true
		}
	} else if strings.HasSuffix(word, "ing") {
		stem = word[:len(word)-3]
		if hasVowel(stem) {
			word = stem
			modified = true
		}
	}

	if modified {
		if strings.HasSuffix(word, "at") || strings.HasSuffix(word, "bl") || strings.HasSuffix(word, "iz") {
			return word + "e"
		}
		if endsDoubleConsonant(word) {
			c := word[len(word)-1]
			if c != 'l' && c != 's' && c != 'z' {
				return word[:len(word)-1]
			}
		}
		if measure(word) == 1 && endsCVC(word) {
			return word + "e"
		}
	}

	return word
}

func terminalYToI(word string) string {
	if strings.HasSuffix(word, "y") {
		stem := word[:len(word)-1]
		if hasVowel(stem) {
			return stem + "i"
		}
	}
	return word
}

// suffixRule rewrites one suffix into another when the remaining stem is long
// enough. Rules are ordered: the first matching suffix decides, so longer
// suffixes must precede their own tails (ization before ation before ator).
type suffixRule struct {
	suffix  string
	replace string
}

var doubleSuffixRules = []suffixRule{
	{"ational", "ate"}, {"tional", "tion"},
	{"enci", "ence"}, {"anci", "ance"},
	{"izer", "ize"},
	{"abli", "able"}, {"alli", "al"}, {"entli", "ent"}, {"eli", "e"}, {"ousli", "ous"},
	{"ization", "ize"}, {"ation", "ate"}, {"ator", "ate"},
	{"alism", "al"},
	{"iveness", "ive"}, {"fulness", "ful"}, {"ousness", "ous"},
	{"aliti", "al"}, {"iviti", "ive"}, {"biliti", "ble"},
}

var shortSuffixRules = []suffixRule{
	{"icate", "ic"}, {"ative", ""}, {"alize", "al"},
	{"iciti", "ic"}, {"ical", "ic"},
	{"ful", ""}, {"ness", ""},
}

var residualSuffixes = []string{
	"ance", "ence", "able", "ible", "ement",
	"ment", "ent", "ant", "ion", "ism", "ate",
	"iti", "ous", "ive", "ize", "al", "er", "ic", "ou",
}

func applyFirstRule(word string, rules []suffixRule) string {
	for _, r := range rules {
		if !strings.HasSuffix(word, r.suffix) {
			continue
		}
		stem := word[:len(word)-len(r.suffix)]
		if measure(stem) > 0 {
			return stem + r.replace
		}
		return word
	}
	return word
}

func mapDoubleSuffixes(word string) string {
	return applyFirstRule(word, doubleSuffixRules)
}

func mapSuffixes(word string) string {
	return applyFirstRule(word, shortSuffixRules)
}

func stripResidualSuffixes(word string) string {
	for _, suffix := range residualSuffixes {
		if !strings.HasSuffix(word, suffix) {
			continue
		}
		stem := word[:len(word)-len(suffix)]
		if measure(stem) <= 1 {
			return word
		}
		// "ion" only drops after s or t (vision stays, revision -> revis)
		if suffix == "ion" {
			n := len(stem)
			if n == 0 || (stem[n-1] != 's' && stem[n-1] != 't') {
				return word
			}
		}
		return stem
	}
	return word
}

func stripFinalE(word string) string {
	if strings.HasSuffix(word, "e") {
		stem := word[:len(word)-1]
		if measure(stem) > 1 {
			return stem
		}
		if measure(stem) == 1 && !endsCVC(stem) {
			return stem
		}
	}
	return word
}

func undoubleFinalL(word string) string {
	if measure(word) > 1 && endsDoubleConsonant(word) && word[len(word)-1] == 'l' {
		return word[:len(word)-1]
	}
	return word
}
