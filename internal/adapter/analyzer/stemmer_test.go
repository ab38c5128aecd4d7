package analyzer

import "testing"

func TestStem(t *testing.T) {
	stemmer := NewStemmer()

	tests := []struct {
		word     string
		expected string
	}{
		{"cats", "cat"},
		{"running", "run"},
		{"replacement", "replac"},
		{"relational", "relat"},
		{"conditional", "condit"},
		// "ization" must win over its "ation" tail
		{"organization", "organ"},
		{"ponies", "poni"},
		{"caress", "caress"},
		{"sky", "sky"},
	}

	for _, tt := range tests {
		if got := stemmer.Stem(tt.word); got != tt.expected {
			t.Errorf("Stem(%q) = %q, want %q", tt.word, got, tt.expected)
		}
	}
}

func TestStemDeterministic(t *testing.T) {
	stemmer := NewStemmer()

	first := stemmer.Stem("organization")
	for i := 0; i < 50; i++ {
		if got := stemmer.Stem("organization"); got != first {
			t.Fatalf("stemming not deterministic: %q vs %q", got, first)
		}
	}
}
