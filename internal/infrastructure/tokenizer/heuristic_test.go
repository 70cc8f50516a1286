package tokenizer

import "testing"

func TestHeuristicCount(t *testing.T) {
	tok := NewHeuristic(0)
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   \n\t", 0},
		{"study", 1},
		{"Studienberatung", 2},
		{"Hello, world!", 4},
		{"Raum J2.05", 4},
	}
	for _, tc := range cases {
		if got := tok.Count(tc.text); got != tc.want {
			t.Fatalf("Count(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestHeuristicCountIsAdditiveOverWords(t *testing.T) {
	tok := NewHeuristic(4)
	if got, want := tok.Count("abcdefgh ij"), 3; got != want {
		t.Fatalf("Count() = %d, want %d", got, want)
	}
}
