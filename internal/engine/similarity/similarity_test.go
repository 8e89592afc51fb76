package similarity

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"milk", "milk", 0},
		{"gumbo", "gambol", 2},
		{"café", "cafe", 1},
	}
	for _, tc := range cases {
		if got := Distance(tc.a, tc.b); got != tc.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
		if got := Distance(tc.b, tc.a); got != tc.want {
			t.Errorf("Distance(%q, %q) = %d, want %d (symmetry)", tc.b, tc.a, got, tc.want)
		}
	}
}

func TestScore(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"Buy milk", "buy MILK", 1.0},
		{"", "", 1.0},
		{"", "milk", 0.0},
		{"milk", "", 0.0},
		{"kitten", "sitting", 4.0 / 7.0},
		{"abcd", "abce", 0.75},
		{"x", "y", 0.0},
	}
	for _, tc := range cases {
		got := Score(tc.a, tc.b)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Score(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestScoreBoundsAndSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"Paper towels", "paper towel"},
		{"Order new gloves for the kitchen", "Order new gloves for the kitchn"},
		{"a", "abcdefghij"},
		{"Schrauben", "schrauben M4"},
	}
	for _, p := range pairs {
		s1 := Score(p[0], p[1])
		s2 := Score(p[1], p[0])
		if s1 != s2 {
			t.Errorf("Score not symmetric for %q/%q: %v vs %v", p[0], p[1], s1, s2)
		}
		if s1 < 0 || s1 > 1 {
			t.Errorf("Score(%q, %q) = %v out of range", p[0], p[1], s1)
		}
	}
}

func TestScoreNearMissAboveThreshold(t *testing.T) {
	// 32 runes, one deletion: 31/32 > 0.95
	if s := Score("Order new gloves for the kitchen", "Order new gloves for the kitchn"); s <= 0.95 {
		t.Fatalf("expected near miss above 0.95, got %v", s)
	}
	if s := Score("Buy milk", "Buy silk"); s > 0.95 {
		t.Fatalf("expected short different titles below 0.95, got %v", s)
	}
}
