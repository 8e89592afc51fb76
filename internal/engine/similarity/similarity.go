// Package similarity scores how close two short strings are using
// normalized Levenshtein edit distance.
package similarity

import "strings"

// Score returns a case-insensitive similarity in [0,1]:
// (longer - distance(longer, shorter)) / longer.
func Score(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	if string(ra) == string(rb) {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}
	longer, shorter := ra, rb
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}
	n := float64(len(longer))
	return (n - float64(distance(longer, shorter))) / n
}

// Distance returns the Levenshtein edit distance between a and b, counted in runes.
func Distance(a, b string) int {
	return distance([]rune(a), []rune(b))
}

func distance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	// keep the row over the shorter input
	if len(a) > len(b) {
		a, b = b, a
	}
	row := make([]int, len(a)+1)
	for i := range row {
		row[i] = i
	}
	for j := 1; j <= len(b); j++ {
		diag := row[0]
		row[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			above := row[i]
			row[i] = min(above+1, row[i-1]+1, diag+cost)
			diag = above
		}
	}
	return row[len(a)]
}
