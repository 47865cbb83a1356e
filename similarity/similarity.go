// Package similarity scores how alike two strings are using edit distance.
package similarity

import (
	"strings"

	"github.com/rainycape/unidecode"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var dmp = diffmatchpatch.New()

// Score returns a normalised Levenshtein similarity in [0, 1]. Comparison is
// case sensitive, callers fold their inputs first. Two empty strings count as
// identical rather than undefined.
func Score(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la+lb == 0 {
		return 1
	}
	diffs := dmp.DiffMain(a, b, false)
	dist := dmp.DiffLevenshtein(diffs)
	return 1 - float64(dist)/float64(la+lb)
}

// Fold prepares a string for comparison, transliterating to ASCII and
// lowercasing.
func Fold(s string) string {
	return strings.ToLower(unidecode.Unidecode(s))
}
