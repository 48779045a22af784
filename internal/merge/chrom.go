package merge

import (
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// chromCollator orders contig names with numeric collation so that digit runs
// compare by value: chr2 sorts before chr10, and purely alphabetic contigs
// (X, Y, MT, scaffolds) fall back to lexicographic order. Collators are not
// safe for concurrent use, but the merge phase is single-threaded.
var chromCollator = collate.New(language.Und, collate.Numeric)

// CompareChrom compares two contig names in the deterministic output order.
// Numeric collation considers numerically equal names (chr2, chr02) the same,
// so distinct strings break the tie lexicographically to keep a total order.
func CompareChrom(a, b string) int {
	if c := chromCollator.CompareString(a, b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
