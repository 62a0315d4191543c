// Package dataset cleans and balances record sets before training: exact
// deduplication, the mate-score filter and outcome categories.
package dataset

import (
	"cmp"
	"slices"

	"github.com/loldot/lolbot/internal/records"
)

const (
	// MateThreshold is the |eval| at or above which a score is a mate score.
	MateThreshold = 16000

	// SparsePieceLimit keeps mate scores for positions with fewer pieces.
	SparsePieceLimit = 6

	// NearEqualThreshold is the largest |eval| that counts as almost equal.
	NearEqualThreshold = 100
)

// compareRecords orders records field by field in layout order, comparing
// numerically, with the encoded bytes as the final tie-break.
func compareRecords(a, b records.Record) int {
	if c := cmp.Compare(a.Black, b.Black); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Pawns, b.Pawns); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Knights, b.Knights); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Bishops, b.Bishops); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Rooks, b.Rooks); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Queens, b.Queens); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kings, b.Kings); c != 0 {
		return c
	}
	if c := cmp.Compare(a.White, b.White); c != 0 {
		return c
	}
	if c := cmp.Compare(a.STM, b.STM); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Castling, b.Castling); c != 0 {
		return c
	}
	if c := cmp.Compare(a.EP, b.EP); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Eval, b.Eval); c != 0 {
		return c
	}
	if c := cmp.Compare(a.WDL, b.WDL); c != 0 {
		return c
	}
	ka, kb := a.Key(), b.Key()
	return slices.Compare(ka[:], kb[:])
}

// Dedupe returns the distinct records in sorted order and the number of
// duplicates dropped. Two records are duplicates only if all 73 encoded
// bytes match. The input is not modified.
func Dedupe(recs []records.Record) ([]records.Record, int) {
	sorted := slices.Clone(recs)
	slices.SortFunc(sorted, compareRecords)

	unique := sorted[:0]
	var last records.Key
	for i, r := range sorted {
		k := r.Key()
		if i > 0 && k == last {
			continue
		}
		unique = append(unique, r)
		last = k
	}
	return unique, len(recs) - len(unique)
}

// FilterMateScores drops records with |eval| >= MateThreshold unless
// pieceCount reports fewer than SparsePieceLimit pieces. Order is preserved.
func FilterMateScores(recs []records.Record, pieceCount func(records.Record) int) ([]records.Record, int) {
	kept := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		if IsMateScore(r.Eval) && pieceCount(r) >= SparsePieceLimit {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(recs) - len(kept)
}

// IsMateScore reports whether eval is a mate score.
func IsMateScore(eval int16) bool {
	e := int(eval)
	return e >= MateThreshold || e <= -MateThreshold
}
