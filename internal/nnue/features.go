package nnue

import (
	"math/bits"
	"sort"

	"github.com/dylhunn/dragontoothmg"
	"github.com/pkg/errors"

	"github.com/loldot/lolbot/internal/board"
	"github.com/loldot/lolbot/internal/records"
)

// planeColor maps a board colour to its feature block. Black pieces occupy
// the first 384 planes, white pieces the next 384.
func planeColor(c board.Color) int {
	if c == board.Black {
		return 0
	}
	return 1
}

// FeatureIndex returns the one-hot index of a piece of colour c and type pt
// on square sq: ((block*6 + pt) * 64) + sq, with block 0 for black.
func FeatureIndex(c board.Color, pt board.PieceType, sq board.Square) int {
	return (planeColor(c)*NumPieceTypes+int(pt))*NumSquares + int(sq)
}

// EncodePiecePlanes returns the 768 one-hot planes of a record.
func EncodePiecePlanes(r records.Record) []float32 {
	x := make([]float32, PieceFeatures)
	fillPlanes(x, r)
	return x
}

// EncodeWithSideToMove returns the 768 planes followed by 1.0 when white is
// to move and 0.0 otherwise.
func EncodeWithSideToMove(r records.Record) []float32 {
	x := make([]float32, PieceAndSideFeatures)
	fillPlanes(x, r)
	if r.SideToMove() == board.White {
		x[SideToMoveFeature] = 1
	}
	return x
}

func fillPlanes(x []float32, r records.Record) {
	colors := [2]uint64{r.Black, r.White}
	for block, cbb := range colors {
		for pt, pbb := range r.PieceBoards() {
			bb := pbb & cbb
			base := (block*NumPieceTypes + pt) * NumSquares
			for bb != 0 {
				x[base+bits.TrailingZeros64(bb)] = 1
				bb &= bb - 1
			}
		}
	}
}

// ActiveFeatures lists the indices of the non-zero inputs, in ascending
// order. For 769 inputs the side-to-move scalar is included when white is
// to move in the original position.
func ActiveFeatures(pos *board.Position, inputs int, perspective Perspective) ([]int, error) {
	if inputs != PieceFeatures && inputs != PieceAndSideFeatures {
		return nil, errors.Wrapf(ErrConfigMismatch, "unsupported input width %d", inputs)
	}

	view := pos
	if perspective == Mover && pos.SideToMove == board.Black {
		view = pos.Mirrored()
	}

	active := make([]int, 0, 33)
	for _, c := range [2]board.Color{board.Black, board.White} {
		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := view.Pieces[c][pt]
			for bb != 0 {
				active = append(active, FeatureIndex(c, pt, bb.PopLSB()))
			}
		}
	}
	if inputs == PieceAndSideFeatures && pos.SideToMove == board.White {
		active = append(active, SideToMoveFeature)
	}
	return active, nil
}

// EncodePosition returns the dense input vector for a position. With the
// Absolute perspective the output matches the record encoders for the same
// position.
func EncodePosition(pos *board.Position, inputs int, perspective Perspective) ([]float32, error) {
	active, err := ActiveFeatures(pos, inputs, perspective)
	if err != nil {
		return nil, err
	}
	x := make([]float32, inputs)
	for _, idx := range active {
		x[idx] = 1
	}
	return x, nil
}

// EncodeRecord encodes a record with the given width and perspective.
func EncodeRecord(r records.Record, inputs int, perspective Perspective) ([]float32, error) {
	if perspective == Absolute {
		switch inputs {
		case PieceFeatures:
			return EncodePiecePlanes(r), nil
		case PieceAndSideFeatures:
			return EncodeWithSideToMove(r), nil
		}
	}
	return EncodePosition(r.Position(), inputs, perspective)
}

// EncodeDragontooth encodes a dragontoothmg board.
func EncodeDragontooth(b *dragontoothmg.Board, inputs int, perspective Perspective) ([]float32, error) {
	return EncodePosition(records.FromDragontooth(b).Position(), inputs, perspective)
}

// diffFeatures returns the indices present only in next (added) and only in
// prev (removed). Both lists must be sorted.
func diffFeatures(prev, next []int) (added, removed []int) {
	i, j := 0, 0
	for i < len(prev) && j < len(next) {
		switch {
		case prev[i] == next[j]:
			i++
			j++
		case prev[i] < next[j]:
			removed = append(removed, prev[i])
			i++
		default:
			added = append(added, next[j])
			j++
		}
	}
	removed = append(removed, prev[i:]...)
	added = append(added, next[j:]...)
	return added, removed
}

func sortedCopy(idx []int) []int {
	out := append([]int(nil), idx...)
	sort.Ints(out)
	return out
}
