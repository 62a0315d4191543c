// Package tablebase looks up endgame verdicts and uses them to relabel
// training records.
package tablebase

import (
	"context"

	"github.com/pkg/errors"

	"github.com/loldot/lolbot/internal/board"
)

// ErrUnavailable reports that the oracle could not give a verdict for a
// position: no table, no network, rate limited or too many pieces.
var ErrUnavailable = errors.New("tablebase unavailable")

// WDL represents Win/Draw/Loss result from the side to move's point of view.
type WDL int

const (
	WDLLoss        WDL = -2
	WDLBlessedLoss WDL = -1 // Loss, but the 50-move rule saves it
	WDLDraw        WDL = 0
	WDLCursedWin   WDL = 1 // Win, but the 50-move rule spoils it
	WDLWin         WDL = 2
)

// String returns the Syzygy name of the verdict.
func (w WDL) String() string {
	switch w {
	case WDLLoss:
		return "loss"
	case WDLBlessedLoss:
		return "blessed-loss"
	case WDLDraw:
		return "draw"
	case WDLCursedWin:
		return "cursed-win"
	case WDLWin:
		return "win"
	default:
		return "unknown"
	}
}

// Outcome is a verdict seen from white's side.
type Outcome int

const (
	WhiteLoses Outcome = -1
	Drawn      Outcome = 0
	WhiteWins  Outcome = 1
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case WhiteWins:
		return "win"
	case WhiteLoses:
		return "loss"
	default:
		return "draw"
	}
}

// ProbeResult contains the result of a tablebase probe.
type ProbeResult struct {
	WDL      WDL
	DTZ      int    // Distance to zeroing move (pawn move or capture)
	Category string // Oracle-specific label, if any
}

// WhiteOutcome converts the side-to-move verdict to white's point of view.
// Cursed wins count as wins and blessed losses as losses.
func (r ProbeResult) WhiteOutcome(stm board.Color) Outcome {
	var o Outcome
	switch {
	case r.WDL > 0:
		o = WhiteWins
	case r.WDL < 0:
		o = WhiteLoses
	}
	if stm == board.Black {
		o = -o
	}
	return o
}

// Prober is the interface for tablebase probing.
type Prober interface {
	// Probe looks up a position. Positions the oracle cannot answer
	// return an error wrapping ErrUnavailable.
	Probe(ctx context.Context, pos *board.Position) (ProbeResult, error)

	// MaxPieces returns the maximum number of pieces supported.
	MaxPieces() int
}

// NoopProber is a prober that never has an answer.
type NoopProber struct{}

func (NoopProber) Probe(context.Context, *board.Position) (ProbeResult, error) {
	return ProbeResult{}, errors.Wrap(ErrUnavailable, "no tablebase configured")
}

func (NoopProber) MaxPieces() int {
	return 0
}

// CountPieces returns the total number of pieces on the board.
func CountPieces(pos *board.Position) int {
	return pos.AllOccupied.PopCount()
}

// ProbeKey identifies a position for caching: piece placement and side to
// move. Castling and en passant are not part of it.
func ProbeKey(pos *board.Position) string {
	if pos.SideToMove == board.White {
		return pos.PiecePlacement() + " w"
	}
	return pos.PiecePlacement() + " b"
}
