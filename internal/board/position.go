package board

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// CastlingRights represents the available castling options.
// The core accepts and prints them but never evaluates them.
type CastlingRights uint8

const (
	WhiteKingSideCastle  CastlingRights = 1 << iota // K
	WhiteQueenSideCastle                            // Q
	BlackKingSideCastle                             // k
	BlackQueenSideCastle                            // q
	NoCastling           CastlingRights = 0
)

// String returns the FEN castling rights string.
func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	s := ""
	if cr&WhiteKingSideCastle != 0 {
		s += "K"
	}
	if cr&WhiteQueenSideCastle != 0 {
		s += "Q"
	}
	if cr&BlackKingSideCastle != 0 {
		s += "k"
	}
	if cr&BlackQueenSideCastle != 0 {
		s += "q"
	}
	return s
}

// Position represents a chess position as piece bitboards plus side to move.
type Position struct {
	// Piece bitboards: [Color][PieceType]
	Pieces [2][6]Bitboard

	// Occupancy bitboards (cached for efficiency)
	Occupied    [2]Bitboard // All pieces of each color
	AllOccupied Bitboard    // All pieces on the board

	SideToMove     Color
	CastlingRights CastlingRights
	EnPassant      Square // Target square for en passant, NoSquare if none
	HalfMoveClock  int
	FullMoveNumber int

	// Zobrist hash of pieces, side to move, castling and en passant.
	Hash uint64
}

// NewPosition creates the starting position.
func NewPosition() *Position {
	pos, _ := ParseFEN(StartFEN)
	return pos
}

// NewPositionFromBitboards builds a position from per-colour piece bitboards.
// Castling and en passant are cleared, counters reset.
func NewPositionFromBitboards(pieces [2][6]Bitboard, stm Color) *Position {
	pos := &Position{
		Pieces:         pieces,
		SideToMove:     stm,
		EnPassant:      NoSquare,
		FullMoveNumber: 1,
	}
	pos.updateOccupied()
	pos.Hash = pos.ComputeHash()
	return pos
}

// Copy creates a deep copy of the position.
func (p *Position) Copy() *Position {
	newPos := *p
	return &newPos
}

// PieceAt returns the piece at the given square, or NoPiece if empty.
func (p *Position) PieceAt(sq Square) Piece {
	bb := SquareBB(sq)
	if p.AllOccupied&bb == 0 {
		return NoPiece
	}

	c := White
	if p.Occupied[White]&bb == 0 {
		c = Black
	}

	for pt := Pawn; pt <= King; pt++ {
		if p.Pieces[c][pt]&bb != 0 {
			return NewPiece(pt, c)
		}
	}
	return NoPiece
}

// setPiece places a piece on a square (does not update hash).
func (p *Position) setPiece(piece Piece, sq Square) {
	if piece == NoPiece {
		return
	}
	bb := SquareBB(sq)
	p.Pieces[piece.Color()][piece.Type()] |= bb
	p.Occupied[piece.Color()] |= bb
	p.AllOccupied |= bb
}

// updateOccupied recalculates occupancy bitboards from piece bitboards.
func (p *Position) updateOccupied() {
	p.Occupied[White] = Empty
	p.Occupied[Black] = Empty

	for pt := Pawn; pt <= King; pt++ {
		p.Occupied[White] |= p.Pieces[White][pt]
		p.Occupied[Black] |= p.Pieces[Black][pt]
	}

	p.AllOccupied = p.Occupied[White] | p.Occupied[Black]
}

// PieceCount returns the number of pieces on the board, kings included.
func (p *Position) PieceCount() int {
	return p.AllOccupied.PopCount()
}

// Mirrored returns the position seen from the other side: every bitboard is
// flipped vertically, the colours are swapped and so is the side to move.
func (p *Position) Mirrored() *Position {
	var pieces [2][6]Bitboard
	for pt := Pawn; pt <= King; pt++ {
		pieces[White][pt] = p.Pieces[Black][pt].FlipVertical()
		pieces[Black][pt] = p.Pieces[White][pt].FlipVertical()
	}
	return NewPositionFromBitboards(pieces, p.SideToMove.Other())
}

// Validate checks what a tablebase probe needs: one king per side, no pawns
// on the back ranks and no square claimed by two pieces.
func (p *Position) Validate() error {
	if p.Pieces[White][King].PopCount() != 1 {
		return errors.New("white must have exactly one king")
	}
	if p.Pieces[Black][King].PopCount() != 1 {
		return errors.New("black must have exactly one king")
	}
	if (p.Pieces[White][Pawn]|p.Pieces[Black][Pawn])&(Rank1|Rank8) != 0 {
		return errors.New("pawns cannot be on rank 1 or 8")
	}

	var seen Bitboard
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			if seen&p.Pieces[c][pt] != 0 {
				return errors.Errorf("overlapping %s %s bitboard", c, pt)
			}
			seen |= p.Pieces[c][pt]
		}
	}
	return nil
}

// String returns a visual representation of the position.
func (p *Position) String() string {
	var sb strings.Builder
	sb.WriteByte('\n')
	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(&sb, "%d  ", rank+1)
		for file := 0; file < 8; file++ {
			piece := p.PieceAt(NewSquare(file, rank))
			if piece == NoPiece {
				sb.WriteString(". ")
			} else {
				sb.WriteString(piece.String() + " ")
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\n   a b c d e f g h\n\n")
	fmt.Fprintf(&sb, "Side to move: %s\n", p.SideToMove)
	fmt.Fprintf(&sb, "Hash: %016x\n", p.Hash)
	return sb.String()
}
