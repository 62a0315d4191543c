// Package records reads and writes the 73-byte training position record.
//
// Layout (little-endian, no padding):
//
//	 0  bb_black  u64     8  bb_pawns  u64    16  bb_knights u64
//	24  bb_bishops u64   32  bb_rooks  u64    40  bb_queens  u64
//	48  bb_kings  u64    56  bb_white  u64
//	64  stm u8   65  castling u8   66  ep u8   67  eval i16   69  wdl f32
package records

import (
	"encoding/binary"
	"math"

	"github.com/dylhunn/dragontoothmg"
	"github.com/pkg/errors"

	"github.com/loldot/lolbot/internal/board"
)

// Size is the encoded length of one record in bytes.
const Size = 73

// Raw side-to-move bytes found in record files.
const (
	STMBlack    uint8 = 0
	STMWhite    uint8 = 7
	STMWhiteAlt uint8 = 255
)

// Castling bits as stored in the record.
const (
	CastleWhiteQueen uint8 = 1
	CastleWhiteKing  uint8 = 2
	CastleBlackQueen uint8 = 4
	CastleBlackKing  uint8 = 8
)

var (
	// ErrFormat reports a byte sequence that is not a whole record.
	ErrFormat = errors.New("record format error")

	// ErrIO reports a record file that could not be read or written.
	ErrIO = errors.New("record i/o error")
)

// Record is one decoded training position.
type Record struct {
	Black   uint64
	Pawns   uint64
	Knights uint64
	Bishops uint64
	Rooks   uint64
	Queens  uint64
	Kings   uint64
	White   uint64

	STM      uint8
	Castling uint8
	EP       uint8 // en passant square index, 0 when none
	Eval     int16 // centipawns, white-positive
	WDL      float32
}

// Key is the bit-exact identity of a record.
type Key [Size]byte

// Decode parses exactly Size bytes.
func Decode(b []byte) (Record, error) {
	if len(b) != Size {
		return Record{}, errors.Wrapf(ErrFormat, "got %d bytes, want %d", len(b), Size)
	}

	le := binary.LittleEndian
	return Record{
		Black:    le.Uint64(b[0:]),
		Pawns:    le.Uint64(b[8:]),
		Knights:  le.Uint64(b[16:]),
		Bishops:  le.Uint64(b[24:]),
		Rooks:    le.Uint64(b[32:]),
		Queens:   le.Uint64(b[40:]),
		Kings:    le.Uint64(b[48:]),
		White:    le.Uint64(b[56:]),
		STM:      b[64],
		Castling: b[65],
		EP:       b[66],
		Eval:     int16(le.Uint16(b[67:])),
		WDL:      math.Float32frombits(le.Uint32(b[69:])),
	}, nil
}

// Encode returns the 73-byte encoding of the record.
func (r Record) Encode() [Size]byte {
	var b [Size]byte
	r.put(b[:])
	return b
}

// AppendEncode appends the encoding of r to dst.
func (r Record) AppendEncode(dst []byte) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, Size)...)
	r.put(dst[n:])
	return dst
}

func (r Record) put(b []byte) {
	le := binary.LittleEndian
	le.PutUint64(b[0:], r.Black)
	le.PutUint64(b[8:], r.Pawns)
	le.PutUint64(b[16:], r.Knights)
	le.PutUint64(b[24:], r.Bishops)
	le.PutUint64(b[32:], r.Rooks)
	le.PutUint64(b[40:], r.Queens)
	le.PutUint64(b[48:], r.Kings)
	le.PutUint64(b[56:], r.White)
	b[64] = r.STM
	b[65] = r.Castling
	b[66] = r.EP
	le.PutUint16(b[67:], uint16(r.Eval))
	le.PutUint32(b[69:], math.Float32bits(r.WDL))
}

// Key returns the encoded bytes used for exact deduplication.
func (r Record) Key() Key {
	return Key(r.Encode())
}

// SideToMove translates the raw stm byte. 7 and 255 mean white, anything
// else is black.
func (r Record) SideToMove() board.Color {
	switch r.STM {
	case STMWhite, STMWhiteAlt:
		return board.White
	default:
		return board.Black
	}
}

// PieceBoards returns the six piece-type bitboards in Pawn..King order.
func (r Record) PieceBoards() [6]uint64 {
	return [6]uint64{r.Pawns, r.Knights, r.Bishops, r.Rooks, r.Queens, r.Kings}
}

// Occupancy is the union of the six piece bitboards.
func (r Record) Occupancy() uint64 {
	return r.Pawns | r.Knights | r.Bishops | r.Rooks | r.Queens | r.Kings
}

// PieceCount counts the squares covered by the two colour bitboards, kings
// included.
func (r Record) PieceCount() int {
	return board.Bitboard(r.White | r.Black).PopCount()
}

// Validate checks the occupancy invariant: colour boards are disjoint, their
// union equals the piece union, and the piece boards do not overlap.
func (r Record) Validate() error {
	if r.White&r.Black != 0 {
		return errors.Errorf("white and black bitboards overlap: %016x", r.White&r.Black)
	}
	if r.White|r.Black != r.Occupancy() {
		return errors.Errorf("colour union %016x differs from piece union %016x",
			r.White|r.Black, r.Occupancy())
	}
	var seen uint64
	for i, bb := range r.PieceBoards() {
		if seen&bb != 0 {
			return errors.Errorf("%s bitboard overlaps another piece type", board.PieceType(i))
		}
		seen |= bb
	}
	return nil
}

// Position rebuilds a board position. Castling and en passant are carried
// over; counters are left at their defaults.
func (r Record) Position() *board.Position {
	var pieces [2][6]board.Bitboard
	for pt, bb := range r.PieceBoards() {
		pieces[board.White][pt] = board.Bitboard(bb & r.White)
		pieces[board.Black][pt] = board.Bitboard(bb & r.Black)
	}

	pos := board.NewPositionFromBitboards(pieces, r.SideToMove())
	pos.CastlingRights = castlingToBoard(r.Castling)
	if r.EP != 0 && r.EP < 64 {
		pos.EnPassant = board.Square(r.EP)
	}
	pos.Hash = pos.ComputeHash()
	return pos
}

// FromPosition builds a record from a position and its labels.
func FromPosition(pos *board.Position, eval int16, wdl float32) Record {
	r := Record{
		Eval: eval,
		WDL:  wdl,
	}
	r.Pawns = uint64(pos.Pieces[board.White][board.Pawn] | pos.Pieces[board.Black][board.Pawn])
	r.Knights = uint64(pos.Pieces[board.White][board.Knight] | pos.Pieces[board.Black][board.Knight])
	r.Bishops = uint64(pos.Pieces[board.White][board.Bishop] | pos.Pieces[board.Black][board.Bishop])
	r.Rooks = uint64(pos.Pieces[board.White][board.Rook] | pos.Pieces[board.Black][board.Rook])
	r.Queens = uint64(pos.Pieces[board.White][board.Queen] | pos.Pieces[board.Black][board.Queen])
	r.Kings = uint64(pos.Pieces[board.White][board.King] | pos.Pieces[board.Black][board.King])
	r.White = uint64(pos.Occupied[board.White])
	r.Black = uint64(pos.Occupied[board.Black])

	if pos.SideToMove == board.White {
		r.STM = STMWhite
	} else {
		r.STM = STMBlack
	}
	r.Castling = castlingFromBoard(pos.CastlingRights)
	if pos.EnPassant < board.NoSquare {
		r.EP = uint8(pos.EnPassant)
	}
	return r
}

// FromDragontooth builds an unlabelled record from a dragontoothmg board.
func FromDragontooth(b *dragontoothmg.Board) Record {
	w, k := &b.White, &b.Black
	r := Record{
		Pawns:   w.Pawns | k.Pawns,
		Knights: w.Knights | k.Knights,
		Bishops: w.Bishops | k.Bishops,
		Rooks:   w.Rooks | k.Rooks,
		Queens:  w.Queens | k.Queens,
		Kings:   w.Kings | k.Kings,
		White:   w.All,
		Black:   k.All,
		STM:     STMBlack,
	}
	if b.Wtomove {
		r.STM = STMWhite
	}
	return r
}

func castlingToBoard(c uint8) board.CastlingRights {
	var cr board.CastlingRights
	if c&CastleWhiteKing != 0 {
		cr |= board.WhiteKingSideCastle
	}
	if c&CastleWhiteQueen != 0 {
		cr |= board.WhiteQueenSideCastle
	}
	if c&CastleBlackKing != 0 {
		cr |= board.BlackKingSideCastle
	}
	if c&CastleBlackQueen != 0 {
		cr |= board.BlackQueenSideCastle
	}
	return cr
}

func castlingFromBoard(cr board.CastlingRights) uint8 {
	var c uint8
	if cr&board.WhiteKingSideCastle != 0 {
		c |= CastleWhiteKing
	}
	if cr&board.WhiteQueenSideCastle != 0 {
		c |= CastleWhiteQueen
	}
	if cr&board.BlackKingSideCastle != 0 {
		c |= CastleBlackKing
	}
	if cr&board.BlackQueenSideCastle != 0 {
		c |= CastleBlackQueen
	}
	return c
}
