package board

import (
	"errors"
	"testing"
)

func TestParseFENStartPosition(t *testing.T) {
	pos, err := ParseFEN(StartFEN)
	if err != nil {
		t.Fatalf("ParseFEN(StartFEN) failed: %v", err)
	}

	if pos.PieceCount() != 32 {
		t.Errorf("Starting position should have 32 pieces, got %d", pos.PieceCount())
	}
	if pos.SideToMove != White {
		t.Errorf("Expected white to move, got %s", pos.SideToMove)
	}
	if pos.PieceAt(E1) != WhiteKing {
		t.Errorf("Expected white king on e1, got %s", pos.PieceAt(E1))
	}
	if pos.PieceAt(E8) != BlackKing {
		t.Errorf("Expected black king on e8, got %s", pos.PieceAt(E8))
	}
	if pos.CastlingRights.String() != "KQkq" {
		t.Errorf("Expected KQkq, got %s", pos.CastlingRights)
	}
	if got := pos.ToFEN(); got != StartFEN {
		t.Errorf("ToFEN round trip:\n got %s\nwant %s", got, StartFEN)
	}
}

func TestParseFENOptionalFields(t *testing.T) {
	tests := []struct {
		fen  string
		want string
	}{
		{"8/8/8/8/8/8/8/K6k w", "8/8/8/8/8/8/8/K6k w - - 0 1"},
		{"8/8/8/8/8/8/8/K6k b -", "8/8/8/8/8/8/8/K6k b - - 0 1"},
		{"8/8/8/8/8/8/8/K6k w - e3", "8/8/8/8/8/8/8/K6k w - e3 0 1"},
		{"8/8/8/8/8/8/8/K6k b - - 12 40", "8/8/8/8/8/8/8/K6k b - - 12 40"},
	}

	for _, tc := range tests {
		t.Run(tc.fen, func(t *testing.T) {
			pos, err := ParseFEN(tc.fen)
			if err != nil {
				t.Fatalf("ParseFEN failed: %v", err)
			}
			if got := pos.ToFEN(); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseFENInvalid(t *testing.T) {
	tests := []string{
		"",
		"8/8/8/8/8/8/8/K6k",
		"8/8/8/8/8/8/K6k w",
		"8/8/8/8/8/8/8/K6kk w",
		"8/8/8/8/8/8/8/K6x w",
		"8/8/8/8/8/8/8/K6k x",
		"8/8/8/8/8/8/8/K6k w KX",
		"8/8/8/8/8/8/8/K6k w - z9",
		"8/8/8/8/8/8/8/K6k w - - -1",
		"8/8/8/8/8/8/8/K6k w - - 0 0",
		"8/8/8/8/8/8/8/K6k w - - 0 1 extra",
	}

	for _, fen := range tests {
		_, err := ParseFEN(fen)
		if err == nil {
			t.Errorf("ParseFEN(%q) should fail", fen)
			continue
		}
		if !errors.Is(err, ErrInvalidFEN) {
			t.Errorf("ParseFEN(%q) error %v should wrap ErrInvalidFEN", fen, err)
		}
	}
}

func TestPiecePlacement(t *testing.T) {
	pos := NewPosition()
	if got := pos.PiecePlacement(); got != "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR" {
		t.Errorf("Unexpected placement %s", got)
	}
}

func TestFlipVertical(t *testing.T) {
	tests := []struct {
		from, to Square
	}{
		{A1, A8},
		{H1, H8},
		{E2, NewSquare(4, 6)},
		{E4, NewSquare(4, 4)},
	}

	for _, tc := range tests {
		got := SquareBB(tc.from).FlipVertical()
		if got != SquareBB(tc.to) {
			t.Errorf("FlipVertical(%s) = %x, want %s", tc.from, uint64(got), tc.to)
		}
		if tc.from.Mirror() != tc.to {
			t.Errorf("%s.Mirror() = %s, want %s", tc.from, tc.from.Mirror(), tc.to)
		}
	}

	if Rank1.FlipVertical() != Rank8 {
		t.Error("Rank1 should flip to Rank8")
	}
}

func TestMirrored(t *testing.T) {
	pos, err := ParseFEN("4k3/8/8/8/4P3/8/8/4K3 b - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	m := pos.Mirrored()
	if m.SideToMove != White {
		t.Errorf("Mirrored side to move should be white, got %s", m.SideToMove)
	}
	if m.PieceAt(E8) != BlackKing {
		t.Errorf("Expected black king on e8 after mirror, got %s", m.PieceAt(E8))
	}
	if m.PieceAt(E1) != WhiteKing {
		t.Errorf("Expected white king on e1 after mirror, got %s", m.PieceAt(E1))
	}
	if m.PieceAt(NewSquare(4, 4)) != BlackPawn {
		t.Errorf("Expected black pawn on e5 after mirror, got %s", m.PieceAt(NewSquare(4, 4)))
	}
	if back := m.Mirrored(); back.PiecePlacement() != pos.PiecePlacement() {
		t.Errorf("Double mirror should restore placement: %s", back.PiecePlacement())
	}
}

func TestNewPositionFromBitboards(t *testing.T) {
	start := NewPosition()
	pos := NewPositionFromBitboards(start.Pieces, White)

	if pos.AllOccupied != start.AllOccupied {
		t.Errorf("Occupancy mismatch: %x vs %x", uint64(pos.AllOccupied), uint64(start.AllOccupied))
	}
	if pos.MaterialKey() != start.MaterialKey() {
		t.Error("Material keys should match for same placement and side")
	}
	if pos.Hash == start.Hash {
		t.Error("Hash should differ because castling rights differ")
	}
}

func TestHashSideToMove(t *testing.T) {
	w, _ := ParseFEN("8/8/8/8/8/8/8/K6k w")
	b, _ := ParseFEN("8/8/8/8/8/8/8/K6k b")
	if w.Hash == b.Hash {
		t.Error("Side to move must change the hash")
	}
	if w.Hash^b.Hash != zobristSideToMove {
		t.Error("Hashes should differ by exactly the side-to-move key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		fen   string
		valid bool
	}{
		{StartFEN, true},
		{"8/8/8/8/8/8/8/K6k w", true},
		{"8/8/8/8/8/8/8/K7 w", false},
		{"8/8/8/8/8/8/8/KK5k w", false},
		{"P7/8/8/8/8/8/8/K6k w", false},
	}

	for _, tc := range tests {
		pos, err := ParseFEN(tc.fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", tc.fen, err)
		}
		err = pos.Validate()
		if tc.valid && err != nil {
			t.Errorf("%q should be valid: %v", tc.fen, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("%q should be invalid", tc.fen)
		}
	}

	var pieces [2][6]Bitboard
	pieces[White][King] = SquareBB(A1)
	pieces[Black][King] = SquareBB(H8)
	pieces[Black][Queen] = SquareBB(A1)
	if err := NewPositionFromBitboards(pieces, White).Validate(); err == nil {
		t.Error("Overlapping bitboards should be invalid")
	}
}

func TestParseSquare(t *testing.T) {
	sq, err := ParseSquare("e4")
	if err != nil || sq != E4 {
		t.Errorf("ParseSquare(e4) = %s, %v", sq, err)
	}
	if _, err := ParseSquare("i9"); !errors.Is(err, ErrInvalidFEN) {
		t.Errorf("ParseSquare(i9) should fail with ErrInvalidFEN, got %v", err)
	}
}
