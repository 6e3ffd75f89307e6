package board

import (
	"strings"
	"testing"
)

func TestStartPosition(t *testing.T) {
	pos := NewPosition()

	count := 0
	pos.Pieces(func(c Color, pt PieceType, sq int) { count++ })
	if count != 32 {
		t.Errorf("Pieces visited %d pieces, want 32", count)
	}
	if n := len(pos.LegalMoves()); n != 20 {
		t.Errorf("LegalMoves() = %d moves, want 20", n)
	}
	if pos.SideToMove() != White {
		t.Error("expected white to move")
	}
	if pt, c := pos.PieceAt(4); pt != King || c != White {
		t.Errorf("PieceAt(e1) = %v %v, want White King", c, pt)
	}
	if pt, c := pos.PieceAt(59); pt != Queen || c != Black {
		t.Errorf("PieceAt(d8) = %v %v, want Black Queen", c, pt)
	}
	t.Logf("\n%s", pos)
}

func TestFromFENInvalid(t *testing.T) {
	for _, fen := range []string{
		"",
		"not a fen",
		"8/8/8 w",
		"8/8/8/8/8/8/8/8 w - -",
		"4k3/8/8/8/8/8/8/8 w - - 0 1",
		"4k3/8/8/8/8/8/8/K3K3 w - - 0 1",
	} {
		if _, err := FromFEN(fen); err == nil {
			t.Errorf("FromFEN(%q) succeeded, want error", fen)
		}
	}
}

func TestMakeMoveChanges(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		move string
		want string
	}{
		{"Quiet", StartFEN, "e2e4", "-Pe2 +Pe4"},
		{"Capture", "4k3/8/8/3p4/4P3/8/8/4K3 w - - 0 1", "e4d5", "-Pe4 -pd5 +Pd5"},
		{"Castling", "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", "e1g1", "-Rh1 -Ke1 +Rf1 +Kg1"},
		{"BlackCastling", "r3k2r/8/8/8/8/8/8/R3K2R b KQkq - 0 1", "e8c8", "-ra8 -ke8 +rd8 +kc8"},
		{"EnPassant", "4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 1", "e5d6", "-Pe5 -pd5 +Pd6"},
		{"PromotionCapture", "3r3k/4P3/8/8/8/8/8/K7 w - - 0 1", "e7d8q", "-Pe7 -rd8 +Qd8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := FromFEN(tt.fen)
			if err != nil {
				t.Fatalf("FromFEN: %v", err)
			}
			m, err := pos.FindMove(tt.move)
			if err != nil {
				t.Fatalf("FindMove: %v", err)
			}

			fen, hash := pos.FEN(), pos.Hash()
			undo := pos.MakeMove(m)

			var got []string
			for _, c := range undo.Changes() {
				got = append(got, c.String())
			}
			if s := strings.Join(got, " "); s != tt.want {
				t.Errorf("changes = %q, want %q", s, tt.want)
			}

			pos.UnmakeMove(undo)
			if pos.FEN() != fen {
				t.Errorf("FEN after unmake = %q, want %q", pos.FEN(), fen)
			}
			if pos.Hash() != hash {
				t.Errorf("hash after unmake = %x, want %x", pos.Hash(), hash)
			}
		})
	}
}

func TestFindMoveIllegal(t *testing.T) {
	if _, err := NewPosition().FindMove("e2e5"); err == nil {
		t.Error("FindMove(e2e5) succeeded from the start position")
	}
}

func TestCopyIsIndependent(t *testing.T) {
	pos := NewPosition()
	c := pos.Copy()
	m, err := c.FindMove("g1f3")
	if err != nil {
		t.Fatalf("FindMove: %v", err)
	}
	c.MakeMove(m)
	if pos.FEN() == c.FEN() {
		t.Error("moving on a copy changed the original")
	}
}
