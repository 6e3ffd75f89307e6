// Package board adapts the dragontoothmg move generator to the piece-level
// changes an NNUE accumulator needs.
package board

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// MaxChanges is the largest number of piece changes a single move produces (castling).
const MaxChanges = 4

// Move is a dragontoothmg move.
type Move = dragontoothmg.Move

// Change is one piece appearing on or disappearing from a square.
type Change struct {
	Add    bool
	Color  Color
	Piece  PieceType
	Square int
}

func (c Change) String() string {
	op := "-"
	if c.Add {
		op = "+"
	}
	return fmt.Sprintf("%s%c%s", op, c.Piece.Char(c.Color), SquareName(c.Square))
}

// Undo restores a position after MakeMove.
type Undo struct {
	unapply func()
	changes [MaxChanges]Change
	n       int
}

// Changes lists the piece changes the move caused, removals first.
func (u *Undo) Changes() []Change {
	return u.changes[:u.n]
}

// Position is a chess position backed by dragontoothmg.
type Position struct {
	b dragontoothmg.Board
}

// NewPosition returns the starting position.
func NewPosition() *Position {
	return &Position{b: dragontoothmg.ParseFen(StartFEN)}
}

// FromFEN parses a FEN string.
func FromFEN(fen string) (p *Position, err error) {
	fen = strings.TrimSpace(fen)
	if len(strings.Fields(fen)) < 4 {
		return nil, fmt.Errorf("invalid FEN %q: expected at least 4 fields", fen)
	}
	// dragontoothmg panics on malformed input
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("invalid FEN %q: %v", fen, r)
		}
	}()
	b := dragontoothmg.ParseFen(fen)
	if bits.OnesCount64(b.White.Kings) != 1 || bits.OnesCount64(b.Black.Kings) != 1 {
		return nil, fmt.Errorf("invalid FEN %q: each side needs exactly one king", fen)
	}
	return &Position{b: b}, nil
}

// Copy returns an independent copy of the position.
func (p *Position) Copy() *Position {
	c := *p
	return &c
}

// SideToMove returns the color to move.
func (p *Position) SideToMove() Color {
	if p.b.Wtomove {
		return White
	}
	return Black
}

// Hash returns the Zobrist hash of the position.
func (p *Position) Hash() uint64 {
	return p.b.Hash()
}

// FEN returns the FEN string of the position.
func (p *Position) FEN() string {
	return p.b.ToFen()
}

// LegalMoves generates all legal moves.
func (p *Position) LegalMoves() []Move {
	return p.b.GenerateLegalMoves()
}

// FindMove returns the legal move with the given UCI notation (e.g. "e2e4", "e7e8q").
func (p *Position) FindMove(uci string) (Move, error) {
	moves := p.LegalMoves()
	for i := range moves {
		if moves[i].String() == uci {
			return moves[i], nil
		}
	}
	return 0, fmt.Errorf("illegal move %q in %s", uci, p.FEN())
}

// PieceAt returns the piece on sq, or NoPieceType.
func (p *Position) PieceAt(sq int) (PieceType, Color) {
	mask := uint64(1) << uint(sq)
	for c, bbs := range p.sides() {
		if bbs.All&mask == 0 {
			continue
		}
		for pt := Pawn; pt <= King; pt++ {
			if bitboard(bbs, pt)&mask != 0 {
				return pt, Color(c)
			}
		}
	}
	return NoPieceType, White
}

// Pieces calls fn for every piece on the board.
func (p *Position) Pieces(fn func(c Color, pt PieceType, sq int)) {
	for c, bbs := range p.sides() {
		for pt := Pawn; pt <= King; pt++ {
			bb := bitboard(bbs, pt)
			for bb != 0 {
				sq := bits.TrailingZeros64(bb)
				bb &= bb - 1
				fn(Color(c), pt, sq)
			}
		}
	}
}

// MakeMove plays a legal move and reports which pieces changed.
// The changes are derived from the occupancy difference, so castling,
// en passant and promotion need no special casing.
func (p *Position) MakeMove(m Move) Undo {
	before := p.snapshot()
	u := Undo{unapply: p.b.Apply(m)}
	after := p.snapshot()

	for c := range before {
		for pt := range before[c] {
			for bb := before[c][pt] &^ after[c][pt]; bb != 0; bb &= bb - 1 {
				u.push(Change{Color: Color(c), Piece: PieceType(pt), Square: bits.TrailingZeros64(bb)})
			}
		}
	}
	for c := range after {
		for pt := range after[c] {
			for bb := after[c][pt] &^ before[c][pt]; bb != 0; bb &= bb - 1 {
				u.push(Change{Add: true, Color: Color(c), Piece: PieceType(pt), Square: bits.TrailingZeros64(bb)})
			}
		}
	}
	return u
}

// UnmakeMove takes back the move that produced u.
func (p *Position) UnmakeMove(u Undo) {
	u.unapply()
}

// String returns an ASCII diagram of the board.
func (p *Position) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			pt, c := p.PieceAt(rank*8 + file)
			sb.WriteByte(pt.Char(c))
			if file < 7 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (p *Position) sides() [2]*dragontoothmg.Bitboards {
	return [2]*dragontoothmg.Bitboards{&p.b.White, &p.b.Black}
}

func (p *Position) snapshot() (s [2][6]uint64) {
	for c, bbs := range p.sides() {
		for pt := Pawn; pt <= King; pt++ {
			s[c][pt] = bitboard(bbs, pt)
		}
	}
	return s
}

func (u *Undo) push(c Change) {
	if u.n == MaxChanges {
		panic("board: too many piece changes in one move")
	}
	u.changes[u.n] = c
	u.n++
}

// SquareName returns the algebraic name of sq (0 = a1, 63 = h8).
func SquareName(sq int) string {
	return string([]byte{byte('a' + sq%8), byte('1' + sq/8)})
}
