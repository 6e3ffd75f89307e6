package eval

import "github.com/hailam/chessnnue/internal/board"

// Chess768 feature layout, from one perspective:
//
//	index = 64*(piece + 6*isOpponent) + square
//
// where piece is Pawn..King = 0..5 and the black perspective mirrors the
// board vertically (square ^ 56) so both sides see their pieces from rank 1.
const (
	NumPieceTypes = 6
	NumSquares    = 64
)

// FeatureIndex returns the input index of a piece of color c and type pt on sq,
// as seen by perspective.
func FeatureIndex(perspective, c board.Color, pt board.PieceType, sq int) int {
	if perspective == board.Black {
		sq ^= 56
	}
	piece := int(pt)
	if c != perspective {
		piece += NumPieceTypes
	}
	return piece*NumSquares + sq
}

// ActiveFeatures returns every active feature index of pos from perspective.
func ActiveFeatures(pos *board.Position, perspective board.Color) []int {
	active := make([]int, 0, 32) // Typical piece count
	pos.Pieces(func(c board.Color, pt board.PieceType, sq int) {
		active = append(active, FeatureIndex(perspective, c, pt, sq))
	})
	return active
}
