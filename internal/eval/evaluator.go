// Package eval scores chess positions with an NNUE network, keeping a white and a
// black accumulator in step with the moves made on a board.
package eval

import (
	"github.com/hailam/chessnnue/internal/board"
	"github.com/hailam/chessnnue/internal/nnue"
)

// MaxNonMate bounds every NNUE score so it never collides with mate scores.
const MaxNonMate = 9800

// Evaluator owns one accumulator pair per ply. It is not safe for concurrent
// use; give every search goroutine its own Evaluator over the shared Network.
type Evaluator struct {
	net   *nnue.Network
	stack *nnue.AccumulatorStack
}

// NewEvaluator creates an evaluator with both accumulators at the feature bias.
func NewEvaluator(net *nnue.Network) *Evaluator {
	return &Evaluator{
		net:   net,
		stack: nnue.NewAccumulatorStack(net),
	}
}

// Network returns the shared network.
func (e *Evaluator) Network() *nnue.Network {
	return e.net
}

// Reset empties the stack and sets both accumulators back to the bias.
func (e *Evaluator) Reset() {
	e.stack.Reset()
}

// Set resets the evaluator and refreshes it for pos.
func (e *Evaluator) Set(pos *board.Position) {
	e.Reset()
	pos.Pieces(e.AddPiece)
}

// Accumulators returns the current white and black perspective accumulators.
func (e *Evaluator) Accumulators() (white, black *nnue.Accumulator) {
	return e.stack.Current(int(board.White)), e.stack.Current(int(board.Black))
}

// AddPiece activates a piece in both perspectives.
func (e *Evaluator) AddPiece(c board.Color, pt board.PieceType, sq int) {
	white, black := e.Accumulators()
	e.net.AddFeature(white, FeatureIndex(board.White, c, pt, sq))
	e.net.AddFeature(black, FeatureIndex(board.Black, c, pt, sq))
}

// RemovePiece deactivates a piece in both perspectives.
func (e *Evaluator) RemovePiece(c board.Color, pt board.PieceType, sq int) {
	white, black := e.Accumulators()
	e.net.RemoveFeature(white, FeatureIndex(board.White, c, pt, sq))
	e.net.RemoveFeature(black, FeatureIndex(board.Black, c, pt, sq))
}

// MovePiece moves a piece from one square to another.
func (e *Evaluator) MovePiece(c board.Color, pt board.PieceType, from, to int) {
	e.RemovePiece(c, pt, from)
	e.AddPiece(c, pt, to)
}

// Apply replays a list of piece changes on the current accumulators.
func (e *Evaluator) Apply(changes []board.Change) {
	for _, ch := range changes {
		if ch.Add {
			e.AddPiece(ch.Color, ch.Piece, ch.Square)
		} else {
			e.RemovePiece(ch.Color, ch.Piece, ch.Square)
		}
	}
}

// Push copies the current accumulators one ply up.
func (e *Evaluator) Push() {
	e.stack.Push()
}

// Pop returns to the accumulators of the previous ply.
func (e *Evaluator) Pop() {
	e.stack.Pop()
}

// MakeMove plays m on pos and updates the accumulators incrementally.
func (e *Evaluator) MakeMove(pos *board.Position, m board.Move) board.Undo {
	e.Push()
	undo := pos.MakeMove(m)
	e.Apply(undo.Changes())
	return undo
}

// UnmakeMove takes back a move made with MakeMove.
func (e *Evaluator) UnmakeMove(pos *board.Position, undo board.Undo) {
	pos.UnmakeMove(undo)
	e.Pop()
}

// Evaluate returns the score from the side to move's point of view,
// clamped to [-MaxNonMate, MaxNonMate].
func (e *Evaluator) Evaluate(whiteToMove bool) int {
	white, black := e.Accumulators()
	var score int32
	if whiteToMove {
		score = e.net.Evaluate(white, black)
	} else {
		score = e.net.Evaluate(black, white)
	}
	return max(-MaxNonMate, min(MaxNonMate, int(score)))
}

// EvaluatePosition evaluates pos assuming the accumulators match it.
func (e *Evaluator) EvaluatePosition(pos *board.Position) int {
	return e.Evaluate(pos.SideToMove() == board.White)
}
