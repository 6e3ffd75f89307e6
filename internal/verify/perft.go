// Package verify checks that incrementally updated accumulators always match a
// from-scratch refresh, by walking the legal move tree of a position.
package verify

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chessnnue/internal/board"
	"github.com/hailam/chessnnue/internal/eval"
	"github.com/hailam/chessnnue/internal/nnue"
)

// Options configures a verification run.
type Options struct {
	// Workers is the number of root moves searched in parallel; 0 means GOMAXPROCS.
	Workers int
	Log     logr.Logger
}

// Result summarises a finished walk.
type Result struct {
	Nodes   uint64 // leaf count, identical to a plain perft
	Checks  uint64 // positions compared against a fresh refresh
	Elapsed time.Duration
}

// MismatchError reports the first position where incremental and fresh state diverged.
type MismatchError struct {
	FEN         string
	Move        string
	Ply         int
	Incremental int
	Fresh       int
}

func (e *MismatchError) Error() string {
	if e.Incremental == e.Fresh {
		return fmt.Sprintf("accumulator mismatch at ply %d after %s in %s (score %d)",
			e.Ply, e.Move, e.FEN, e.Fresh)
	}
	return fmt.Sprintf("score mismatch at ply %d after %s in %s: incremental %d, fresh %d",
		e.Ply, e.Move, e.FEN, e.Incremental, e.Fresh)
}

// Perft walks every legal line of pos to the given depth. After each make and
// each unmake the incremental accumulators are compared with a fresh Set.
// pos is not modified.
func Perft(ctx context.Context, net *nnue.Network, pos *board.Position, depth int, opts Options) (Result, error) {
	start := time.Now()
	if depth <= 0 {
		return Result{Nodes: 1, Elapsed: time.Since(start)}, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var nodes, checks atomic.Uint64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	moves := pos.LegalMoves()
	for i := range moves {
		m := moves[i]
		g.Go(func() error {
			w := newWalker(net, pos.Copy())
			n, err := w.visit(ctx, m, depth, 0)
			checks.Add(w.checks)
			if err != nil {
				return err
			}
			nodes.Add(n)
			opts.Log.V(1).Info("root move done", "move", m.String(), "nodes", n)
			return nil
		})
	}

	err := g.Wait()
	res := Result{
		Nodes:   nodes.Load(),
		Checks:  checks.Load(),
		Elapsed: time.Since(start),
	}
	return res, err
}

// walker owns one line of play: a position, its incremental evaluator and a
// scratch evaluator refreshed from scratch at every check.
type walker struct {
	pos    *board.Position
	inc    *eval.Evaluator
	fresh  *eval.Evaluator
	checks uint64
}

func newWalker(net *nnue.Network, pos *board.Position) *walker {
	w := &walker{
		pos:   pos,
		inc:   eval.NewEvaluator(net),
		fresh: eval.NewEvaluator(net),
	}
	w.inc.Set(pos)
	return w
}

func (w *walker) perft(ctx context.Context, depth, ply int) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var nodes uint64
	moves := w.pos.LegalMoves()
	for i := range moves {
		n, err := w.visit(ctx, moves[i], depth, ply)
		if err != nil {
			return 0, err
		}
		nodes += n
	}
	return nodes, nil
}

// visit plays m, verifies, recurses for depth-1 and takes m back.
func (w *walker) visit(ctx context.Context, m board.Move, depth, ply int) (uint64, error) {
	undo := w.inc.MakeMove(w.pos, m)
	if err := w.check(m, ply+1); err != nil {
		return 0, err
	}

	nodes := uint64(1)
	if depth > 1 {
		var err error
		if nodes, err = w.perft(ctx, depth-1, ply+1); err != nil {
			return 0, err
		}
	}

	w.inc.UnmakeMove(w.pos, undo)
	if err := w.check(m, ply); err != nil {
		return 0, err
	}
	return nodes, nil
}

func (w *walker) check(m board.Move, ply int) error {
	w.checks++
	w.fresh.Set(w.pos)

	incW, incB := w.inc.Accumulators()
	freshW, freshB := w.fresh.Accumulators()
	got, want := w.inc.EvaluatePosition(w.pos), w.fresh.EvaluatePosition(w.pos)
	if got == want && incW.Equal(freshW) && incB.Equal(freshB) {
		return nil
	}
	return &MismatchError{
		FEN:         w.pos.FEN(),
		Move:        m.String(),
		Ply:         ply,
		Incremental: got,
		Fresh:       want,
	}
}
