package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hailam/chessnnue/internal/board"
	"github.com/hailam/chessnnue/internal/eval"
	"github.com/hailam/chessnnue/internal/evalcache"
	"github.com/hailam/chessnnue/internal/nnue"
	"github.com/hailam/chessnnue/internal/storage"
	"github.com/hailam/chessnnue/internal/verify"
)

// headroomActive is the active feature count assumed by info: every piece on the board.
const headroomActive = 32

func setupEval(fs *flag.FlagSet, o *options) func([]string) error {
	file := fs.String("file", "", "EPD or FEN file, one position per line")
	cacheSize := fs.Int64("cache", 1<<16, "evaluation cache entries")
	return func(args []string) error {
		net, _, err := o.loadNetwork()
		if err != nil {
			return err
		}
		cache, err := evalcache.New(*cacheSize)
		if err != nil {
			return err
		}
		defer cache.Close()

		ev := eval.NewEvaluator(net)
		score := func(fen string) error {
			pos, err := board.FromFEN(fen)
			if err != nil {
				return err
			}
			key := evalcache.Key(pos.Hash(), net.Identity())
			v, ok := cache.Get(key)
			if !ok {
				ev.Set(pos)
				v = int32(ev.EvaluatePosition(pos))
				cache.Set(key, v)
			}
			fmt.Fprintf(stdout, "%d\t%s\n", v, pos.FEN())
			return nil
		}

		if *file == "" {
			fen := strings.Join(args, " ")
			if fen == "" {
				fen = board.StartFEN
			}
			return score(fen)
		}

		f, err := os.Open(mapPath(*file))
		if err != nil {
			return fmt.Errorf("failed to open positions file: %w", err)
		}
		defer f.Close()

		start := time.Now()
		n, err := forEachPosition(f, func(fen string) error {
			if err := score(fen); err != nil {
				o.log.Info("skipping position", "error", err.Error())
			}
			return nil
		})
		if err != nil {
			return err
		}
		st := cache.Stats()
		o.log.Info("evaluated", "positions", n, "elapsed", time.Since(start).String(),
			"cacheHits", st.Hits, "cacheMisses", st.Misses)
		return nil
	}
}

// forEachPosition calls fn with a FEN for every non-empty, non-comment line of r.
// EPD operations after the fourth field are dropped.
func forEachPosition(r io.Reader, fn func(fen string) error) (int, error) {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fen, err := epdToFEN(line)
		if err != nil {
			return n, err
		}
		if err := fn(fen); err != nil {
			return n, err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("failed to read positions: %w", err)
	}
	return n, nil
}

// epdToFEN turns an EPD record (or a FEN line) into a full six field FEN.
func epdToFEN(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return "", fmt.Errorf("invalid EPD line %q", line)
	}
	if len(fields) >= 6 && isNumber(fields[4]) && isNumber(fields[5]) {
		return strings.Join(fields[:6], " "), nil
	}
	return strings.Join(fields[:4], " ") + " 0 1", nil
}

func isNumber(s string) bool {
	s = strings.TrimSuffix(s, ";")
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func setupVerify(fs *flag.FlagSet, o *options) func([]string) error {
	depth := fs.Int("depth", 3, "perft depth")
	workers := fs.Int("workers", 0, "parallel root moves (0 = GOMAXPROCS)")
	seed := fs.Int64("seed", 0, "verify a random network with this seed instead of a weight file")
	return func(args []string) error {
		var net *nnue.Network
		var err error
		if *seed != 0 {
			net, err = nnue.NewRandom(o.cfg, *seed)
		} else {
			net, _, err = o.loadNetwork()
		}
		if err != nil {
			return err
		}

		fen := strings.Join(args, " ")
		if fen == "" {
			fen = board.StartFEN
		}
		pos, err := board.FromFEN(fen)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		res, err := verify.Perft(ctx, net, pos, *depth, verify.Options{Workers: *workers, Log: o.log.WithName("verify")})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "depth %d: %s nodes, %s positions checked, %v\n",
			*depth, humanize.Comma(int64(res.Nodes)), humanize.Comma(int64(res.Checks)), res.Elapsed.Round(time.Millisecond))
		return nil
	}
}

func setupInfo(fs *flag.FlagSet, o *options) func([]string) error {
	return func(args []string) error {
		if len(args) > 0 {
			o.net = args[0]
		}
		net, path, err := o.loadNetwork()
		if err != nil {
			return err
		}
		cfg := net.Config()
		hr := net.Headroom(headroomActive)

		w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "file\t%s\n", path)
		fmt.Fprintf(w, "config\t%s\n", cfg)
		fmt.Fprintf(w, "parameters\t%s\n", humanize.Comma(int64(cfg.ParamCount())))
		fmt.Fprintf(w, "size\t%s\n", humanize.Bytes(uint64(cfg.FileSize())))
		fmt.Fprintf(w, "hash\t%016x\n", net.Hash())
		fmt.Fprintf(w, "headroom\tworst %d on neuron %d, %d of %d neurons can exceed int16 with %d pieces\n",
			hr.WorstCase, hr.Neuron, hr.Unsafe, cfg.HiddenSize, hr.MaxActive)
		return w.Flush()
	}
}

func setupGen(fs *flag.FlagSet, o *options) func([]string) error {
	seed := fs.Int64("seed", 1, "random seed")
	name := fs.String("name", "", "also register the network under this name")
	return func(args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("gen: expected one output path")
		}
		path := mapPath(args[0])

		net, err := nnue.NewRandom(o.cfg, *seed)
		if err != nil {
			return err
		}
		if err := net.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s (%s, %s)\n", path, net.Config(), humanize.Bytes(uint64(net.Config().FileSize())))

		if *name == "" {
			return nil
		}
		return o.registerNetwork(net, path, *name, fmt.Sprintf("random, seed %d", *seed))
	}
}

func setupRegister(fs *flag.FlagSet, o *options) func([]string) error {
	name := fs.String("name", "", "display name (default: file name)")
	desc := fs.String("desc", "", "description")
	return func(args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("register: expected one weight file")
		}
		path := mapPath(args[0])
		net, err := nnue.LoadFile(o.cfg, path)
		if err != nil {
			return err
		}
		if *name == "" {
			*name = filepath.Base(path)
		}
		return o.registerNetwork(net, path, *name, *desc)
	}
}

func (o *options) registerNetwork(net *nnue.Network, path, name, desc string) error {
	reg, err := storage.Open(mapPath(o.registry), o.log.WithName("registry"))
	if err != nil {
		return err
	}
	defer reg.Close()

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	rec := &storage.NetworkRecord{
		Name:        name,
		Hash:        net.Hash(),
		Size:        net.Config().FileSize(),
		Config:      net.Config(),
		Path:        path,
		Description: desc,
	}
	if err := reg.Put(rec); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "registered %s as %s\n", rec.HashString(), name)
	return nil
}

func setupList(fs *flag.FlagSet, o *options) func([]string) error {
	remove := fs.String("delete", "", "remove the record with this hash")
	return func(args []string) error {
		reg, err := storage.Open(mapPath(o.registry), o.log.WithName("registry"))
		if err != nil {
			return err
		}
		defer reg.Close()

		if *remove != "" {
			hash, err := storage.ParseHash(*remove)
			if err != nil {
				return err
			}
			return reg.Delete(hash)
		}

		recs, err := reg.List()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "HASH\tNAME\tCONFIG\tSIZE\tADDED\tPATH")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.HashString(), r.Name, r.Config,
				humanize.Bytes(uint64(r.Size)), humanize.Time(r.AddedAt), r.Path)
		}
		return w.Flush()
	}
}
