package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/go-logr/logr"

	"github.com/hailam/chessnnue/internal/board"
	"github.com/hailam/chessnnue/internal/eval"
	"github.com/hailam/chessnnue/internal/nnue"
	"github.com/hailam/chessnnue/internal/storage"
)

func TestEPDToFEN(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{
			"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
			"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		},
		{
			`1k1r4/pp1b1R2/3q2pp/4p3/2B5/4Q3/PPP2B2/2K5 b - - bm Qd1+; id "BK.01";`,
			"1k1r4/pp1b1R2/3q2pp/4p3/2B5/4Q3/PPP2B2/2K5 b - - 0 1",
		},
		{
			"8/8/8/8/8/8/8/K1k5 w - -",
			"8/8/8/8/8/8/8/K1k5 w - - 0 1",
		},
		{
			"8/8/8/8/8/8/8/K1k5 w - - 12 40",
			"8/8/8/8/8/8/8/K1k5 w - - 12 40",
		},
	}
	for _, tt := range tests {
		got, err := epdToFEN(tt.line)
		if err != nil {
			t.Errorf("epdToFEN(%q): %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("epdToFEN(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}

	if _, err := epdToFEN("8/8/8 w"); err == nil {
		t.Error("epdToFEN accepted a line with two fields")
	}
}

func TestForEachPosition(t *testing.T) {
	input := `# comment
rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1

8/8/8/8/8/8/8/K1k5 w - - bm Kb2;
`
	var fens []string
	n, err := forEachPosition(strings.NewReader(input), func(fen string) error {
		fens = append(fens, fen)
		return nil
	})
	if err != nil {
		t.Fatalf("forEachPosition: %v", err)
	}
	if n != 2 || len(fens) != 2 {
		t.Fatalf("forEachPosition visited %d positions, want 2", n)
	}
	if fens[1] != "8/8/8/8/8/8/8/K1k5 w - - 0 1" {
		t.Errorf("second position = %q", fens[1])
	}
}

func TestMapPath(t *testing.T) {
	u, err := user.Current()
	if err != nil {
		t.Skipf("no current user: %v", err)
	}
	if got, want := mapPath("~/nets/a.bin"), filepath.Join(u.HomeDir, "nets", "a.bin"); got != want {
		t.Errorf("mapPath(~/nets/a.bin) = %q, want %q", got, want)
	}
	if got := mapPath("/tmp/a.bin"); got != "/tmp/a.bin" {
		t.Errorf("mapPath changed an absolute path: %q", got)
	}
}

func TestLoadNetworkUsesRegisteredConstants(t *testing.T) {
	dir := t.TempDir()
	cfg := nnue.Config{HiddenSize: 16, QA: 255, QB: 64, Scale: 400}
	net, err := nnue.NewRandom(cfg, 3)
	if err != nil {
		t.Fatalf("NewRandom: %v", err)
	}
	path := filepath.Join(dir, "small.bin.zst")
	if err := net.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	newOptions := func() *options {
		return &options{
			net:      path,
			registry: filepath.Join(dir, "registry"),
			cfg:      nnue.DefaultConfig(),
			explicit: map[string]bool{},
			log:      logr.Discard(),
		}
	}

	// unregistered: the default constants do not fit a 16 neuron file
	if _, _, err := newOptions().loadNetwork(); !errors.Is(err, nnue.ErrSizeMismatch) {
		t.Fatalf("loading an unregistered file: err = %v, want ErrSizeMismatch", err)
	}

	if err := newOptions().registerNetwork(net, path, "small", "test"); err != nil {
		t.Fatalf("registerNetwork: %v", err)
	}

	loaded, _, err := newOptions().loadNetwork()
	if err != nil {
		t.Fatalf("loadNetwork after register: %v", err)
	}
	if loaded.Config() != cfg || loaded.Hash() != net.Hash() {
		t.Errorf("loaded %s hash %016x, want %s hash %016x", loaded.Config(), loaded.Hash(), cfg, net.Hash())
	}

	// explicit constants win over the registry
	o := newOptions()
	o.explicit["hidden"] = true
	if _, _, err := o.loadNetwork(); !errors.Is(err, nnue.ErrSizeMismatch) {
		t.Errorf("explicit -hidden: err = %v, want ErrSizeMismatch", err)
	}

	o = newOptions()
	o.noRegistry = true
	if _, _, err := o.loadNetwork(); !errors.Is(err, nnue.ErrSizeMismatch) {
		t.Errorf("-noregistry: err = %v, want ErrSizeMismatch", err)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := run([]string{"train"}); err == nil {
		t.Error("run accepted an unknown command")
	}
	if err := run(nil); err == nil {
		t.Error("run accepted no command")
	}
}

// captureStdout runs fn with command output redirected into a buffer.
func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	defer func() { stdout = old }()
	if err := fn(); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	return buf.String()
}

func TestEvalCommandScoresEachPosition(t *testing.T) {
	dir := t.TempDir()
	cfg := nnue.Config{HiddenSize: 16, QA: 255, QB: 64, Scale: 400}
	net, err := nnue.NewRandom(cfg, 3)
	if err != nil {
		t.Fatalf("NewRandom: %v", err)
	}
	netPath := filepath.Join(dir, "net.bin")
	if err := net.Save(netPath); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fens := []string{
		board.StartFEN,
		"4k3/8/8/8/8/8/8/QQQQK3 w - - 0 1",
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R b KQkq - 0 1",
	}
	want := make([]string, len(fens))
	for i, fen := range fens {
		pos, err := board.FromFEN(fen)
		if err != nil {
			t.Fatalf("FromFEN: %v", err)
		}
		ev := eval.NewEvaluator(net)
		ev.Set(pos)
		want[i] = fmt.Sprintf("%d\t%s", ev.EvaluatePosition(pos), pos.FEN())
	}
	if want[0][:strings.Index(want[0], "\t")] == want[1][:strings.Index(want[1], "\t")] {
		t.Fatalf("test network scores both positions alike: %s / %s", want[0], want[1])
	}

	common := []string{"-net", netPath, "-noregistry", "-hidden", "16"}

	t.Run("Args", func(t *testing.T) {
		for i, fen := range fens {
			out := captureStdout(t, func() error {
				return run(append(append([]string{"eval"}, common...), fen))
			})
			if got := strings.TrimSpace(out); got != want[i] {
				t.Errorf("eval %q = %q, want %q", fen, got, want[i])
			}
		}
	})

	t.Run("File", func(t *testing.T) {
		// the repeated first line is served from the cache
		epd := filepath.Join(dir, "positions.epd")
		lines := strings.Join(append(fens, fens[0]), "\n")
		if err := os.WriteFile(epd, []byte(lines+"\n"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		out := captureStdout(t, func() error {
			return run(append(append([]string{"eval"}, common...), "-file", epd))
		})
		got := strings.Split(strings.TrimSpace(out), "\n")
		expect := append(want, want[0])
		if len(got) != len(expect) {
			t.Fatalf("eval -file printed %d lines, want %d:\n%s", len(got), len(expect), out)
		}
		for i := range expect {
			if got[i] != expect[i] {
				t.Errorf("line %d = %q, want %q", i, got[i], expect[i])
			}
		}
	})
}

func TestFindNetworkDoesNotCreateDirs(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("data dir is under the real home directory on macOS")
	}
	data := t.TempDir()
	t.Setenv("XDG_DATA_HOME", data)
	t.Setenv("APPDATA", data)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	if _, err := findNetwork(""); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("findNetwork with nothing to find: err = %v, want os.ErrNotExist", err)
	}
	dir, err := storage.NNUEDirPath()
	if err != nil {
		t.Fatalf("NNUEDirPath: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("findNetwork created %s", dir)
	}
}
