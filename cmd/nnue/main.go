package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

const usage = `usage: nnue <command> [flags] [args]

commands:
  eval      score a FEN, or every position of an EPD file (-file)
  verify    walk the move tree checking incremental against fresh accumulators
  info      print size, hash and int16 headroom of a weight file
  gen       write a random network
  register  record a weight file and its constants in the registry
  list      list registered networks
`

// stdout receives command results; logs go to stderr.
var stdout io.Writer = os.Stdout

type command struct {
	setup func(fs *flag.FlagSet, o *options) func(args []string) error
}

var commands = map[string]command{
	"eval":     {setupEval},
	"verify":   {setupVerify},
	"info":     {setupInfo},
	"gen":      {setupGen},
	"register": {setupRegister},
	"list":     {setupList},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}

	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	o := &options{}
	o.register(fs)
	exec := cmd.setup(fs, o)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	o.explicit = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { o.explicit[f.Name] = true })
	o.log = newLogger(o.verbosity)

	// Start CPU profiling if requested (via flag or environment variable)
	profilePath := o.cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		o.log.Info("CPU profiling enabled", "path", profilePath)
	}

	return exec(fs.Args())
}

func newLogger(verbosity int) logr.Logger {
	stdr.SetVerbosity(verbosity)
	return stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("nnue")
}
