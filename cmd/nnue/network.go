package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"

	"github.com/hailam/chessnnue/internal/nnue"
	"github.com/hailam/chessnnue/internal/storage"
)

// defaultNetName is looked up in the search paths when neither -net nor NNUE_NET is set.
const defaultNetName = "net.bin"

// options are the flags shared by every command.
type options struct {
	net        string
	registry   string
	noRegistry bool
	cfg        nnue.Config
	verbosity  int
	cpuprofile string

	explicit map[string]bool
	log      logr.Logger
}

func (o *options) register(fs *flag.FlagSet) {
	def := nnue.DefaultConfig()
	fs.StringVar(&o.net, "net", os.Getenv("NNUE_NET"), "weight file (default $NNUE_NET, then search paths)")
	fs.StringVar(&o.registry, "registry", "", "registry directory (default: platform data dir)")
	fs.BoolVar(&o.noRegistry, "noregistry", false, "do not consult the registry")
	fs.IntVar(&o.cfg.HiddenSize, "hidden", def.HiddenSize, "hidden layer size")
	fs.IntVar(&o.cfg.QA, "qa", def.QA, "feature transformer quantisation")
	fs.IntVar(&o.cfg.QB, "qb", def.QB, "output layer quantisation")
	fs.IntVar(&o.cfg.Scale, "scale", def.Scale, "evaluation scale")
	fs.IntVar(&o.verbosity, "v", 0, "log verbosity")
	fs.StringVar(&o.cpuprofile, "cpuprofile", "", "write cpu profile to file")
}

// configExplicit reports whether any network constant was given on the command line.
func (o *options) configExplicit() bool {
	for _, name := range []string{"hidden", "qa", "qb", "scale"} {
		if o.explicit[name] {
			return true
		}
	}
	return false
}

// openRegistry opens the registry unless -noregistry was given.
func (o *options) openRegistry() (*storage.Registry, error) {
	if o.noRegistry {
		return nil, nil
	}
	return storage.Open(mapPath(o.registry), o.log.WithName("registry"))
}

// loadNetwork resolves and loads the weight file. Constants come from the
// flags when any is set, otherwise from the registry record for the file's
// hash, otherwise from the defaults.
func (o *options) loadNetwork() (*nnue.Network, string, error) {
	path, err := findNetwork(o.net)
	if err != nil {
		return nil, "", err
	}
	data, err := nnue.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	cfg := o.cfg
	if !o.configExplicit() {
		if rec := o.lookup(data); rec != nil {
			cfg = rec.Config
			o.log.V(1).Info("using registered constants", "name", rec.Name, "config", cfg.String())
		}
	}

	net, err := nnue.Load(cfg, data)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	o.log.V(1).Info("network loaded", "path", path, "config", cfg.String(), "hash", fmt.Sprintf("%016x", net.Hash()))
	return net, path, nil
}

func (o *options) lookup(data []byte) *storage.NetworkRecord {
	reg, err := o.openRegistry()
	if err != nil {
		o.log.Info("registry unavailable", "error", err.Error())
		return nil
	}
	if reg == nil {
		return nil
	}
	defer reg.Close()

	rec, err := reg.Lookup(data)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			o.log.Info("registry lookup failed", "error", err.Error())
		}
		return nil
	}
	return rec
}

// findNetwork returns name mapped through mapPath if given, otherwise the
// first default network found in the search paths.
func findNetwork(name string) (string, error) {
	if name != "" {
		return mapPath(name), nil
	}

	var searchPaths []string
	if dir, err := storage.NNUEDirPath(); err == nil {
		searchPaths = append(searchPaths, dir)
	}
	searchPaths = append(searchPaths, "./nnue", ".")

	for _, dir := range searchPaths {
		for _, file := range []string{defaultNetName, defaultNetName + ".zst"} {
			path := filepath.Join(dir, file)
			if fileExists(path) {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("no weight file given and %s not found in %s: %w",
		defaultNetName, strings.Join(searchPaths, ", "), os.ErrNotExist)
}

// mapPath expands a leading "~/" to the user's home directory.
func mapPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		curUser, err := user.Current()
		if err != nil {
			return path
		}
		return filepath.Join(curUser.HomeDir, strings.TrimPrefix(path, "~/"))
	}
	return path
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
