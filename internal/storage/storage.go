package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-logr/logr"

	"github.com/hailam/chessnnue/internal/nnue"
)

// Storage keys
const (
	keyNetworkPrefix = "net/"
)

var ErrNotFound = errors.New("storage: network not registered")

// NetworkRecord describes a registered weight file. The file has no header, so
// the record is the only place its Config is written down.
type NetworkRecord struct {
	Name        string      `json:"name"`
	Hash        uint64      `json:"hash"`
	Size        int         `json:"size"`
	Config      nnue.Config `json:"config"`
	Path        string      `json:"path,omitempty"`
	Description string      `json:"description,omitempty"`
	AddedAt     time.Time   `json:"added_at"`
}

// HashString returns the hash in the form used by the CLI.
func (r *NetworkRecord) HashString() string {
	return fmt.Sprintf("%016x", r.Hash)
}

// ContentHash hashes raw weight bytes; it matches nnue.Network.Hash for the same blob.
func ContentHash(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Registry wraps BadgerDB for persistent storage of network records.
type Registry struct {
	db  *badger.DB
	log logr.Logger
}

// Open opens (or creates) the registry in dir. An empty dir uses GetDatabaseDir.
func Open(dir string, log logr.Logger) (*Registry, error) {
	if dir == "" {
		var err error
		if dir, err = GetDatabaseDir(); err != nil {
			return nil, err
		}
	}

	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{log.WithName("badger")})
	return open(opts, log)
}

// OpenInMemory opens a registry that lives only as long as the process.
func OpenInMemory(log logr.Logger) (*Registry, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{log.WithName("badger")})
	return open(opts, log)
}

func open(opts badger.Options, log logr.Logger) (*Registry, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	log.V(1).Info("registry opened", "dir", opts.Dir, "inMemory", opts.InMemory)
	return &Registry{db: db, log: log}, nil
}

// Close closes the database
func (s *Registry) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores or replaces the record for rec.Hash.
func (s *Registry) Put(rec *NetworkRecord) error {
	if rec.AddedAt.IsZero() {
		rec.AddedAt = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(networkKey(rec.Hash), data)
	})
	if err != nil {
		return err
	}
	s.log.Info("network registered", "name", rec.Name, "hash", rec.HashString(), "config", rec.Config.String())
	return nil
}

// Get returns the record registered under hash.
func (s *Registry) Get(hash uint64) (*NetworkRecord, error) {
	rec := &NetworkRecord{}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(networkKey(hash))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %016x", ErrNotFound, hash)
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Lookup finds the record for a raw weight blob.
func (s *Registry) Lookup(data []byte) (*NetworkRecord, error) {
	return s.Get(ContentHash(data))
}

// List returns all records, most recently added first.
func (s *Registry) List() ([]*NetworkRecord, error) {
	var recs []*NetworkRecord

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyNetworkPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rec := &NetworkRecord{}
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, rec)
			})
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].AddedAt.After(recs[j].AddedAt)
	})
	return recs, nil
}

// Delete removes the record for hash.
func (s *Registry) Delete(hash uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(networkKey(hash)); err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %016x", ErrNotFound, hash)
		} else if err != nil {
			return err
		}
		return txn.Delete(networkKey(hash))
	})
}

// ParseHash parses a hash printed by HashString.
func ParseHash(s string) (uint64, error) {
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid network hash %q: %w", s, err)
	}
	return h, nil
}

func networkKey(hash uint64) []byte {
	return []byte(fmt.Sprintf("%s%016x", keyNetworkPrefix, hash))
}

// badgerLogger routes badger's printf-style logging into logr.
type badgerLogger struct {
	log logr.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(nil, fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.V(1).Info(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.V(2).Info(fmt.Sprintf(format, args...))
}
