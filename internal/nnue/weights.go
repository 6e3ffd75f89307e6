package nnue

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

// Weight file layout (all int16, little-endian, no header):
//   - feature weights: InputSize * HiddenSize, one contiguous column per feature
//   - feature bias:    HiddenSize
//   - output weights:  2 * HiddenSize (side to move first)
//   - output bias:     1

// Load decodes a weight blob. The blob length must equal cfg.FileSize() exactly.
func Load(cfg Config, data []byte) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(data) != cfg.FileSize() {
		return nil, fmt.Errorf("%w: expected %d bytes for %s, got %d",
			ErrSizeMismatch, cfg.FileSize(), cfg, len(data))
	}

	n := newNetwork(cfg)
	off := decodeInt16s(data, 0, n.featureWeights)
	off = decodeInt16s(data, off, n.featureBias)
	off = decodeInt16s(data, off, n.outputWeights)
	n.outputBias = int16(binary.LittleEndian.Uint16(data[off:]))
	n.hash = xxhash.Sum64(data)

	return n, nil
}

// LoadReader reads exactly cfg.FileSize() bytes from r and requires r to be exhausted afterwards.
func LoadReader(cfg Config, r io.Reader) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	data := make([]byte, cfg.FileSize())
	if k, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: expected %d bytes for %s, got %d",
				ErrSizeMismatch, len(data), cfg, k)
		}
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}

	var extra [1]byte
	switch _, err := io.ReadFull(r, extra[:]); {
	case err == nil:
		return nil, fmt.Errorf("%w: more than %d bytes for %s", ErrTrailingData, len(data), cfg)
	case !errors.Is(err, io.EOF):
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}

	return Load(cfg, data)
}

// LoadFile loads a weight file from disk. Files ending in ".zst" are zstd-decompressed.
func LoadFile(cfg Config, path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open weights file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	n, err := LoadReader(cfg, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// ReadFile returns the raw weight blob stored at path, decompressing ".zst" files.
// The length is not checked; pass the result to Load.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return data, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to decompress: %w", path, err)
	}
	return raw, nil
}

// Encode serializes the network into the weight file layout.
func (n *Network) Encode() []byte {
	data := make([]byte, n.cfg.FileSize())
	off := encodeInt16s(data, 0, n.featureWeights)
	off = encodeInt16s(data, off, n.featureBias)
	off = encodeInt16s(data, off, n.outputWeights)
	binary.LittleEndian.PutUint16(data[off:], uint16(n.outputBias))
	return data
}

// WriteTo writes the weight file layout to w.
func (n *Network) WriteTo(w io.Writer) (int64, error) {
	k, err := io.Copy(w, bytes.NewReader(n.Encode()))
	if err != nil {
		return k, fmt.Errorf("failed to write weights: %w", err)
	}
	return k, nil
}

// Save writes the network to path. Paths ending in ".zst" are zstd-compressed.
func (n *Network) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create weights file: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".zst") {
		if _, err := n.WriteTo(f); err != nil {
			return err
		}
		return f.Close()
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("failed to open zstd stream: %w", err)
	}
	if _, err := n.WriteTo(enc); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush zstd stream: %w", err)
	}
	return f.Close()
}

// NewRandom builds a network with small pseudo-random weights. Same seed, same network.
// Magnitudes stay far from int16 overflow for any legal chess position.
func NewRandom(cfg Config, seed int64) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Simple LCG for reproducibility
	state := uint64(seed)
	next := func() int16 {
		state = state*6364136223846793005 + 1442695040888963407
		return int16((state>>48)&0xFF) - 128
	}

	n := newNetwork(cfg)
	for i := range n.featureWeights {
		n.featureWeights[i] = next() >> 2 // -32..31
	}
	for i := range n.featureBias {
		n.featureBias[i] = next() // -128..127
	}
	for i := range n.outputWeights {
		n.outputWeights[i] = next() >> 1
	}
	n.outputBias = next() * 16
	n.hash = xxhash.Sum64(n.Encode())

	return n, nil
}

func decodeInt16s(data []byte, off int, out []int16) int {
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[off:]))
		off += 2
	}
	return off
}

func encodeInt16s(data []byte, off int, in []int16) int {
	for _, v := range in {
		binary.LittleEndian.PutUint16(data[off:], uint16(v))
		off += 2
	}
	return off
}
