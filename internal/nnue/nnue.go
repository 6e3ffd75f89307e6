// Package nnue implements a quantized (768 -> N)x2 -> 1 NNUE evaluation network
// and the incrementally updated accumulators that feed it.
//
// A Network is loaded once and shared read-only between any number of goroutines.
// Accumulators are small per-position vectors owned by exactly one search line.
package nnue

import (
	"errors"
	"fmt"
)

// Network architecture constants
const (
	// Number of sparse binary inputs per perspective (piece type x color x square).
	InputSize = 768

	// Stack depth for AccumulatorStack; deeper than any realistic search line.
	MaxPly = 256

	// Byte alignment of accumulator storage.
	CacheLineSize = 64
)

var (
	ErrInvalidConfig   = errors.New("nnue: invalid config")
	ErrSizeMismatch    = errors.New("nnue: weight blob size mismatch")
	ErrTrailingData    = errors.New("nnue: trailing data after weights")
	ErrNetworkMismatch = errors.New("nnue: accumulator belongs to a different network")
)

// Config holds the constants a weight file was trained with. They are not stored in the
// file, so producer and consumer must agree on them out of band.
type Config struct {
	HiddenSize int `json:"hidden_size"`
	QA         int `json:"qa"`
	QB         int `json:"qb"`
	Scale      int `json:"scale"`
}

// DefaultConfig returns the configuration of the reference 768->128 network.
func DefaultConfig() Config {
	return Config{
		HiddenSize: 128,
		QA:         255,
		QB:         64,
		Scale:      400,
	}
}

// Validate reports whether c describes a usable network.
func (c Config) Validate() error {
	switch {
	case c.HiddenSize <= 0:
		return fmt.Errorf("%w: hidden size %d", ErrInvalidConfig, c.HiddenSize)
	case c.QA <= 0 || c.QA > 32767:
		return fmt.Errorf("%w: QA %d out of (0, 32767]", ErrInvalidConfig, c.QA)
	case c.QB <= 0:
		return fmt.Errorf("%w: QB %d", ErrInvalidConfig, c.QB)
	case c.Scale <= 0:
		return fmt.Errorf("%w: scale %d", ErrInvalidConfig, c.Scale)
	}
	return nil
}

// ParamCount returns the number of int16 values in a weight file.
func (c Config) ParamCount() int {
	h := c.HiddenSize
	return InputSize*h + h + 2*h + 1
}

// FileSize returns the exact byte length of a weight file for this configuration.
func (c Config) FileSize() int {
	return 2 * c.ParamCount()
}

func (c Config) String() string {
	return fmt.Sprintf("(%d->%d)x2->1 QA=%d QB=%d scale=%d", InputSize, c.HiddenSize, c.QA, c.QB, c.Scale)
}

// ClippedReLU widens x and clamps it to [0, qa].
func ClippedReLU(x int16, qa int32) int32 {
	v := int32(x)
	if v < 0 {
		return 0
	}
	if v > qa {
		return qa
	}
	return v
}
