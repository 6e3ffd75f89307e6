package nnue

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Network holds the quantized weights. It is never mutated after construction.
type Network struct {
	cfg Config

	// Layer 1: InputSize columns of HiddenSize values, column f at [f*H, (f+1)*H)
	featureWeights []int16
	featureBias    []int16

	// Output layer: [0, H) applies to the side to move, [H, 2H) to the other side
	outputWeights []int16
	outputBias    int16

	// xxhash of the serialized weights
	hash uint64
}

func newNetwork(cfg Config) *Network {
	h := cfg.HiddenSize
	return &Network{
		cfg:            cfg,
		featureWeights: make([]int16, InputSize*h),
		featureBias:    make([]int16, h),
		outputWeights:  make([]int16, 2*h),
	}
}

// Config returns the constants the network was built with.
func (n *Network) Config() Config { return n.cfg }

// Hash identifies the weights; equal weights under the same layout share a hash.
func (n *Network) Hash() uint64 { return n.hash }

// Identity combines Hash with the Config, so the same weights loaded under
// different constants are told apart. Use it to key cached scores.
func (n *Network) Identity() uint64 {
	var buf [40]byte
	binary.LittleEndian.PutUint64(buf[0:], n.hash)
	binary.LittleEndian.PutUint64(buf[8:], uint64(n.cfg.HiddenSize))
	binary.LittleEndian.PutUint64(buf[16:], uint64(n.cfg.QA))
	binary.LittleEndian.PutUint64(buf[24:], uint64(n.cfg.QB))
	binary.LittleEndian.PutUint64(buf[32:], uint64(n.cfg.Scale))
	return xxhash.Sum64(buf[:])
}

// FeatureBias returns the hidden-layer bias. The slice must not be modified.
func (n *Network) FeatureBias() []int16 { return n.featureBias }

// FeatureColumn returns the hidden-layer contribution of feature f. The slice must not be modified.
func (n *Network) FeatureColumn(f int) []int16 {
	checkFeature(f)
	h := n.cfg.HiddenSize
	return n.featureWeights[f*h : (f+1)*h : (f+1)*h]
}

// OutputWeights returns both halves of the output weights. The slice must not be modified.
func (n *Network) OutputWeights() []int16 { return n.outputWeights }

// OutputBias returns the scalar output bias.
func (n *Network) OutputBias() int16 { return n.outputBias }

// NewAccumulator returns a fresh accumulator initialised to the feature bias.
func (n *Network) NewAccumulator() *Accumulator {
	acc := &Accumulator{
		net:  n,
		vals: alignedInt16(n.cfg.HiddenSize),
	}
	copy(acc.vals, n.featureBias)
	return acc
}

// Reset sets acc back to the feature bias.
func (n *Network) Reset(acc *Accumulator) {
	n.owns(acc)
	copy(acc.vals, n.featureBias)
}

// AddFeature adds the column of feature f to acc.
// f must be in [0, InputSize); anything else panics.
func (n *Network) AddFeature(acc *Accumulator, f int) {
	n.owns(acc)
	addInt16(acc.vals, n.FeatureColumn(f))
}

// RemoveFeature subtracts the column of feature f from acc.
func (n *Network) RemoveFeature(acc *Accumulator, f int) {
	n.owns(acc)
	subInt16(acc.vals, n.FeatureColumn(f))
}

// Refresh recomputes acc from scratch for the given active feature set.
func (n *Network) Refresh(acc *Accumulator, active []int) {
	n.owns(acc)
	copy(acc.vals, n.featureBias)
	for _, f := range active {
		addInt16(acc.vals, n.FeatureColumn(f))
	}
}

// Evaluate scores a position from the side to move's point of view, given the
// accumulator of the side to move (us) and of the other side (them).
//
// All arithmetic is int32; the order below fixes the rounding:
// bias, us half, them half, multiply by Scale, then truncate by QA*QB.
func (n *Network) Evaluate(us, them *Accumulator) int32 {
	n.owns(us)
	n.owns(them)

	h := n.cfg.HiddenSize
	qa := int32(n.cfg.QA)

	output := int32(n.outputBias)
	output += dotCReLU(us.vals, n.outputWeights[:h], qa)
	output += dotCReLU(them.vals, n.outputWeights[h:], qa)

	output *= int32(n.cfg.Scale)
	output /= qa * int32(n.cfg.QB)

	return output
}

func (n *Network) owns(acc *Accumulator) {
	if acc.net != n {
		panic(ErrNetworkMismatch)
	}
}

func checkFeature(f int) {
	if uint(f) >= InputSize {
		panic(fmt.Sprintf("nnue: feature index %d out of range [0, %d)", f, InputSize))
	}
}
