package nnue

import (
	"math"
	"slices"
)

// Headroom summarises how close the accumulator can get to int16 overflow.
type Headroom struct {
	MaxActive int   // active features assumed per perspective
	WorstCase int64 // largest bound over all hidden neurons
	Neuron    int   // neuron reaching WorstCase
	Unsafe    int   // neurons whose bound exceeds math.MaxInt16
}

// Headroom bounds every hidden neuron by |bias| plus the maxActive largest
// |weights| feeding it. Accumulation stays int16; this only reports the risk.
func (n *Network) Headroom(maxActive int) Headroom {
	h := n.cfg.HiddenSize
	maxActive = min(max(maxActive, 0), InputSize)

	res := Headroom{MaxActive: maxActive}
	mags := make([]int64, InputSize)
	for j := 0; j < h; j++ {
		for f := 0; f < InputSize; f++ {
			mags[f] = abs64(int64(n.featureWeights[f*h+j]))
		}
		slices.SortFunc(mags, func(a, b int64) int { return int(b - a) })

		bound := abs64(int64(n.featureBias[j]))
		for _, m := range mags[:maxActive] {
			bound += m
		}
		if bound > res.WorstCase {
			res.WorstCase = bound
			res.Neuron = j
		}
		if bound > math.MaxInt16 {
			res.Unsafe++
		}
	}
	return res
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
