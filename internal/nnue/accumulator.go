package nnue

// Accumulator stores the hidden-layer pre-activations for one perspective.
// It always equals bias + sum of the columns of the currently active features.
type Accumulator struct {
	net  *Network
	vals []int16 // CacheLineSize aligned, len == HiddenSize
}

// Network returns the network acc was created by.
func (acc *Accumulator) Network() *Network { return acc.net }

// Values returns the raw pre-activations. The slice must not be modified.
func (acc *Accumulator) Values() []int16 { return acc.vals }

// CopyFrom overwrites acc with the values of src.
func (acc *Accumulator) CopyFrom(src *Accumulator) {
	if acc.net != src.net {
		panic(ErrNetworkMismatch)
	}
	copy(acc.vals, src.vals)
}

// Clone returns an independent copy of acc.
func (acc *Accumulator) Clone() *Accumulator {
	c := &Accumulator{
		net:  acc.net,
		vals: alignedInt16(len(acc.vals)),
	}
	copy(c.vals, acc.vals)
	return c
}

// Equal reports whether both accumulators hold identical values for the same network.
func (acc *Accumulator) Equal(other *Accumulator) bool {
	if acc.net != other.net || len(acc.vals) != len(other.vals) {
		return false
	}
	for i, v := range acc.vals {
		if other.vals[i] != v {
			return false
		}
	}
	return true
}

// AccumulatorStack keeps one accumulator pair per ply so that unmaking a move
// is a pop instead of a reverse update.
type AccumulatorStack struct {
	net   *Network
	stack [MaxPly][2]*Accumulator
	top   int
}

// NewAccumulatorStack preallocates MaxPly accumulator pairs for net.
// The bottom entry starts at the feature bias.
func NewAccumulatorStack(net *Network) *AccumulatorStack {
	s := &AccumulatorStack{net: net}
	for i := range s.stack {
		s.stack[i][0] = net.NewAccumulator()
		s.stack[i][1] = net.NewAccumulator()
	}
	return s
}

// Push copies the current pair into the next ply and makes it current.
// Push beyond MaxPly panics.
func (s *AccumulatorStack) Push() {
	if s.top+1 >= MaxPly {
		panic("nnue: accumulator stack overflow")
	}
	s.stack[s.top+1][0].CopyFrom(s.stack[s.top][0])
	s.stack[s.top+1][1].CopyFrom(s.stack[s.top][1])
	s.top++
}

// Pop discards the current pair, restoring the previous ply.
func (s *AccumulatorStack) Pop() {
	if s.top == 0 {
		panic("nnue: accumulator stack underflow")
	}
	s.top--
}

// Current returns the accumulator of the given perspective (0 white, 1 black) at the current ply.
func (s *AccumulatorStack) Current(perspective int) *Accumulator {
	return s.stack[s.top][perspective]
}

// Ply returns the current stack depth.
func (s *AccumulatorStack) Ply() int { return s.top }

// Reset drops back to the bottom entry and re-initialises it to the bias.
func (s *AccumulatorStack) Reset() {
	s.top = 0
	s.net.Reset(s.stack[0][0])
	s.net.Reset(s.stack[0][1])
}
