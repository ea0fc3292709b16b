package crdt

import "sort"

// CausalContext is the set of dots a lattice value has observed, plus the
// per-node contiguous-prefix maxima the admissibility filter needs (spec
// §4.4: "largest dot in a contiguous prefix").
type CausalContext struct {
	// dots holds every observed (NodeID, Counter) pair, including ones
	// that are not part of a node's contiguous prefix (e.g. after a
	// reordered delivery, before the gap fills in).
	dots map[uint64]map[uint64]struct{}
}

// NewCausalContext returns an empty causal context.
func NewCausalContext() CausalContext {
	return CausalContext{dots: make(map[uint64]map[uint64]struct{})}
}

// Add records a single dot as observed.
func (c CausalContext) Add(d Dot) {
	if c.dots[d.NodeID] == nil {
		c.dots[d.NodeID] = make(map[uint64]struct{})
	}
	c.dots[d.NodeID][d.Counter] = struct{}{}
}

// Contains reports whether a dot has already been observed.
func (c CausalContext) Contains(d Dot) bool {
	ctrs, ok := c.dots[d.NodeID]
	if !ok {
		return false
	}
	_, ok = ctrs[d.Counter]
	return ok
}

// NextCounter returns the next unused counter for nodeID.
func (c CausalContext) NextCounter(nodeID uint64) uint64 {
	return c.Maxima()[nodeID] + 1
}

// Merge unions another causal context into the receiver in place.
func (c CausalContext) Merge(other CausalContext) {
	for node, ctrs := range other.dots {
		if c.dots[node] == nil {
			c.dots[node] = make(map[uint64]struct{})
		}
		for ctr := range ctrs {
			c.dots[node][ctr] = struct{}{}
		}
	}
}

// Clone returns a deep copy.
func (c CausalContext) Clone() CausalContext {
	out := NewCausalContext()
	out.Merge(c)
	return out
}

// Maxima returns, per node_id, the largest counter such that every smaller
// counter from that node has also been observed (the contiguous prefix
// boundary — spec GLOSSARY "Maxima").
func (c CausalContext) Maxima() map[uint64]uint64 {
	maxima := make(map[uint64]uint64, len(c.dots))
	for node, ctrs := range c.dots {
		sorted := make([]uint64, 0, len(ctrs))
		for ctr := range ctrs {
			sorted = append(sorted, ctr)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var prefix uint64
		for _, ctr := range sorted {
			if ctr == prefix+1 {
				prefix = ctr
			} else if ctr == 1 && prefix == 0 {
				prefix = 1
			} else {
				break
			}
		}
		maxima[node] = prefix
	}
	return maxima
}

// MinPerNode returns, per node_id, the smallest observed counter — what the
// admissibility filter calls first_new (spec §4.4 step 2).
func (c CausalContext) MinPerNode() map[uint64]uint64 {
	out := make(map[uint64]uint64, len(c.dots))
	for node, ctrs := range c.dots {
		var min uint64
		first := true
		for ctr := range ctrs {
			if first || ctr < min {
				min = ctr
				first = false
			}
		}
		out[node] = min
	}
	return out
}

// IsEmpty reports whether no dots have been observed.
func (c CausalContext) IsEmpty() bool {
	return len(c.dots) == 0
}
