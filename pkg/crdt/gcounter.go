package crdt

import (
	"encoding/json"
	"fmt"
)

func init() {
	Register("gcounter", func(nodeID uint64) Lattice { return NewGCounter(nodeID) })
}

// GCounter is a grow-only counter: each Increment call consumes one dot
// from the caller's sequence and records the magnitude at that dot, so the
// same per-node dot bookkeeping that backs ORSet also backs the causal
// context here (spec §3: "Assumed to expose a causal_context view").
type GCounter struct {
	nodeID uint64
	counts map[uint64]map[uint64]int64 // node_id -> counter -> magnitude
	ctx    CausalContext
}

// NewGCounter creates an empty GCounter for nodeID.
func NewGCounter(nodeID uint64) *GCounter {
	return &GCounter{
		nodeID: nodeID,
		counts: make(map[uint64]map[uint64]int64),
		ctx:    NewCausalContext(),
	}
}

// Increment is the named mutator; by must be positive. Returns the delta.
func (c *GCounter) Increment(nodeID uint64, by int64) *GCounter {
	if by <= 0 {
		return NewGCounter(nodeID)
	}
	dot := Dot{NodeID: nodeID, Counter: c.ctx.NextCounter(nodeID)}

	delta := NewGCounter(nodeID)
	delta.counts[nodeID] = map[uint64]int64{dot.Counter: by}
	delta.ctx.Add(dot)
	return delta
}

// Value implements Lattice.
func (c *GCounter) Value() interface{} {
	var total int64
	for _, byCounter := range c.counts {
		for _, magnitude := range byCounter {
			total += magnitude
		}
	}
	return total
}

// Join implements Lattice.
func (c *GCounter) Join(other Lattice) Lattice {
	o, ok := other.(*GCounter)
	if !ok {
		panic(fmt.Errorf("gcounter: %w: %T", ErrIncompatibleTypes, other))
	}

	out := c.Clone().(*GCounter)
	for node, byCounter := range o.counts {
		if out.counts[node] == nil {
			out.counts[node] = make(map[uint64]int64, len(byCounter))
		}
		for ctr, magnitude := range byCounter {
			out.counts[node][ctr] = magnitude
		}
	}
	out.ctx.Merge(o.ctx)
	return out
}

// Compress coalesces each node's contiguous dot prefix into a single entry
// carrying the running sum, shrinking the per-dot map without losing any
// information the causal context already records independently.
func (c *GCounter) Compress() Lattice {
	out := c.Clone().(*GCounter)
	maxima := out.ctx.Maxima()
	for node, byCounter := range out.counts {
		prefix := maxima[node]
		if prefix == 0 {
			continue
		}
		var sum int64
		coalesced := 0
		for ctr, magnitude := range byCounter {
			if ctr <= prefix {
				sum += magnitude
				coalesced++
			}
		}
		if coalesced <= 1 {
			continue
		}
		collapsed := make(map[uint64]int64, len(byCounter)-coalesced+1)
		for ctr, magnitude := range byCounter {
			if ctr > prefix {
				collapsed[ctr] = magnitude
			}
		}
		collapsed[prefix] = sum
		out.counts[node] = collapsed
	}
	return out
}

// Mutate implements Mutable: "increment" is the only named mutator.
func (c *GCounter) Mutate(name string, nodeID uint64, args ...interface{}) (Lattice, error) {
	if name != "increment" {
		return nil, fmt.Errorf("gcounter: %w: %s", ErrUnknownMutator, name)
	}
	by, ok := firstInt64(args)
	if !ok {
		return nil, fmt.Errorf("gcounter: increment requires an int64 magnitude argument")
	}
	return c.Increment(nodeID, by), nil
}

// CausalContext implements Lattice.
func (c *GCounter) CausalContext() CausalContext {
	return c.ctx
}

// Clone implements Lattice.
func (c *GCounter) Clone() Lattice {
	out := NewGCounter(c.nodeID)
	for node, byCounter := range c.counts {
		cp := make(map[uint64]int64, len(byCounter))
		for ctr, magnitude := range byCounter {
			cp[ctr] = magnitude
		}
		out.counts[node] = cp
	}
	out.ctx = c.ctx.Clone()
	return out
}

type gcounterWire struct {
	Counts map[uint64]map[uint64]int64 `json:"counts"`
}

// MarshalJSON serializes the counter for wire transport.
func (c *GCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(gcounterWire{Counts: c.counts})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *GCounter) UnmarshalJSON(data []byte) error {
	var wire gcounterWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.counts = wire.Counts
	if c.counts == nil {
		c.counts = make(map[uint64]map[uint64]int64)
	}
	c.ctx = NewCausalContext()
	for node, byCounter := range c.counts {
		for ctr := range byCounter {
			c.ctx.Add(Dot{NodeID: node, Counter: ctr})
		}
	}
	return nil
}
