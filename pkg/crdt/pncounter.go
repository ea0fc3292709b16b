package crdt

import (
	"encoding/json"
	"fmt"
)

func init() {
	Register("pncounter", func(nodeID uint64) Lattice { return NewPNCounter(nodeID) })
}

// PNCounter is a positive-negative counter: Increment and Decrement both
// consume a dot from the caller's shared per-node sequence, same as
// GCounter, so admissibility can detect a missing increment or decrement
// equally.
type PNCounter struct {
	nodeID uint64
	inc    map[uint64]map[uint64]int64 // node_id -> counter -> magnitude (increments)
	dec    map[uint64]map[uint64]int64 // node_id -> counter -> magnitude (decrements)
	ctx    CausalContext
}

// NewPNCounter creates an empty PNCounter for nodeID.
func NewPNCounter(nodeID uint64) *PNCounter {
	return &PNCounter{
		nodeID: nodeID,
		inc:    make(map[uint64]map[uint64]int64),
		dec:    make(map[uint64]map[uint64]int64),
		ctx:    NewCausalContext(),
	}
}

// Increment is the named mutator for a positive adjustment.
func (c *PNCounter) Increment(nodeID uint64, by int64) *PNCounter {
	if by <= 0 {
		return NewPNCounter(nodeID)
	}
	dot := Dot{NodeID: nodeID, Counter: c.ctx.NextCounter(nodeID)}

	delta := NewPNCounter(nodeID)
	delta.inc[nodeID] = map[uint64]int64{dot.Counter: by}
	delta.ctx.Add(dot)
	return delta
}

// Decrement is the named mutator for a negative adjustment.
func (c *PNCounter) Decrement(nodeID uint64, by int64) *PNCounter {
	if by <= 0 {
		return NewPNCounter(nodeID)
	}
	dot := Dot{NodeID: nodeID, Counter: c.ctx.NextCounter(nodeID)}

	delta := NewPNCounter(nodeID)
	delta.dec[nodeID] = map[uint64]int64{dot.Counter: by}
	delta.ctx.Add(dot)
	return delta
}

// Value implements Lattice.
func (c *PNCounter) Value() interface{} {
	var total int64
	for _, byCounter := range c.inc {
		for _, m := range byCounter {
			total += m
		}
	}
	for _, byCounter := range c.dec {
		for _, m := range byCounter {
			total -= m
		}
	}
	return total
}

// Join implements Lattice.
func (c *PNCounter) Join(other Lattice) Lattice {
	o, ok := other.(*PNCounter)
	if !ok {
		panic(fmt.Errorf("pncounter: %w: %T", ErrIncompatibleTypes, other))
	}

	out := c.Clone().(*PNCounter)
	mergeInto(out.inc, o.inc)
	mergeInto(out.dec, o.dec)
	out.ctx.Merge(o.ctx)
	return out
}

func mergeInto(dst, src map[uint64]map[uint64]int64) {
	for node, byCounter := range src {
		if dst[node] == nil {
			dst[node] = make(map[uint64]int64, len(byCounter))
		}
		for ctr, magnitude := range byCounter {
			dst[node][ctr] = magnitude
		}
	}
}

// Compress coalesces each node's contiguous prefix on both sides, mirroring
// GCounter.Compress.
func (c *PNCounter) Compress() Lattice {
	out := c.Clone().(*PNCounter)
	maxima := out.ctx.Maxima()
	coalesce(out.inc, maxima)
	coalesce(out.dec, maxima)
	return out
}

func coalesce(m map[uint64]map[uint64]int64, maxima map[uint64]uint64) {
	for node, byCounter := range m {
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
		m[node] = collapsed
	}
}

// Mutate implements Mutable, dispatching to Increment or Decrement by name.
func (c *PNCounter) Mutate(name string, nodeID uint64, args ...interface{}) (Lattice, error) {
	by, ok := firstInt64(args)
	if !ok {
		return nil, fmt.Errorf("pncounter: %s requires an int64 magnitude argument", name)
	}
	switch name {
	case "increment":
		return c.Increment(nodeID, by), nil
	case "decrement":
		return c.Decrement(nodeID, by), nil
	default:
		return nil, fmt.Errorf("pncounter: %w: %s", ErrUnknownMutator, name)
	}
}

// CausalContext implements Lattice.
func (c *PNCounter) CausalContext() CausalContext {
	return c.ctx
}

// Clone implements Lattice.
func (c *PNCounter) Clone() Lattice {
	out := NewPNCounter(c.nodeID)
	for node, byCounter := range c.inc {
		cp := make(map[uint64]int64, len(byCounter))
		for ctr, m := range byCounter {
			cp[ctr] = m
		}
		out.inc[node] = cp
	}
	for node, byCounter := range c.dec {
		cp := make(map[uint64]int64, len(byCounter))
		for ctr, m := range byCounter {
			cp[ctr] = m
		}
		out.dec[node] = cp
	}
	out.ctx = c.ctx.Clone()
	return out
}

type pncounterWire struct {
	Inc map[uint64]map[uint64]int64 `json:"inc"`
	Dec map[uint64]map[uint64]int64 `json:"dec"`
}

// MarshalJSON serializes the counter for wire transport.
func (c *PNCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(pncounterWire{Inc: c.inc, Dec: c.dec})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *PNCounter) UnmarshalJSON(data []byte) error {
	var wire pncounterWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.inc = wire.Inc
	if c.inc == nil {
		c.inc = make(map[uint64]map[uint64]int64)
	}
	c.dec = wire.Dec
	if c.dec == nil {
		c.dec = make(map[uint64]map[uint64]int64)
	}
	c.ctx = NewCausalContext()
	for node, byCounter := range c.inc {
		for ctr := range byCounter {
			c.ctx.Add(Dot{NodeID: node, Counter: ctr})
		}
	}
	for node, byCounter := range c.dec {
		for ctr := range byCounter {
			c.ctx.Add(Dot{NodeID: node, Counter: ctr})
		}
	}
	return nil
}
