package crdt

import (
	"encoding/json"
	"fmt"
)

func init() {
	Register("orset", func(nodeID uint64) Lattice { return NewORSet(nodeID) })
}

// ORSet is an add-wins observed-remove set: a concurrent add and remove of
// the same element always resolves to the element being present (spec §8
// scenario 3, "Add-wins"). Unlike a tag-based OR-Set, adds are keyed by a
// (node_id, counter) Dot, so the set's own bookkeeping doubles as the
// causal context the admissibility filter needs (spec §4.4).
type ORSet struct {
	nodeID uint64

	// adds maps an element to the dots that added it and are still live
	// (not known-removed). An element is present iff it has at least one
	// live dot.
	adds map[string]map[Dot]struct{}

	// removed is the set of dots known to have been tombstoned, globally
	// (dots are unique across the whole cluster).
	removed map[Dot]struct{}

	ctx CausalContext
}

// NewORSet creates an empty ORSet for nodeID.
func NewORSet(nodeID uint64) *ORSet {
	return &ORSet{
		nodeID:  nodeID,
		adds:    make(map[string]map[Dot]struct{}),
		removed: make(map[Dot]struct{}),
		ctx:     NewCausalContext(),
	}
}

// Add is the named mutator for adding an element; it returns the delta
// (a singleton ORSet containing just the new dot) rather than mutating
// the receiver, per the Lattice.mutate contract (spec §6).
func (s *ORSet) Add(nodeID uint64, element string) *ORSet {
	dot := Dot{NodeID: nodeID, Counter: s.ctx.NextCounter(nodeID)}

	delta := NewORSet(nodeID)
	delta.adds[element] = map[Dot]struct{}{dot: {}}
	delta.ctx.Add(dot)
	return delta
}

// Remove is the named mutator for removing an element: the delta tombstones
// every live dot the remover currently knows about for that element.
func (s *ORSet) Remove(element string) *ORSet {
	delta := NewORSet(s.nodeID)
	for dot := range s.adds[element] {
		if _, gone := s.removed[dot]; gone {
			continue
		}
		delta.removed[dot] = struct{}{}
	}
	return delta
}

// Contains reports whether element is currently in the set.
func (s *ORSet) Contains(element string) bool {
	for dot := range s.adds[element] {
		if _, gone := s.removed[dot]; !gone {
			return true
		}
	}
	return false
}

// Elements returns every element currently present in the set, in no
// particular order.
func (s *ORSet) Elements() []string {
	out := make([]string, 0, len(s.adds))
	for element := range s.adds {
		if s.Contains(element) {
			out = append(out, element)
		}
	}
	return out
}

// Value implements Lattice.
func (s *ORSet) Value() interface{} {
	return s.Elements()
}

// Join implements Lattice: union of adds, union of tombstones, union of
// causal context.
func (s *ORSet) Join(other Lattice) Lattice {
	o, ok := other.(*ORSet)
	if !ok {
		panic(fmt.Errorf("orset: %w: %T", ErrIncompatibleTypes, other))
	}

	out := s.Clone().(*ORSet)
	for element, dots := range o.adds {
		if out.adds[element] == nil {
			out.adds[element] = make(map[Dot]struct{}, len(dots))
		}
		for dot := range dots {
			out.adds[element][dot] = struct{}{}
		}
	}
	for dot := range o.removed {
		out.removed[dot] = struct{}{}
	}
	out.ctx.Merge(o.ctx)
	return out
}

// Compress drops add-entries that are fully tombstoned. Tombstones
// themselves are retained indefinitely: dropping a tombstone could let a
// stale re-delivery of an already-removed add resurrect the element.
// Bounding tombstone growth would need a separate stable-tombstone-GC
// protocol, which is out of scope here.
func (s *ORSet) Compress() Lattice {
	out := s.Clone().(*ORSet)
	for element, dots := range out.adds {
		live := false
		for dot := range dots {
			if _, gone := out.removed[dot]; !gone {
				live = true
				break
			}
		}
		if !live {
			delete(out.adds, element)
		}
	}
	return out
}

// Mutate implements Mutable, dispatching to Add or Remove by name.
func (s *ORSet) Mutate(name string, nodeID uint64, args ...interface{}) (Lattice, error) {
	switch name {
	case "add":
		element, ok := firstString(args)
		if !ok {
			return nil, fmt.Errorf("orset: add requires a string element argument")
		}
		return s.Add(nodeID, element), nil
	case "remove":
		element, ok := firstString(args)
		if !ok {
			return nil, fmt.Errorf("orset: remove requires a string element argument")
		}
		return s.Remove(element), nil
	default:
		return nil, fmt.Errorf("orset: %w: %s", ErrUnknownMutator, name)
	}
}

// CausalContext implements Lattice.
func (s *ORSet) CausalContext() CausalContext {
	return s.ctx
}

// Clone implements Lattice.
func (s *ORSet) Clone() Lattice {
	out := NewORSet(s.nodeID)
	for element, dots := range s.adds {
		cp := make(map[Dot]struct{}, len(dots))
		for dot := range dots {
			cp[dot] = struct{}{}
		}
		out.adds[element] = cp
	}
	for dot := range s.removed {
		out.removed[dot] = struct{}{}
	}
	out.ctx = s.ctx.Clone()
	return out
}

type orSetWire struct {
	Adds    map[string][]Dot `json:"adds"`
	Removed []Dot            `json:"removed"`
}

// MarshalJSON serializes the set for wire transport (spec §6 wire messages
// carry Lattice values as opaque payloads).
func (s *ORSet) MarshalJSON() ([]byte, error) {
	wire := orSetWire{Adds: make(map[string][]Dot, len(s.adds))}
	for element, dots := range s.adds {
		list := make([]Dot, 0, len(dots))
		for dot := range dots {
			list = append(list, dot)
		}
		wire.Adds[element] = list
	}
	for dot := range s.removed {
		wire.Removed = append(wire.Removed, dot)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ORSet) UnmarshalJSON(data []byte) error {
	var wire orSetWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.adds = make(map[string]map[Dot]struct{}, len(wire.Adds))
	s.ctx = NewCausalContext()
	for element, dots := range wire.Adds {
		set := make(map[Dot]struct{}, len(dots))
		for _, dot := range dots {
			set[dot] = struct{}{}
			s.ctx.Add(dot)
		}
		s.adds[element] = set
	}
	s.removed = make(map[Dot]struct{}, len(wire.Removed))
	for _, dot := range wire.Removed {
		s.removed[dot] = struct{}{}
		s.ctx.Add(dot)
	}
	return nil
}
