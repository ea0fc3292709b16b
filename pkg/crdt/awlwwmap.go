package crdt

import (
	"encoding/json"
	"fmt"
	"time"
)

func init() {
	Register("awlwwmap", func(nodeID uint64) Lattice { return NewAWLWWMap(nodeID) })
}

// mapEntry is one candidate write for a key: a value stamped with the dot
// that produced it and the wall-clock time used for last-write-wins
// resolution.
type mapEntry struct {
	Dot       Dot
	Value     interface{}
	Timestamp int64
}

// AWLWWMap is an add-wins last-write-wins-element map: a key can be
// removed and later re-added (add-wins, like ORSet), and concurrent writes
// to the same key resolve by timestamp, node_id as tiebreaker — a
// generalization of a single LWW register (spec §4.6) to a map of them.
type AWLWWMap struct {
	nodeID uint64

	// entries maps a key to every live write candidate for it, by dot.
	entries map[string]map[Dot]mapEntry

	// removed is the set of dots tombstoned by a Remove, same scheme as
	// ORSet.
	removed map[Dot]struct{}

	ctx CausalContext
}

// NewAWLWWMap creates an empty AWLWWMap for nodeID.
func NewAWLWWMap(nodeID uint64) *AWLWWMap {
	return &AWLWWMap{
		nodeID:  nodeID,
		entries: make(map[string]map[Dot]mapEntry),
		removed: make(map[Dot]struct{}),
		ctx:     NewCausalContext(),
	}
}

// Set is the named mutator for writing a key. timestampNano should come
// from a monotonic wall clock at the call site so concurrent writers agree
// on ordering without coordination.
func (m *AWLWWMap) Set(nodeID uint64, key string, value interface{}, timestampNano int64) *AWLWWMap {
	dot := Dot{NodeID: nodeID, Counter: m.ctx.NextCounter(nodeID)}

	delta := NewAWLWWMap(nodeID)
	delta.entries[key] = map[Dot]mapEntry{
		dot: {Dot: dot, Value: value, Timestamp: timestampNano},
	}
	delta.ctx.Add(dot)
	return delta
}

// Remove is the named mutator for deleting a key: it tombstones every live
// dot currently known for that key.
func (m *AWLWWMap) Remove(key string) *AWLWWMap {
	delta := NewAWLWWMap(m.nodeID)
	for dot := range m.entries[key] {
		if _, gone := m.removed[dot]; gone {
			continue
		}
		delta.removed[dot] = struct{}{}
	}
	return delta
}

// Get returns the current winning value for key and whether the key is
// present at all.
func (m *AWLWWMap) Get(key string) (interface{}, bool) {
	winner, ok := m.winner(key)
	if !ok {
		return nil, false
	}
	return winner.Value, true
}

func (m *AWLWWMap) winner(key string) (mapEntry, bool) {
	var best mapEntry
	found := false
	for dot, entry := range m.entries[key] {
		if _, gone := m.removed[dot]; gone {
			continue
		}
		if !found || entry.Timestamp > best.Timestamp ||
			(entry.Timestamp == best.Timestamp && entry.Dot.NodeID > best.Dot.NodeID) {
			best = entry
			found = true
		}
	}
	return best, found
}

// Keys returns every key currently present.
func (m *AWLWWMap) Keys() []string {
	out := make([]string, 0, len(m.entries))
	for key := range m.entries {
		if _, ok := m.winner(key); ok {
			out = append(out, key)
		}
	}
	return out
}

// Value implements Lattice, projecting to a plain map of winning values.
func (m *AWLWWMap) Value() interface{} {
	out := make(map[string]interface{}, len(m.entries))
	for key := range m.entries {
		if v, ok := m.Get(key); ok {
			out[key] = v
		}
	}
	return out
}

// Join implements Lattice.
func (m *AWLWWMap) Join(other Lattice) Lattice {
	o, ok := other.(*AWLWWMap)
	if !ok {
		panic(fmt.Errorf("awlwwmap: %w: %T", ErrIncompatibleTypes, other))
	}

	out := m.Clone().(*AWLWWMap)
	for key, dots := range o.entries {
		if out.entries[key] == nil {
			out.entries[key] = make(map[Dot]mapEntry, len(dots))
		}
		for dot, entry := range dots {
			out.entries[key][dot] = entry
		}
	}
	for dot := range o.removed {
		out.removed[dot] = struct{}{}
	}
	out.ctx.Merge(o.ctx)
	return out
}

// Compress keeps only the current winning entry per key (dominated
// candidates can never become the winner after further joins, since the
// winner only ever advances) plus drops keys with no live entries left.
func (m *AWLWWMap) Compress() Lattice {
	out := m.Clone().(*AWLWWMap)
	for key, dots := range out.entries {
		best, ok := out.winner(key)
		if !ok {
			delete(out.entries, key)
			continue
		}
		if len(dots) > 1 {
			out.entries[key] = map[Dot]mapEntry{best.Dot: best}
		}
	}
	return out
}

// Mutate implements Mutable, dispatching to Set or Remove by name. Set
// accepts an optional third argument, a timestamp in nanoseconds; if
// omitted, the wall clock at call time is used.
func (m *AWLWWMap) Mutate(name string, nodeID uint64, args ...interface{}) (Lattice, error) {
	switch name {
	case "set":
		if len(args) < 2 {
			return nil, fmt.Errorf("awlwwmap: set requires key and value arguments")
		}
		key, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("awlwwmap: set key must be a string")
		}
		ts := time.Now().UnixNano()
		if len(args) >= 3 {
			if v, ok := args[2].(int64); ok {
				ts = v
			}
		}
		return m.Set(nodeID, key, args[1], ts), nil
	case "remove":
		key, ok := firstString(args)
		if !ok {
			return nil, fmt.Errorf("awlwwmap: remove requires a string key argument")
		}
		return m.Remove(key), nil
	default:
		return nil, fmt.Errorf("awlwwmap: %w: %s", ErrUnknownMutator, name)
	}
}

// CausalContext implements Lattice.
func (m *AWLWWMap) CausalContext() CausalContext {
	return m.ctx
}

// Clone implements Lattice.
func (m *AWLWWMap) Clone() Lattice {
	out := NewAWLWWMap(m.nodeID)
	for key, dots := range m.entries {
		cp := make(map[Dot]mapEntry, len(dots))
		for dot, entry := range dots {
			cp[dot] = entry
		}
		out.entries[key] = cp
	}
	for dot := range m.removed {
		out.removed[dot] = struct{}{}
	}
	out.ctx = m.ctx.Clone()
	return out
}

type wireMapEntry struct {
	Dot       Dot         `json:"dot"`
	Value     interface{} `json:"value"`
	Timestamp int64       `json:"timestamp"`
}

type awlwwmapWire struct {
	Entries map[string][]wireMapEntry `json:"entries"`
	Removed []Dot                     `json:"removed"`
}

// MarshalJSON serializes the map for wire transport.
func (m *AWLWWMap) MarshalJSON() ([]byte, error) {
	wire := awlwwmapWire{Entries: make(map[string][]wireMapEntry, len(m.entries))}
	for key, dots := range m.entries {
		list := make([]wireMapEntry, 0, len(dots))
		for dot, entry := range dots {
			list = append(list, wireMapEntry{Dot: dot, Value: entry.Value, Timestamp: entry.Timestamp})
		}
		wire.Entries[key] = list
	}
	for dot := range m.removed {
		wire.Removed = append(wire.Removed, dot)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *AWLWWMap) UnmarshalJSON(data []byte) error {
	var wire awlwwmapWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.entries = make(map[string]map[Dot]mapEntry, len(wire.Entries))
	m.ctx = NewCausalContext()
	for key, list := range wire.Entries {
		set := make(map[Dot]mapEntry, len(list))
		for _, e := range list {
			set[e.Dot] = mapEntry{Dot: e.Dot, Value: e.Value, Timestamp: e.Timestamp}
			m.ctx.Add(e.Dot)
		}
		m.entries[key] = set
	}
	m.removed = make(map[Dot]struct{}, len(wire.Removed))
	for _, dot := range wire.Removed {
		m.removed[dot] = struct{}{}
		m.ctx.Add(dot)
	}
	return nil
}
