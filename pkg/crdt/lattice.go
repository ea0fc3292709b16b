// Package crdt provides the pluggable lattice capability consumed by the
// replica engine in internal/replica, plus a handful of concrete
// delta-state CRDTs that satisfy it.
package crdt

import "fmt"

// Dot uniquely identifies a single mutation event: the counter is per-node
// and strictly increasing, so (NodeID, Counter) never repeats.
type Dot struct {
	NodeID  uint64
	Counter uint64
}

// Lattice is the capability a concrete CRDT type must provide so the
// replica engine can treat it opaquely. S and Δ share the same Go type:
// a delta is a lattice value with the same shape as full state, per
// spec §3 ("Delta interval semantics").
type Lattice interface {
	// Value returns the user-visible projection of the current state.
	Value() interface{}

	// Join computes the semilattice join of the receiver with other,
	// returning a new value. Join must be commutative, associative and
	// idempotent.
	Join(other Lattice) Lattice

	// Compress normalizes the receiver, dropping dominated dots once
	// their causal context is satisfied. join(compress(S), X) must equal
	// compress(join(S, X)).
	Compress() Lattice

	// CausalContext exposes the dots this value has observed.
	CausalContext() CausalContext

	// Clone returns a deep copy, so the replica can hand out deltas
	// without aliasing mutable internals.
	Clone() Lattice
}

// Factory builds an empty value of a named lattice type for a given node.
type Factory func(nodeID uint64) Lattice

// Mutable is implemented by every concrete lattice type registered in this
// package: it dispatches a named mutator (spec §6, "For each named mutator
// μ") by string name, so the replica engine can apply operation() without
// knowing the concrete lattice type.
type Mutable interface {
	Lattice
	Mutate(name string, nodeID uint64, args ...interface{}) (Lattice, error)
}

var registry = map[string]Factory{}

// Register makes a lattice type constructible by name via New. Concrete
// lattice files call this from an init().
func Register(name string, f Factory) {
	registry[name] = f
}

// New creates an empty Lattice of the named type.
func New(name string, nodeID uint64) (Lattice, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("crdt: %w: %s", ErrUnknownLatticeType, name)
	}
	return f(nodeID), nil
}

// Errors returned by the crdt package.
var (
	ErrUnknownLatticeType = fmt.Errorf("unknown lattice type")
	ErrIncompatibleTypes  = fmt.Errorf("incompatible lattice types")
	ErrUnknownMutator     = fmt.Errorf("unknown mutator")
)
