// Package replica implements the anti-entropy engine of spec §4: a
// single-threaded actor per replica that applies local mutations, ships
// delta intervals (or full state) to neighbours, admits or rejects inbound
// intervals, tracks per-neighbour acknowledgements, and garbage-collects
// deltas every neighbour has acknowledged.
package replica

import "github.com/rechain/delta-crdt/pkg/crdt"

// Endpoint addresses a neighbour replica. It is opaque to the engine; the
// transport package maps it to a concrete network address.
type Endpoint string

// SeqNum is a replica-local, strictly increasing delta sequence number.
type SeqNum uint64

// bufferEntry is one slot of the delta buffer: a delta plus the endpoint
// that produced it, so the ship policy can avoid echoing a neighbour's own
// delta back to it (spec §4.3).
type bufferEntry struct {
	Origin Endpoint
	Delta  crdt.Lattice
}

// selfOrigin is the sentinel Origin for locally produced deltas.
const selfOrigin Endpoint = ""
