package replica

import "github.com/rechain/delta-crdt/pkg/crdt"

// DeltaMessage carries a delta interval or a full state snapshot from
// origin, sequenced at SequenceNumber on the sender's log (spec §6 wire
// messages). The receiver cannot and need not distinguish the two cases —
// both are ordinary lattice values.
type DeltaMessage struct {
	Origin         Endpoint
	Payload        crdt.Lattice
	SequenceNumber SeqNum
}

// AckMessage acknowledges receipt of everything up through SequenceNumber
// from From.
type AckMessage struct {
	From           Endpoint
	SequenceNumber SeqNum
}

// readRequest is the internal request/reply envelope for read().
type readRequest struct {
	project func(crdt.Lattice) interface{}
	reply   chan interface{}
}

// opRequest is the internal request/reply envelope for operation().
type opRequest struct {
	mutator string
	args    []interface{}
	reply   chan error
}

// addNeighboursRequest is the internal request/reply envelope for
// add_neighbour / add_neighbours.
type addNeighboursRequest struct {
	endpoints []Endpoint
	done      chan struct{}
}

// inboundDelta wraps an incoming DeltaMessage for the actor's inbox.
type inboundDelta struct {
	msg DeltaMessage
}

// inboundAck wraps an incoming AckMessage for the actor's inbox.
type inboundAck struct {
	msg AckMessage
}

// tryShipTick is the periodic try_ship signal (spec §4.1).
type tryShipTick struct{}

// gcTick is the periodic garbage_collect signal (spec §4.1).
type gcTick struct{}

// shipSnapshot is the deferred {ship, s} message produced by debouncing a
// tryShipTick (spec §4.1).
type shipSnapshot struct {
	s SeqNum
}

// stopRequest asks the actor to perform a final best-effort ship and exit.
type stopRequest struct {
	done chan struct{}
}

// statusRequest is the internal request/reply envelope for Status(). It
// reports actor-introspection counters only, never crdt_state's value.
type statusRequest struct {
	reply chan Status
}
