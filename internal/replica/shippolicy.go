package replica

import "github.com/rechain/delta-crdt/pkg/crdt"

// shipDecision is the outcome of evaluating the ship policy for a single
// neighbour: either nothing to send, a full-state ship (buffer outran what
// the neighbour needs), or a delta-interval ship built by folding buffered
// candidates.
type shipDecision struct {
	skip    bool
	payload crdt.Lattice
}

// decideShip implements spec §4.3 for one neighbour n.
func decideShip(buf *deltaBuffer, state crdt.Lattice, sequenceNumber SeqNum, n Endpoint, remoteAcked SeqNum) shipDecision {
	minKey, nonEmpty := buf.min()

	if !nonEmpty || minKey > remoteAcked+1 {
		// We no longer hold the deltas the neighbour is missing; only a
		// full-state ship can recover it. The tie minKey == remoteAcked+1
		// (the neighbour is exactly one step behind the oldest buffered
		// delta) still has everything it needs in the buffer, so it falls
		// through to the delta-interval branch below (spec §9).
		return shipDecision{payload: state}
	}

	candidates := buf.rangeExcludingOrigin(remoteAcked, sequenceNumber, n)
	if len(candidates) == 0 {
		return shipDecision{skip: true}
	}

	if remoteAcked >= sequenceNumber {
		return shipDecision{skip: true}
	}

	interval := candidates[0]
	for _, c := range candidates[1:] {
		interval = interval.Join(c)
	}
	return shipDecision{payload: interval}
}
