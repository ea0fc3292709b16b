package replica

import "github.com/rechain/delta-crdt/pkg/crdt"

// deltaBuffer is the ordered mapping from sequence number to (origin,
// delta) described in spec §4.2. It is owned exclusively by the actor
// goroutine — no internal locking.
type deltaBuffer struct {
	entries map[SeqNum]bufferEntry
	minSeq  SeqNum
	minSet  bool
}

func newDeltaBuffer() *deltaBuffer {
	return &deltaBuffer{entries: make(map[SeqNum]bufferEntry)}
}

// insert records a delta at sequence number seq.
func (b *deltaBuffer) insert(seq SeqNum, origin Endpoint, delta crdt.Lattice) {
	b.entries[seq] = bufferEntry{Origin: origin, Delta: delta}
	if !b.minSet || seq < b.minSeq {
		b.minSeq = seq
		b.minSet = true
	}
}

// len returns the number of buffered deltas.
func (b *deltaBuffer) len() int {
	return len(b.entries)
}

// min returns the smallest buffered sequence number and whether the buffer
// is non-empty.
func (b *deltaBuffer) min() (SeqNum, bool) {
	if len(b.entries) == 0 {
		return 0, false
	}
	return b.minSeq, true
}

// rangeExcludingOrigin returns every delta with lo <= seq < hi whose origin
// is not excludeOrigin, ordered by sequence number (spec §4.3 candidates).
func (b *deltaBuffer) rangeExcludingOrigin(lo, hi SeqNum, excludeOrigin Endpoint) []crdt.Lattice {
	var out []crdt.Lattice
	for seq := lo; seq < hi; seq++ {
		entry, ok := b.entries[seq]
		if !ok {
			continue
		}
		if entry.Origin == excludeOrigin {
			continue
		}
		out = append(out, entry.Delta)
	}
	return out
}

// pruneBelow discards every entry with sequence number < l (spec §4.1
// garbage_collect tick).
func (b *deltaBuffer) pruneBelow(l SeqNum) {
	for seq := range b.entries {
		if seq < l {
			delete(b.entries, seq)
		}
	}
	b.recomputeMin()
}

func (b *deltaBuffer) recomputeMin() {
	b.minSet = false
	for seq := range b.entries {
		if !b.minSet || seq < b.minSeq {
			b.minSeq = seq
			b.minSet = true
		}
	}
}
