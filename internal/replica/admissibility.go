package replica

import "github.com/rechain/delta-crdt/pkg/crdt"

// admissible implements the admissibility filter of spec §4.4: an inbound
// delta interval is rejected if it would skip at least one dot from any
// node_id, relative to what crdt_state has already observed.
//
// lastKnown is crdt_state.causal_context.maxima. firstNew is the minimum
// dot per node_id claimed by the interval's causal context.
func admissible(lastKnown map[uint64]uint64, interval crdt.Lattice) bool {
	firstNew := interval.CausalContext().MinPerNode()
	for node, first := range firstNew {
		last, known := lastKnown[node]
		if known && last+1 < first {
			return false
		}
	}
	return true
}
