package replica

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rechain/delta-crdt/pkg/crdt"
)

func TestDecideShipFallsBackToFullStateWhenBufferGCdPastNeighbour(t *testing.T) {
	buf := newDeltaBuffer() // empty: GC has pruned everything
	state := crdt.NewGCounter(1)
	state = state.Join(state.Increment(1, 5)).(*crdt.GCounter)

	decision := decideShip(buf, state, 3, "n1", 0)
	require.False(t, decision.skip)
	assert.Equal(t, state, decision.payload)
}

func TestDecideShipExcludesNeighbourOrigin(t *testing.T) {
	buf := newDeltaBuffer()
	buf.insert(0, Endpoint("n1"), crdt.NewORSet(1).Add(1, "from-n1"))
	buf.insert(1, selfOrigin, crdt.NewORSet(1).Add(1, "local"))

	state := crdt.NewORSet(1)
	decision := decideShip(buf, state, 2, "n1", 0)

	require.False(t, decision.skip)
	elems := decision.payload.(*crdt.ORSet).Elements()
	assert.Equal(t, []string{"local"}, elems, "the delta originated by n1 must never ship back to n1")
}

// The tie minKey == remoteAcked+1 means the buffer's oldest entry is
// exactly what the neighbour is missing next; spec §9 resolves this tie
// in favor of the delta-interval branch, not a full-state fallback.
func TestDecideShipTakesDeltaIntervalOnTie(t *testing.T) {
	buf := newDeltaBuffer()
	buf.insert(3, Endpoint("other"), crdt.NewORSet(1).Add(1, "x"))

	state := crdt.NewORSet(1)
	state = state.Join(state.Add(1, "x")).(*crdt.ORSet)

	decision := decideShip(buf, state, 4, "n1", 2)

	require.False(t, decision.skip)
	assert.NotSame(t, state, decision.payload, "the tie must take the delta-interval branch, not the full state")
}

func TestDecideShipSkipsWhenNoCandidates(t *testing.T) {
	buf := newDeltaBuffer()
	buf.insert(0, Endpoint("n1"), crdt.NewORSet(1))

	state := crdt.NewORSet(1)
	decision := decideShip(buf, state, 1, "n1", 0)

	assert.True(t, decision.skip)
}
