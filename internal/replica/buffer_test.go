package replica

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rechain/delta-crdt/pkg/crdt"
)

func TestDeltaBufferRangeExcludingOrigin(t *testing.T) {
	buf := newDeltaBuffer()
	buf.insert(0, selfOrigin, crdt.NewORSet(1))
	buf.insert(1, Endpoint("neighbourA"), crdt.NewORSet(1))
	buf.insert(2, selfOrigin, crdt.NewORSet(1))

	out := buf.rangeExcludingOrigin(0, 3, "neighbourA")
	assert.Len(t, out, 2, "the entry originated by neighbourA must be excluded")
}

func TestDeltaBufferPruneBelow(t *testing.T) {
	buf := newDeltaBuffer()
	for i := SeqNum(0); i < 5; i++ {
		buf.insert(i, selfOrigin, crdt.NewORSet(1))
	}
	buf.pruneBelow(3)

	min, ok := buf.min()
	require.True(t, ok)
	assert.Equal(t, SeqNum(3), min)
	assert.Equal(t, 2, buf.len())
}

func TestDeltaBufferPruneBelowEmptiesMin(t *testing.T) {
	buf := newDeltaBuffer()
	buf.insert(0, selfOrigin, crdt.NewORSet(1))
	buf.pruneBelow(10)

	_, ok := buf.min()
	assert.False(t, ok)
}
