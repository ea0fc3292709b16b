package crdt_test

import (
	"testing"

	"github.com/rechain/delta-crdt/pkg/crdt"
	"github.com/stretchr/testify/assert"
)

func TestGCounterIncrementAndJoin(t *testing.T) {
	node1, node2 := uint64(1), uint64(2)

	c1 := crdt.NewGCounter(node1)
	c1 = c1.Join(c1.Increment(node1, 5)).(*crdt.GCounter)
	assert.Equal(t, int64(5), c1.Value())

	c2 := crdt.NewGCounter(node2)
	c2 = c2.Join(c2.Increment(node2, 3)).(*crdt.GCounter)

	merged := c1.Join(c2).(*crdt.GCounter)
	assert.Equal(t, int64(8), merged.Value())
}

func TestGCounterIgnoresNonPositiveIncrement(t *testing.T) {
	c := crdt.NewGCounter(1)
	delta := c.Increment(1, -5)
	merged := c.Join(delta).(*crdt.GCounter)
	assert.Equal(t, int64(0), merged.Value())
}

func TestGCounterCompressPreservesValue(t *testing.T) {
	c := crdt.NewGCounter(1)
	c = c.Join(c.Increment(1, 1)).(*crdt.GCounter)
	c = c.Join(c.Increment(1, 1)).(*crdt.GCounter)
	c = c.Join(c.Increment(1, 1)).(*crdt.GCounter)

	compressed := c.Compress().(*crdt.GCounter)
	assert.Equal(t, c.Value(), compressed.Value())
}
