package crdt_test

import (
	"testing"

	"github.com/rechain/delta-crdt/pkg/crdt"
	"github.com/stretchr/testify/assert"
)

func TestPNCounterIncrementDecrement(t *testing.T) {
	node := uint64(1)
	c := crdt.NewPNCounter(node)
	c = c.Join(c.Increment(node, 10)).(*crdt.PNCounter)
	c = c.Join(c.Decrement(node, 3)).(*crdt.PNCounter)

	assert.Equal(t, int64(7), c.Value())
}

func TestPNCounterJoinIsCommutative(t *testing.T) {
	node1, node2 := uint64(1), uint64(2)

	c1 := crdt.NewPNCounter(node1)
	c1 = c1.Join(c1.Increment(node1, 5)).(*crdt.PNCounter)

	c2 := crdt.NewPNCounter(node2)
	c2 = c2.Join(c2.Increment(node2, 3)).(*crdt.PNCounter)
	c2 = c2.Join(c2.Decrement(node2, 1)).(*crdt.PNCounter)

	ab := c1.Join(c2).(*crdt.PNCounter)
	ba := c2.Join(c1).(*crdt.PNCounter)

	assert.Equal(t, ab.Value(), ba.Value())
	assert.Equal(t, int64(7), ab.Value())
}
