package crdt_test

import (
	"testing"

	"github.com/rechain/delta-crdt/pkg/crdt"
	"github.com/stretchr/testify/assert"
)

func TestCausalContextMaximaContiguousPrefix(t *testing.T) {
	ctx := crdt.NewCausalContext()
	ctx.Add(crdt.Dot{NodeID: 1, Counter: 1})
	ctx.Add(crdt.Dot{NodeID: 1, Counter: 2})
	ctx.Add(crdt.Dot{NodeID: 1, Counter: 4}) // gap: counter 3 missing

	maxima := ctx.Maxima()
	assert.Equal(t, uint64(2), maxima[1])
}

func TestCausalContextMinPerNode(t *testing.T) {
	ctx := crdt.NewCausalContext()
	ctx.Add(crdt.Dot{NodeID: 1, Counter: 5})
	ctx.Add(crdt.Dot{NodeID: 1, Counter: 7})

	min := ctx.MinPerNode()
	assert.Equal(t, uint64(5), min[1])
}

func TestCausalContextNextCounterIsSequential(t *testing.T) {
	ctx := crdt.NewCausalContext()
	assert.Equal(t, uint64(1), ctx.NextCounter(1))

	ctx.Add(crdt.Dot{NodeID: 1, Counter: 1})
	assert.Equal(t, uint64(2), ctx.NextCounter(1))
}

func TestCausalContextMergeIsUnion(t *testing.T) {
	a := crdt.NewCausalContext()
	a.Add(crdt.Dot{NodeID: 1, Counter: 1})

	b := crdt.NewCausalContext()
	b.Add(crdt.Dot{NodeID: 2, Counter: 1})

	a.Merge(b)
	assert.True(t, a.Contains(crdt.Dot{NodeID: 1, Counter: 1}))
	assert.True(t, a.Contains(crdt.Dot{NodeID: 2, Counter: 1}))
}
