package crdt_test

import (
	"testing"

	"github.com/rechain/delta-crdt/pkg/crdt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestORSetAddContains(t *testing.T) {
	s := crdt.NewORSet(1)
	delta := s.Add(1, "x")
	joined := s.Join(delta).(*crdt.ORSet)

	assert.True(t, joined.Contains("x"))
	assert.False(t, joined.Contains("y"))
}

func TestORSetConcurrentAddRemoveIsAddWins(t *testing.T) {
	r1 := crdt.NewORSet(1)
	r2 := crdt.NewORSet(2)

	addDelta := r1.Add(1, "x")
	r1 = r1.Join(addDelta).(*crdt.ORSet)
	r2 = r2.Join(addDelta).(*crdt.ORSet)
	require.True(t, r2.Contains("x"))

	removeDelta := r2.Remove("x")
	r2 = r2.Join(removeDelta).(*crdt.ORSet)
	require.False(t, r2.Contains("x"))

	// r1 concurrently re-adds "x" without having observed the remove.
	reAddDelta := r1.Add(1, "x")
	r1 = r1.Join(reAddDelta).(*crdt.ORSet)

	// After r2 observes both the remove (already applied) and the re-add,
	// the element must be present: add-wins.
	r2 = r2.Join(removeDelta).(*crdt.ORSet)
	r2 = r2.Join(reAddDelta).(*crdt.ORSet)
	assert.True(t, r2.Contains("x"))
}

func TestORSetCompressPreservesValue(t *testing.T) {
	s := crdt.NewORSet(1)
	s = s.Join(s.Add(1, "x")).(*crdt.ORSet)
	s = s.Join(s.Remove("x")).(*crdt.ORSet)

	compressed := s.Compress().(*crdt.ORSet)
	assert.Equal(t, s.Elements(), compressed.Elements())
}

func TestORSetCausalContextTracksDots(t *testing.T) {
	s := crdt.NewORSet(1)
	delta := s.Add(1, "x")
	s = s.Join(delta).(*crdt.ORSet)

	maxima := s.CausalContext().Maxima()
	assert.Equal(t, uint64(1), maxima[1])
}
