package crdt_test

import (
	"testing"

	"github.com/rechain/delta-crdt/pkg/crdt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAWLWWMapSetGet(t *testing.T) {
	m := crdt.NewAWLWWMap(1)
	m = m.Join(m.Set(1, "k", "v1", 100)).(*crdt.AWLWWMap)

	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestAWLWWMapLatestTimestampWins(t *testing.T) {
	m := crdt.NewAWLWWMap(1)
	older := m.Set(1, "k", "old", 100)
	newer := m.Set(2, "k", "new", 200)

	merged := m.Join(older).(*crdt.AWLWWMap)
	merged = merged.Join(newer).(*crdt.AWLWWMap)

	v, ok := merged.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestAWLWWMapAddWinsOverConcurrentRemove(t *testing.T) {
	base := crdt.NewAWLWWMap(1)
	setDelta := base.Set(1, "k", "v1", 100)
	base = base.Join(setDelta).(*crdt.AWLWWMap)

	removeDelta := base.Remove("k")
	removed := base.Join(removeDelta).(*crdt.AWLWWMap)
	_, ok := removed.Get("k")
	require.False(t, ok)

	// A concurrent re-set (unaware of the remove) must win once merged.
	reSetDelta := base.Set(1, "k", "v2", 150)
	converged := removed.Join(reSetDelta).(*crdt.AWLWWMap)

	v, ok := converged.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestAWLWWMapCompressKeepsWinner(t *testing.T) {
	m := crdt.NewAWLWWMap(1)
	m = m.Join(m.Set(1, "k", "v1", 100)).(*crdt.AWLWWMap)
	m = m.Join(m.Set(1, "k", "v2", 200)).(*crdt.AWLWWMap)

	compressed := m.Compress().(*crdt.AWLWWMap)
	v, ok := compressed.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}
