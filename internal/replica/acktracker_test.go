package replica

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAckTrackerMonotone(t *testing.T) {
	tr := newAckTracker()
	tr.observe("n1", 5)
	tr.observe("n1", 3) // reordered/duplicate ack must not regress
	assert.Equal(t, SeqNum(5), tr.get("n1"))

	tr.observe("n1", 9)
	assert.Equal(t, SeqNum(9), tr.get("n1"))
}

func TestAckTrackerMinAcrossKnownDefaultsToZero(t *testing.T) {
	tr := newAckTracker()
	tr.observe("n1", 5)

	min, found := tr.minAcrossKnown([]Endpoint{"n1", "n2"})
	assert.True(t, found)
	assert.Equal(t, SeqNum(0), min, "n2 has no recorded ack and defaults to 0")
}
