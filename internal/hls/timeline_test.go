package hls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeline_AppendAndRemove(t *testing.T) {
	tl := NewTimeline(nil)
	tl.AppendSegment(0, false)
	tl.AppendSegment(1, false)

	require.Len(t, tl.Sequences(), 1)
	assert.EqualValues(t, 0, tl.Sequences()[0].FirstMSN)
	assert.EqualValues(t, 1, tl.Sequences()[0].LastMSN)

	tl.RemoveOlderThan(1)
	require.Len(t, tl.Sequences(), 1)
	assert.EqualValues(t, 1, tl.Sequences()[0].FirstMSN)
}

func TestTimeline_DiscontinuityStartsNewSequence(t *testing.T) {
	tl := NewTimeline(nil)
	tl.AppendSegment(0, false)
	tl.AppendSegment(1, true)
	tl.AppendSegment(2, false)

	require.Len(t, tl.Sequences(), 2)
	assert.EqualValues(t, Sequence{FirstMSN: 0, LastMSN: 0}, tl.Sequences()[0])
	assert.EqualValues(t, Sequence{FirstMSN: 1, LastMSN: 2}, tl.Sequences()[1])
}

func TestTimeline_RemoveOlderThanDropsFullyStaleSequences(t *testing.T) {
	tl := NewTimeline(nil)
	tl.AppendSegment(0, false)
	tl.AppendSegment(1, true)

	tl.RemoveOlderThan(1)
	require.Len(t, tl.Sequences(), 1)
	assert.EqualValues(t, 1, tl.Sequences()[0].FirstMSN)

	for _, s := range tl.Sequences() {
		assert.GreaterOrEqual(t, s.FirstMSN, uint64(1))
	}
}
