package track

import (
	"testing"

	"github.com/LdDl/trackcore/geometry"
	"github.com/LdDl/trackcore/kalmanfilter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrackInitialState(t *testing.T) {
	filter := kalmanfilter.DefaultBBoxFilter()
	box := geometry.LTWH(10, 10, 5, 5)
	tr := New(1, 0, 0, Observation{Box: box}, filter, 3, 3, false)

	assert.Equal(t, uint64(1), tr.ID)
	assert.Equal(t, uint64(1), tr.Length)
	assert.Equal(t, VotingPositional, tr.VotingType)
	assert.Nil(t, tr.Features)
	require.Equal(t, 1, tr.History.Len())
}

func TestApplyMatchAdvancesState(t *testing.T) {
	filter := kalmanfilter.DefaultBBoxFilter()
	box := geometry.LTWH(10, 10, 5, 5)
	tr := New(1, 0, 0, Observation{Box: box}, filter, 3, 3, false)

	tr.ApplyPredict(filter)
	moved := geometry.LTWH(12, 12, 5, 5)
	tr.ApplyMatch(filter, Observation{Box: moved}, 1, VotingPositional)

	assert.Equal(t, uint64(1), tr.Epoch)
	assert.Equal(t, uint64(2), tr.Length)
	require.Equal(t, 2, tr.History.Len())
}

func TestApplyMatchCarriesCustomID(t *testing.T) {
	filter := kalmanfilter.DefaultBBoxFilter()
	box := geometry.LTWH(0, 0, 5, 5)
	tr := New(1, 0, 0, Observation{Box: box}, filter, 3, 3, false)

	id := int64(42)
	tr.ApplyMatch(filter, Observation{Box: box, CustomID: &id}, 1, VotingPositional)
	require.NotNil(t, tr.CustomObjectID)
	assert.Equal(t, int64(42), *tr.CustomObjectID)
}

func TestVisualTrackPushesFeature(t *testing.T) {
	filter := kalmanfilter.DefaultBBoxFilter()
	box := geometry.LTWH(0, 0, 5, 5)
	tr := New(1, 0, 0, Observation{Box: box}, filter, 3, 3, true)
	require.NotNil(t, tr.Features)

	tr.ApplyMatch(filter, Observation{Box: box, Feature: []float32{1, 2, 3}}, 1, VotingVisual)
	assert.Equal(t, 1, tr.Features.Len())
}

func TestIdleAge(t *testing.T) {
	filter := kalmanfilter.DefaultBBoxFilter()
	box := geometry.LTWH(0, 0, 5, 5)
	tr := New(1, 0, 5, Observation{Box: box}, filter, 3, 3, false)
	assert.Equal(t, uint64(3), tr.IdleAge(8))
	assert.Equal(t, uint64(0), tr.IdleAge(2))
}

func TestShardIndexStable(t *testing.T) {
	for _, id := range []uint64{0, 1, 7, 1000, 1<<63 + 5} {
		idx := ShardIndex(id, 4)
		assert.Equal(t, idx, ShardIndex(id, 4))
		assert.True(t, idx >= 0 && idx < 4)
	}
}

func TestBoxHistoryEviction(t *testing.T) {
	h := NewBoxHistory(2)
	b1 := geometry.LTWH(0, 0, 1, 1)
	b2 := geometry.LTWH(1, 1, 1, 1)
	b3 := geometry.LTWH(2, 2, 1, 1)

	h.Push(BoxPair{Predicted: b1, Observed: b1})
	h.Push(BoxPair{Predicted: b2, Observed: b2})
	h.Push(BoxPair{Predicted: b3, Observed: b3})

	values := h.Values()
	require.Len(t, values, 2)
	assert.Equal(t, b2, values[0].Observed)
	assert.Equal(t, b3, values[1].Observed)
}
