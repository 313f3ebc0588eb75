package store

import (
	"context"
	"testing"

	"github.com/LdDl/trackcore/geometry"
	"github.com/LdDl/trackcore/kalmanfilter"
	"github.com/LdDl/trackcore/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTrack(id, scene uint64) *track.Track {
	filter := kalmanfilter.DefaultBBoxFilter()
	box := geometry.LTWH(float32(id), float32(id), 5, 5)
	return track.New(id, scene, 0, track.Observation{Box: box}, filter, 3, 3, false)
}

func TestStoreAddGetRemove(t *testing.T) {
	s := New(4)
	tr := newTestTrack(10, 1)
	s.Add(tr)

	got := s.Get(10)
	require.NotNil(t, got)
	assert.Equal(t, uint64(10), got.ID)

	s.Remove(10)
	assert.Nil(t, s.Get(10))
}

func TestStoreShardStats(t *testing.T) {
	s := New(2)
	for i := uint64(0); i < 6; i++ {
		s.Add(newTestTrack(i, 1))
	}
	stats := s.ShardStats()
	require.Len(t, stats, 2)
	total := 0
	for _, c := range stats {
		total += c
	}
	assert.Equal(t, 6, total)
}

func TestStoreSceneIsolation(t *testing.T) {
	s := New(2)
	s.Add(newTestTrack(1, 1))
	s.Add(newTestTrack(2, 2))

	scene1 := s.SceneTracks(1)
	require.Len(t, scene1, 1)
	assert.Equal(t, uint64(1), scene1[0].ID)

	scene2 := s.SceneTracks(2)
	require.Len(t, scene2, 1)
	assert.Equal(t, uint64(2), scene2[0].ID)
}

func TestStoreFindBaselineGating(t *testing.T) {
	s := New(4)
	for i := uint64(0); i < 8; i++ {
		s.Add(newTestTrack(i, 1))
	}

	gate := func(sceneID uint64, candidateIdx int, tr *track.Track) bool {
		return tr.ID%2 == 0
	}
	score := func(candidateIdx int, tr *track.Track) (float32, bool) {
		return 1.0, true
	}

	results, err := s.FindBaseline(context.Background(), 1, 1, gate, score)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, uint64(0), r.Track.ID%2)
	}
	assert.Len(t, results, 4)
}

func TestStoreWasteAndDrain(t *testing.T) {
	s := New(2)
	tr := newTestTrack(5, 1)
	s.Add(tr)

	s.Waste(tr)
	assert.Nil(t, s.Get(5))

	drained := s.Wasted()
	require.Len(t, drained, 1)
	assert.Equal(t, uint64(5), drained[0].ID)

	assert.Empty(t, s.Wasted())
}

func TestSpatioTemporalStepFunction(t *testing.T) {
	st := NewSpatioTemporal([][2]float64{{1, 96}, {5, 200}})

	assert.True(t, st.Allows(1, 90))
	assert.False(t, st.Allows(1, 100))
	assert.True(t, st.Allows(5, 150))
	// age beyond every configured step is unbounded
	assert.True(t, st.Allows(10, 1_000_000))
}

func TestSpatioTemporalNilAllowsEverything(t *testing.T) {
	var st *SpatioTemporal
	assert.True(t, st.Allows(100, 1_000_000))
}
