package tracker

import (
	"context"
	"testing"

	"github.com/LdDl/trackcore/feature"
	"github.com/LdDl/trackcore/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	featA = feature.Vector{1, 0, 0, 0}
	featB = feature.Vector{0, 1, 0, 0}
)

func customID(v int64) *int64 { return &v }

func seedTwoCoincidentVisualTracks(t *testing.T, tr *VisualTracker) {
	ctx := context.Background()
	box := boxObs(50, 50, 10, 10).Box
	_, _, err := tr.Predict(ctx, 1, []track.Observation{
		{Box: box, Feature: featA, CustomID: customID(1)},
		{Box: box, Feature: featB, CustomID: customID(2)},
	})
	require.NoError(t, err)
}

func TestVisualVotingDisambiguatesCombinedCost(t *testing.T) {
	cfg := VisualConfig{
		Config:                Config{Shards: 1, BBoxHistory: 3, MaxIdleEpochs: 5, Method: IoUMetric(0.1)},
		VisualHistory:         3,
		VisualMetric:          VisualCosine,
		VisualThreshold:       0.3,
		PositionalWeight:      0.5,
		MinWinnerFeatureVotes: 1,
		Resolution:            ResolutionCombinedCost,
	}
	tr, err := NewVisual(cfg, nil)
	require.NoError(t, err)
	seedTwoCoincidentVisualTracks(t, tr)

	ctx := context.Background()
	box := boxObs(50, 50, 10, 10).Box
	tracks, _, err := tr.Predict(ctx, 1, []track.Observation{
		{Box: box, Feature: featB},
		{Box: box, Feature: featA},
	})
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	byCustomID := map[int64]track.VotingType{}
	for _, st := range tracks {
		require.NotNil(t, st.CustomObjectID)
		byCustomID[*st.CustomObjectID] = st.VotingType
	}
	assert.Equal(t, track.VotingVisual, byCustomID[1])
	assert.Equal(t, track.VotingVisual, byCustomID[2])
	// candidate 0 carries featB and candidate 1 featA: each must land on the
	// track seeded with the same feature.
	assert.Equal(t, int64(2), *tracks[0].CustomObjectID)
	assert.Equal(t, int64(1), *tracks[1].CustomObjectID)
}

func TestVisualVotingDisambiguatesTwoPhase(t *testing.T) {
	cfg := VisualConfig{
		Config:                Config{Shards: 1, BBoxHistory: 3, MaxIdleEpochs: 5, Method: IoUMetric(0.1)},
		VisualHistory:         3,
		VisualMetric:          VisualCosine,
		VisualThreshold:       0.3,
		PositionalWeight:      0.5,
		MinWinnerFeatureVotes: 1,
		Resolution:            ResolutionTwoPhase,
	}
	tr, err := NewVisual(cfg, nil)
	require.NoError(t, err)
	seedTwoCoincidentVisualTracks(t, tr)

	ctx := context.Background()
	box := boxObs(50, 50, 10, 10).Box
	tracks, _, err := tr.Predict(ctx, 1, []track.Observation{
		{Box: box, Feature: featB},
		{Box: box, Feature: featA},
	})
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	byFeatureOwner := map[int64]track.VotingType{}
	for _, st := range tracks {
		require.NotNil(t, st.CustomObjectID)
		byFeatureOwner[*st.CustomObjectID] = st.VotingType
	}
	assert.Equal(t, track.VotingVisual, byFeatureOwner[1])
	assert.Equal(t, track.VotingVisual, byFeatureOwner[2])
	assert.Equal(t, int64(2), *tracks[0].CustomObjectID)
	assert.Equal(t, int64(1), *tracks[1].CustomObjectID)
}

func TestVisualTrackerRejectsFeatureDimensionMismatch(t *testing.T) {
	cfg := DefaultVisualConfig()
	cfg.Shards = 1
	cfg.FeatureDim = 4
	tr, err := NewVisual(cfg, nil)
	require.NoError(t, err)

	ctx := context.Background()
	bad := track.Observation{Box: boxObs(0, 0, 5, 5).Box, Feature: feature.Vector{1, 2}}
	tracks, rejected, err := tr.Predict(ctx, 1, []track.Observation{bad})
	require.NoError(t, err)
	assert.Empty(t, tracks)
	require.Len(t, rejected, 1)
}

func TestVisualTrackerWastesIdleTracks(t *testing.T) {
	cfg := DefaultVisualConfig()
	cfg.Shards = 1
	cfg.MaxIdleEpochs = 2
	tr, err := NewVisual(cfg, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, _, err = tr.Predict(ctx, 1, []track.Observation{{Box: boxObs(0, 0, 5, 5).Box, Feature: featA}})
	require.NoError(t, err)

	tr.SkipEpochs(1, 5)
	wasted := tr.Wasted()
	require.Len(t, wasted, 1)
	assert.NotEmpty(t, wasted[0].Features)
}

func TestVisualMultiSceneIsolation(t *testing.T) {
	cfg := DefaultVisualConfig()
	cfg.Shards = 2
	tr, err := NewVisual(cfg, nil)
	require.NoError(t, err)

	ctx := context.Background()
	a, _, err := tr.Predict(ctx, 1, []track.Observation{{Box: boxObs(0, 0, 5, 5).Box, Feature: featA}})
	require.NoError(t, err)
	b, _, err := tr.Predict(ctx, 2, []track.Observation{{Box: boxObs(100, 100, 5, 5).Box, Feature: featB}})
	require.NoError(t, err)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0].ID, b[0].ID)
}

func TestInvalidVisualConfigurationRejected(t *testing.T) {
	bad := DefaultVisualConfig()
	bad.VisualHistory = 0
	_, err := NewVisual(bad, nil)
	assert.Error(t, err)

	bad2 := DefaultVisualConfig()
	bad2.PositionalWeight = 1.5
	_, err = NewVisual(bad2, nil)
	assert.Error(t, err)
}
