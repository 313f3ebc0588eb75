package tracker

import (
	"context"

	"github.com/LdDl/trackcore/track"
	"golang.org/x/sync/errgroup"
)

// SceneObservations pairs a scene id with the observations to predict
// against it, for use with PredictBatch.
type SceneObservations struct {
	SceneID      uint64
	Observations []track.Observation
}

// SceneResult is PredictBatch's per-scene result row.
type SceneResult struct {
	SceneID  uint64
	Tracks   []SortTrack
	Rejected []RejectedObservation
}

// PredictBatch runs Predict for every scene in one parallel phase; each
// scene's epoch still advances by exactly one, independently of the others,
// and distinct scenes may run concurrently since they touch disjoint
// per-scene mutexes (and only briefly overlapping shard locks).
func (tr *Tracker) PredictBatch(ctx context.Context, batch []SceneObservations) ([]SceneResult, error) {
	results := make([]SceneResult, len(batch))
	g, ctx := errgroup.WithContext(ctx)
	for i, b := range batch {
		i, b := i, b
		g.Go(func() error {
			tracks, rejected, err := tr.Predict(ctx, b.SceneID, b.Observations)
			if err != nil {
				return err
			}
			results[i] = SceneResult{SceneID: b.SceneID, Tracks: tracks, Rejected: rejected}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
