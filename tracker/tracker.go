// Package tracker implements the SORT and Visual SORT engines: the
// epoch-driven predict/update loop, wasted/idle track lifecycle, scene
// multiplexing and spatio-temporal gating built atop the store, track,
// kalmanfilter, geometry and assignment packages.
package tracker

import (
	"context"
	"math"
	"sync"

	"github.com/LdDl/trackcore/assignment"
	"github.com/LdDl/trackcore/geometry"
	"github.com/LdDl/trackcore/kalmanfilter"
	"github.com/LdDl/trackcore/store"
	"github.com/LdDl/trackcore/track"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type sceneState struct {
	mu    sync.Mutex
	epoch uint64
}

// Tracker is the SORT engine: a sharded track store, a shared Kalman filter
// configuration, and one epoch clock per scene, linearized by a per-scene
// mutex per the ordering guarantees of the concurrency model.
type Tracker struct {
	cfg    Config
	filter *kalmanfilter.BBoxFilter
	store  *store.Store
	ids    *idGenerator
	spt    *store.SpatioTemporal
	logger *zap.Logger

	scenesMu sync.Mutex
	scenes   map[uint64]*sceneState
}

// New builds a SORT tracker from a validated configuration. logger may be
// nil, in which case a no-op logger is used.
func New(cfg Config, logger *zap.Logger) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	posW, velW := cfg.PositionWeight, cfg.VelocityWeight
	var filter *kalmanfilter.BBoxFilter
	if posW == 0 && velW == 0 {
		filter = kalmanfilter.DefaultBBoxFilter()
	} else {
		filter = kalmanfilter.NewBBoxFilter(posW, velW)
	}
	filter.WithLogger(logger)

	var spt *store.SpatioTemporal
	if len(cfg.SpatioTemporalConstraints) > 0 {
		pairs := make([][2]float64, len(cfg.SpatioTemporalConstraints))
		for i, s := range cfg.SpatioTemporalConstraints {
			pairs[i] = [2]float64{float64(s.AgeEpochs), float64(s.MaxDistance)}
		}
		spt = store.NewSpatioTemporal(pairs)
	}

	return &Tracker{
		cfg:    cfg,
		filter: filter,
		store:  store.New(cfg.Shards),
		ids:    newIDGenerator(1, 1),
		spt:    spt,
		logger: logger,
		scenes: make(map[uint64]*sceneState),
	}, nil
}

func (tr *Tracker) sceneFor(sceneID uint64) *sceneState {
	tr.scenesMu.Lock()
	defer tr.scenesMu.Unlock()
	s, ok := tr.scenes[sceneID]
	if !ok {
		s = &sceneState{}
		tr.scenes[sceneID] = s
	}
	return s
}

func (tr *Tracker) selfScore() float32 {
	if tr.cfg.Method.Kind == PositionalMahalanobis {
		// mirrors the gate boundary of positionalScore's inverted cost
		// (gate - d == 0 when d == gate): a match exactly at the gate ties
		// with "new track", a tighter match wins.
		return 0
	}
	return tr.cfg.Method.IoUThreshold
}

// sanitize applies the minimum-confidence floor and shape-checks a batch of
// observations, returning the accepted ones (original index preserved via
// the parallel indices slice) and the per-candidate rejections.
func (tr *Tracker) sanitize(observations []track.Observation) ([]track.Observation, []int, []RejectedObservation) {
	accepted := make([]track.Observation, 0, len(observations))
	indices := make([]int, 0, len(observations))
	rejected := make([]RejectedObservation, 0)
	for i, obs := range observations {
		if obs.Box.Height <= 0 || obs.Box.Aspect <= 0 {
			rejected = append(rejected, RejectedObservation{
				CandidateIndex: i,
				Err:            errors.Wrap(ErrShape, "box height/aspect must be positive"),
			})
			continue
		}
		if obs.Box.Confidence < tr.cfg.MinConfidence {
			obs.Box = obs.Box.WithConfidence(tr.cfg.MinConfidence)
		}
		accepted = append(accepted, obs)
		indices = append(indices, i)
	}
	return accepted, indices, rejected
}

// Predict advances sceneID's epoch by one, matches observations against its
// live tracks, mutates the store accordingly, and returns one SortTrack per
// matched-or-newly-created track plus any per-candidate rejections.
func (tr *Tracker) Predict(ctx context.Context, sceneID uint64, observations []track.Observation) ([]SortTrack, []RejectedObservation, error) {
	accepted, _, rejected := tr.sanitize(observations)

	scene := tr.sceneFor(sceneID)
	scene.mu.Lock()
	defer scene.mu.Unlock()

	scene.epoch++
	epoch := scene.epoch

	tr.store.MutateEachScene(sceneID, func(t *track.Track) {
		t.ApplyPredict(tr.filter)
	})

	live := tr.store.SceneTracks(sceneID)
	trackByIndex := make([]*track.Track, len(live))
	copy(trackByIndex, live)

	gate := func(_ uint64, candidateIdx int, t *track.Track) bool {
		if tr.spt == nil {
			return true
		}
		age := t.IdleAge(epoch)
		if age == 0 {
			return true
		}
		dist := centerDistance(accepted[candidateIdx].Box, t.LastPredictedBox)
		return tr.spt.Allows(age, dist)
	}

	trackIndex := make(map[uint64]int, len(live))
	for i, t := range live {
		trackIndex[t.ID] = i
	}

	scores := make(map[assignment.Pair]float32)
	if len(accepted) > 0 && len(live) > 0 {
		results, err := tr.store.FindBaseline(ctx, sceneID, len(accepted), gate, func(candidateIdx int, t *track.Track) (float32, bool) {
			return positionalScore(tr.cfg.Method, tr.filter, accepted[candidateIdx].Box, t.LastPredictedBox, t.Kalman)
		})
		if err != nil {
			return nil, rejected, err
		}
		for _, r := range results {
			ti, ok := trackIndex[r.Track.ID]
			if !ok {
				continue
			}
			scores[assignment.Pair{Candidate: r.CandidateIndex, Track: ti}] = r.Score
		}
	}

	matches := assignment.Solve(scores, len(accepted), len(live), tr.selfScore())

	touched := make(map[uint64]bool, len(matches))
	out := make([]SortTrack, 0, len(matches))
	for _, m := range matches {
		if m.Track >= 0 {
			t := trackByIndex[m.Track]
			obs := accepted[m.Candidate]
			tr.store.Mutate(t.ID, func(t *track.Track) {
				t.ApplyMatch(tr.filter, obs, epoch, track.VotingPositional)
			})
			touched[t.ID] = true
			out = append(out, sortTrackOf(t))
			continue
		}
		id := tr.ids.next(func(id uint64) bool { return tr.store.Get(id) != nil })
		nt := track.New(id, sceneID, epoch, accepted[m.Candidate], tr.filter, tr.cfg.BBoxHistory, 1, false)
		tr.store.Add(nt)
		touched[id] = true
		out = append(out, sortTrackOf(nt))
	}

	tr.ageAndWaste(sceneID, epoch)

	return out, rejected, nil
}

// ageAndWaste moves every live track of sceneID whose idle age now exceeds
// MaxIdleEpochs into the wasted pool.
func (tr *Tracker) ageAndWaste(sceneID uint64, epoch uint64) {
	candidates := tr.store.SceneTracks(sceneID)
	for _, t := range candidates {
		if t.IdleAge(epoch) > tr.cfg.MaxIdleEpochs {
			tr.store.Waste(t)
			tr.logger.Debug("track wasted",
				zap.Uint64("track_id", t.ID),
				zap.Stringer("track_uuid", t.UUID()),
				zap.Uint64("scene_id", sceneID),
			)
		}
	}
}

// SkipEpochs advances sceneID's epoch by n without any observations; every
// live track of the scene ages by n, and any exceeding MaxIdleEpochs is
// wasted.
func (tr *Tracker) SkipEpochs(sceneID uint64, n uint64) {
	scene := tr.sceneFor(sceneID)
	scene.mu.Lock()
	defer scene.mu.Unlock()
	scene.epoch += n
	tr.ageAndWaste(sceneID, scene.epoch)
}

// IdleTracks returns SortTracks for every live track of sceneID not
// updated in the current epoch.
func (tr *Tracker) IdleTracks(sceneID uint64) []SortTrack {
	scene := tr.sceneFor(sceneID)
	scene.mu.Lock()
	epoch := scene.epoch
	scene.mu.Unlock()

	live := tr.store.SceneTracks(sceneID)
	out := make([]SortTrack, 0)
	for _, t := range live {
		if t.Epoch < epoch {
			out = append(out, sortTrackOf(t))
		}
	}
	return out
}

// Wasted drains the wasted pool, returning its full bounded history per track.
func (tr *Tracker) Wasted() []WastedSortTrack {
	drained := tr.store.Wasted()
	out := make([]WastedSortTrack, len(drained))
	for i, t := range drained {
		out[i] = wastedSortTrackOf(t)
	}
	return out
}

// ClearWasted discards the wasted pool without returning its contents.
func (tr *Tracker) ClearWasted() {
	tr.store.ClearWasted()
}

// ShardStats returns the live track count of every shard.
func (tr *Tracker) ShardStats() []int {
	return tr.store.ShardStats()
}

func centerDistance(a, b geometry.Universal2DBox) float32 {
	dx := a.Xc - b.Xc
	dy := a.Yc - b.Yc
	return float32(math.Sqrt(float64(dx*dx + dy*dy)))
}
