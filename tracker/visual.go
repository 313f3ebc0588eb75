package tracker

import (
	"context"
	"sort"
	"sync"

	"github.com/LdDl/trackcore/assignment"
	"github.com/LdDl/trackcore/kalmanfilter"
	"github.com/LdDl/trackcore/store"
	"github.com/LdDl/trackcore/track"
	"go.uber.org/zap"
)

// VisualTracker extends Tracker with appearance-feature voting: each
// predict's cost matrix combines positional and visual votes per the
// configured resolution strategy (combined cost or two-phase), and matched
// candidates with a feature push it onto their track's feature ring.
type VisualTracker struct {
	cfg    VisualConfig
	filter *kalmanfilter.BBoxFilter
	store  *store.Store
	ids    *idGenerator
	spt    *store.SpatioTemporal
	logger *zap.Logger

	scenesMu sync.Mutex
	scenes   map[uint64]*sceneState
}

// NewVisual builds a Visual SORT tracker from a validated configuration.
func NewVisual(cfg VisualConfig, logger *zap.Logger) (*VisualTracker, error) {
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

	return &VisualTracker{
		cfg:    cfg,
		filter: filter,
		store:  store.New(cfg.Shards),
		ids:    newIDGenerator(7, 7),
		spt:    spt,
		logger: logger,
		scenes: make(map[uint64]*sceneState),
	}, nil
}

func (tr *VisualTracker) sceneFor(sceneID uint64) *sceneState {
	tr.scenesMu.Lock()
	defer tr.scenesMu.Unlock()
	s, ok := tr.scenes[sceneID]
	if !ok {
		s = &sceneState{}
		tr.scenes[sceneID] = s
	}
	return s
}

func (tr *VisualTracker) selfScore() float32 {
	if tr.cfg.Resolution == ResolutionCombinedCost {
		// A self-match must lose to any admissible real pair; admissible
		// pairs score in [0,1] under CombinedCost, so 0 is the floor.
		return 0
	}
	if tr.cfg.Method.Kind == PositionalMahalanobis {
		return 0
	}
	return tr.cfg.Method.IoUThreshold
}

func (tr *VisualTracker) sanitize(observations []track.Observation) ([]track.Observation, []RejectedObservation) {
	accepted := make([]track.Observation, 0, len(observations))
	rejected := make([]RejectedObservation, 0)
	for i, obs := range observations {
		if obs.Box.Height <= 0 || obs.Box.Aspect <= 0 {
			rejected = append(rejected, RejectedObservation{CandidateIndex: i, Err: ErrShape})
			continue
		}
		if obs.Feature != nil && tr.cfg.FeatureDim > 0 && len(obs.Feature) != tr.cfg.FeatureDim {
			rejected = append(rejected, RejectedObservation{CandidateIndex: i, Err: ErrShape})
			continue
		}
		if obs.Box.Confidence < tr.cfg.MinConfidence {
			obs.Box = obs.Box.WithConfidence(tr.cfg.MinConfidence)
		}
		accepted = append(accepted, obs)
	}
	return accepted, rejected
}

// Predict advances sceneID's epoch, matches observations (positional +
// appearance) against its live tracks, mutates the store, and returns one
// SortTrack per matched-or-newly-created track.
func (tr *VisualTracker) Predict(ctx context.Context, sceneID uint64, observations []track.Observation) ([]SortTrack, []RejectedObservation, error) {
	accepted, rejected := tr.sanitize(observations)

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
	trackIndex := make(map[uint64]int, len(live))
	for i, t := range live {
		trackIndex[t.ID] = i
	}

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

	var matches []assignment.Match
	votingOf := make(map[int]track.VotingType)

	if len(accepted) > 0 && len(live) > 0 {
		if tr.cfg.Resolution == ResolutionCombinedCost {
			matches = tr.solveCombined(ctx, sceneID, accepted, live, trackIndex, gate, votingOf)
		} else {
			matches = tr.solveTwoPhase(ctx, sceneID, accepted, live, trackIndex, gate, votingOf)
		}
	} else if len(accepted) > 0 {
		matches = assignment.Solve(nil, len(accepted), 0, tr.selfScore())
	}

	out := make([]SortTrack, 0, len(matches))
	for _, m := range matches {
		if m.Track >= 0 {
			t := trackByIndex[m.Track]
			obs := accepted[m.Candidate]
			voting := votingOf[m.Candidate]
			tr.store.Mutate(t.ID, func(t *track.Track) {
				t.ApplyMatch(tr.filter, obs, epoch, voting)
			})
			out = append(out, sortTrackOf(t))
			continue
		}
		id := tr.ids.next(func(id uint64) bool { return tr.store.Get(id) != nil })
		nt := track.New(id, sceneID, epoch, accepted[m.Candidate], tr.filter, tr.cfg.BBoxHistory, tr.cfg.VisualHistory, true)
		tr.store.Add(nt)
		out = append(out, sortTrackOf(nt))
	}

	tr.ageAndWaste(sceneID, epoch)
	return out, rejected, nil
}

// solveCombined implements the §4.3 blended-cost strategy: one assignment
// solve over CombinedCost(pos_normalized, vis_normalized, w_pos).
func (tr *VisualTracker) solveCombined(ctx context.Context, sceneID uint64, accepted []track.Observation, live []*track.Track, trackIndex map[uint64]int, gate store.Gate, votingOf map[int]track.VotingType) []assignment.Match {
	scores := make(map[assignment.Pair]float32)
	dominant := make(map[assignment.Pair]track.VotingType)

	results, err := tr.store.FindBaseline(ctx, sceneID, len(accepted), gate, func(candidateIdx int, t *track.Track) (float32, bool) {
		posRaw, posOK := positionalScore(tr.cfg.Method, tr.filter, accepted[candidateIdx].Box, t.LastPredictedBox, t.Kalman)
		if !posOK {
			return 0, false
		}
		posNorm := normalizedPositionalScore(tr.cfg.Method, posRaw)

		feat := accepted[candidateIdx].Feature
		if feat == nil || t.Features == nil || t.Features.Len() == 0 {
			return posNorm, true
		}
		dist, ok := visualDistance(tr.cfg.VisualMetric, feat, t.Features.Values())
		if !ok {
			return posNorm, true
		}
		if !visualGate(tr.cfg.VisualMetric, tr.cfg.VisualThreshold, dist) {
			return 0, false
		}
		visNorm := normalizedVisualDistance(tr.cfg.VisualMetric, tr.cfg.VisualThreshold, dist)
		return CombinedCost(posNorm, visNorm, tr.cfg.PositionalWeight), true
	})
	if err != nil {
		tr.logger.Warn("find baseline failed", zap.Error(err))
		return assignment.Solve(nil, len(accepted), 0, tr.selfScore())
	}

	for _, r := range results {
		ti, ok := trackIndex[r.Track.ID]
		if !ok {
			continue
		}
		p := assignment.Pair{Candidate: r.CandidateIndex, Track: ti}
		scores[p] = r.Score
		if accepted[r.CandidateIndex].Feature != nil && r.Track.Features != nil && r.Track.Features.Len() > 0 {
			dominant[p] = track.VotingVisual
		} else {
			dominant[p] = track.VotingPositional
		}
	}

	matches := assignment.Solve(scores, len(accepted), len(live), tr.selfScore())
	for _, m := range matches {
		if m.Track >= 0 {
			votingOf[m.Candidate] = dominant[assignment.Pair{Candidate: m.Candidate, Track: m.Track}]
		}
	}
	return matches
}

// bestFitWinner is one candidate's strongest feature-distance match.
type bestFitWinner struct {
	candidate int
	track     int
	distance  float32
}

// solveTwoPhase implements the original BestFitVoting-derived strategy:
// resolve feature voting first (best-fit per candidate, competing tracks
// excluded once claimed), then run positional voting over whatever
// candidates/tracks remain unclaimed.
func (tr *VisualTracker) solveTwoPhase(ctx context.Context, sceneID uint64, accepted []track.Observation, live []*track.Track, trackIndex map[uint64]int, gate store.Gate, votingOf map[int]track.VotingType) []assignment.Match {
	type visualEdge struct {
		candidate, track int
		distance         float32
	}
	edges := make([]visualEdge, 0)

	results, err := tr.store.FindBaseline(ctx, sceneID, len(accepted), gate, func(candidateIdx int, t *track.Track) (float32, bool) {
		feat := accepted[candidateIdx].Feature
		if feat == nil || t.Features == nil || t.Features.Len() == 0 {
			return 0, false
		}
		dist, ok := visualDistance(tr.cfg.VisualMetric, feat, t.Features.Values())
		if !ok || !visualGate(tr.cfg.VisualMetric, tr.cfg.VisualThreshold, dist) {
			return 0, false
		}
		return dist, true
	})
	if err != nil {
		tr.logger.Warn("find baseline failed", zap.Error(err))
	}
	for _, r := range results {
		ti, ok := trackIndex[r.Track.ID]
		if !ok {
			continue
		}
		edges = append(edges, visualEdge{candidate: r.CandidateIndex, track: ti, distance: r.Score})
	}

	// count competing candidates per track: min_winner_feature_votes gate.
	votesPerTrack := make(map[int]int, len(edges))
	for _, e := range edges {
		votesPerTrack[e.track]++
	}

	bestPerCandidate := make(map[int]bestFitWinner)
	for _, e := range edges {
		if votesPerTrack[e.track] < tr.cfg.MinWinnerFeatureVotes {
			continue
		}
		cur, ok := bestPerCandidate[e.candidate]
		if !ok || e.distance < cur.distance {
			bestPerCandidate[e.candidate] = bestFitWinner{candidate: e.candidate, track: e.track, distance: e.distance}
		}
	}

	// a track can only win once; if several candidates claim it, the
	// globally closest candidate keeps it, the rest fall back to phase 2.
	winners := make([]bestFitWinner, 0, len(bestPerCandidate))
	for _, w := range bestPerCandidate {
		winners = append(winners, w)
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i].distance < winners[j].distance })

	excludedTracks := make(map[int]bool)
	excludedCandidates := make(map[int]bool)
	finalWinners := make([]bestFitWinner, 0, len(winners))
	for _, w := range winners {
		if excludedTracks[w.track] || excludedCandidates[w.candidate] {
			continue
		}
		finalWinners = append(finalWinners, w)
		excludedTracks[w.track] = true
		excludedCandidates[w.candidate] = true
	}

	matches := make([]assignment.Match, 0, len(accepted))
	for _, w := range finalWinners {
		matches = append(matches, assignment.Match{Candidate: w.candidate, Track: w.track})
		votingOf[w.candidate] = track.VotingVisual
	}

	// phase 2: positional voting over the remainder.
	remCandidates := make([]int, 0)
	for i := range accepted {
		if !excludedCandidates[i] {
			remCandidates = append(remCandidates, i)
		}
	}
	remTracks := make([]int, 0)
	for i := range live {
		if !excludedTracks[i] {
			remTracks = append(remTracks, i)
		}
	}

	remCandIndex := make(map[int]int, len(remCandidates))
	for i, c := range remCandidates {
		remCandIndex[c] = i
	}
	remTrackIndex := make(map[int]int, len(remTracks))
	for i, t := range remTracks {
		remTrackIndex[t] = i
	}

	posScores := make(map[assignment.Pair]float32)
	for _, c := range remCandidates {
		for _, ti := range remTracks {
			t := live[ti]
			raw, ok := positionalScore(tr.cfg.Method, tr.filter, accepted[c].Box, t.LastPredictedBox, t.Kalman)
			if !ok {
				continue
			}
			if !gate(sceneID, c, t) {
				continue
			}
			posScores[assignment.Pair{Candidate: remCandIndex[c], Track: remTrackIndex[ti]}] = raw
		}
	}

	posMatches := assignment.Solve(posScores, len(remCandidates), len(remTracks), tr.selfScore())
	for _, m := range posMatches {
		candidate := remCandidates[m.Candidate]
		trackIdx := -1
		if m.Track >= 0 {
			trackIdx = remTracks[m.Track]
			votingOf[candidate] = track.VotingPositional
		}
		matches = append(matches, assignment.Match{Candidate: candidate, Track: trackIdx})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Candidate < matches[j].Candidate })
	return matches
}

func (tr *VisualTracker) ageAndWaste(sceneID uint64, epoch uint64) {
	for _, t := range tr.store.SceneTracks(sceneID) {
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

// SkipEpochs advances sceneID's epoch by n without observations, aging and
// wasting tracks exactly as Tracker.SkipEpochs does.
func (tr *VisualTracker) SkipEpochs(sceneID uint64, n uint64) {
	scene := tr.sceneFor(sceneID)
	scene.mu.Lock()
	defer scene.mu.Unlock()
	scene.epoch += n
	tr.ageAndWaste(sceneID, scene.epoch)
}

// IdleTracks returns SortTracks for every live track of sceneID not
// updated in the current epoch.
func (tr *VisualTracker) IdleTracks(sceneID uint64) []SortTrack {
	scene := tr.sceneFor(sceneID)
	scene.mu.Lock()
	epoch := scene.epoch
	scene.mu.Unlock()

	out := make([]SortTrack, 0)
	for _, t := range tr.store.SceneTracks(sceneID) {
		if t.Epoch < epoch {
			out = append(out, sortTrackOf(t))
		}
	}
	return out
}

// Wasted drains the wasted pool, returning its full bounded history (and
// feature history) per track.
func (tr *VisualTracker) Wasted() []WastedSortTrack {
	drained := tr.store.Wasted()
	out := make([]WastedSortTrack, len(drained))
	for i, t := range drained {
		out[i] = wastedSortTrackOf(t)
	}
	return out
}

// ClearWasted discards the wasted pool without returning its contents.
func (tr *VisualTracker) ClearWasted() {
	tr.store.ClearWasted()
}

// ShardStats returns the live track count of every shard.
func (tr *VisualTracker) ShardStats() []int {
	return tr.store.ShardStats()
}
