// Package track defines the per-track data model owned by the sharded
// track store: identity, Kalman state, bounded box/feature history, and the
// voting-type/custom-id bookkeeping the SORT and Visual SORT engines
// mutate every epoch.
package track

import (
	"github.com/LdDl/trackcore/feature"
	"github.com/LdDl/trackcore/geometry"
	"github.com/LdDl/trackcore/kalmanfilter"
	"github.com/google/uuid"
)

// VotingType records which voter dominated a track's most recent successful
// assignment.
type VotingType int

const (
	// VotingPositional means the IoU or Mahalanobis voter decided the match.
	VotingPositional VotingType = iota
	// VotingVisual means appearance-feature voting decided the match.
	VotingVisual
)

func (v VotingType) String() string {
	if v == VotingVisual {
		return "visual"
	}
	return "positional"
}

// Observation is one incoming candidate: a positional box, an optional
// appearance feature, and an optional caller-supplied identifier carried
// through on match.
type Observation struct {
	Box      geometry.Universal2DBox
	Feature  feature.Vector
	CustomID *int64
}

// BoxPair is one (predicted, observed) history entry.
type BoxPair struct {
	Predicted geometry.Universal2DBox
	Observed  geometry.Universal2DBox
}

// BoxHistory is a fixed-capacity ring of BoxPair, generic over capacity >= 1.
type BoxHistory struct {
	buf      []BoxPair
	next     int
	full     bool
	capacity int
}

// NewBoxHistory builds a box history ring with the given capacity
// (bbox_history in configuration terms).
func NewBoxHistory(capacity int) *BoxHistory {
	if capacity < 1 {
		panic("track: box history capacity must be at least 1")
	}
	return &BoxHistory{buf: make([]BoxPair, capacity), capacity: capacity}
}

// Push appends a (predicted, observed) pair, evicting the oldest once full.
func (h *BoxHistory) Push(p BoxPair) {
	h.buf[h.next] = p
	h.next = (h.next + 1) % h.capacity
	if h.next == 0 {
		h.full = true
	}
}

// Len returns the number of stored pairs.
func (h *BoxHistory) Len() int {
	if h.full {
		return h.capacity
	}
	return h.next
}

// Values returns the stored pairs oldest-to-newest.
func (h *BoxHistory) Values() []BoxPair {
	n := h.Len()
	out := make([]BoxPair, n)
	if !h.full {
		copy(out, h.buf[:n])
		return out
	}
	copy(out, h.buf[h.next:])
	copy(out[h.capacity-h.next:], h.buf[:h.next])
	return out
}

// Track is exclusively owned by one shard of the store for its whole
// lifetime; its external identity is (SceneID, ID).
type Track struct {
	ID       uint64
	SceneID  uint64
	Epoch    uint64
	Length   uint64
	IsVisual bool

	Kalman kalmanfilter.State

	LastPredictedBox geometry.Universal2DBox
	LastObservedBox  geometry.Universal2DBox

	History  *BoxHistory
	Features *feature.Ring // nil unless IsVisual

	VotingType     VotingType
	CustomObjectID *int64
}

// New creates a track initiated from a first observation. bboxHistory is the
// (predicted, observed) ring capacity; featureHistory is the appearance-ring
// capacity (ignored, and Features left nil, when visual is false).
func New(id, sceneID, epoch uint64, obs Observation, filter *kalmanfilter.BBoxFilter, bboxHistory, featureHistory int, visual bool) *Track {
	state := filter.Initiate(obs.Box)
	t := &Track{
		ID:               id,
		SceneID:          sceneID,
		Epoch:            epoch,
		Length:           1,
		IsVisual:         visual,
		Kalman:           state,
		LastPredictedBox: obs.Box,
		LastObservedBox:  obs.Box,
		History:          NewBoxHistory(bboxHistory),
		VotingType:       VotingPositional,
		CustomObjectID:   obs.CustomID,
	}
	t.History.Push(BoxPair{Predicted: obs.Box, Observed: obs.Box})
	if visual {
		t.Features = feature.NewRing(featureHistory)
		if obs.Feature != nil {
			t.Features.Push(obs.Feature)
		}
	}
	return t
}

// UUID derives a display/correlation identity from the track's SceneID and
// numeric ID, stable for the track's lifetime (the canonical identity
// remains the (SceneID, ID) pair).
func (t *Track) UUID() uuid.UUID {
	var bytes [16]byte
	for i := 0; i < 8; i++ {
		bytes[i] = byte(t.SceneID >> (8 * (7 - i)))
		bytes[8+i] = byte(t.ID >> (8 * (7 - i)))
	}
	id, err := uuid.FromBytes(bytes[:])
	if err != nil {
		return uuid.Nil
	}
	return id
}

// ShardIndex returns the owning shard for a track id, stable for its life.
func ShardIndex(id uint64, shards int) int {
	if shards <= 0 {
		panic("track: shards must be positive")
	}
	return int(id % uint64(shards))
}

// IdleAge returns how many epochs have elapsed since this track was last
// touched, relative to currentEpoch.
func (t *Track) IdleAge(currentEpoch uint64) uint64 {
	if currentEpoch < t.Epoch {
		return 0
	}
	return currentEpoch - t.Epoch
}

// ApplyMatch folds in a matched observation: Kalman update, history push,
// epoch/length/voting-type bookkeeping, and (for visual tracks, when a
// feature is present) a push onto the feature ring.
func (t *Track) ApplyMatch(filter *kalmanfilter.BBoxFilter, obs Observation, epoch uint64, voting VotingType) {
	t.Kalman = filter.Update(t.Kalman, obs.Box)
	observed := t.Kalman.Box()
	observed = observed.WithConfidence(obs.Box.Confidence)
	if obs.Box.Angle != nil {
		observed = observed.Rotate(*obs.Box.Angle).WithConfidence(obs.Box.Confidence)
	}

	t.History.Push(BoxPair{Predicted: t.LastPredictedBox, Observed: observed})
	t.LastObservedBox = observed
	t.Epoch = epoch
	t.Length++
	t.VotingType = voting
	if obs.CustomID != nil {
		t.CustomObjectID = obs.CustomID
	}
	if t.IsVisual && obs.Feature != nil {
		t.Features.Push(obs.Feature)
	}
}

// ApplyPredict advances the Kalman state by one tick and records the
// resulting prediction as LastPredictedBox, carrying the last observation's
// angle through verbatim (angle is never part of filter state).
func (t *Track) ApplyPredict(filter *kalmanfilter.BBoxFilter) {
	t.Kalman = filter.Predict(t.Kalman)
	predicted := t.Kalman.Box()
	if t.LastObservedBox.Angle != nil {
		predicted = predicted.Rotate(*t.LastObservedBox.Angle)
	}
	t.LastPredictedBox = predicted
}
