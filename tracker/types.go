package tracker

import (
	"github.com/LdDl/trackcore/feature"
	"github.com/LdDl/trackcore/geometry"
	"github.com/LdDl/trackcore/track"
	"github.com/google/uuid"
)

// SortTrack is one per-epoch result row: a matched or newly-created track's
// current identity, predicted/observed boxes, and match provenance. UUID is
// a display/correlation identity derived from (SceneID, ID), stable for the
// track's lifetime; the canonical identity remains (SceneID, ID).
type SortTrack struct {
	ID             uint64
	UUID           uuid.UUID
	Epoch          uint64
	SceneID        uint64
	Length         uint64
	PredictedBBox  geometry.Universal2DBox
	ObservedBBox   geometry.Universal2DBox
	VotingType     track.VotingType
	CustomObjectID *int64
}

// WastedSortTrack is a SortTrack plus its full bounded history, emitted
// when a track migrates to (and is drained from) the wasted pool.
type WastedSortTrack struct {
	SortTrack
	PredictedBoxes []geometry.Universal2DBox
	ObservedBoxes  []geometry.Universal2DBox
	Features       []feature.Vector // nil unless the track was visual
}

func sortTrackOf(t *track.Track) SortTrack {
	return SortTrack{
		ID:             t.ID,
		UUID:           t.UUID(),
		Epoch:          t.Epoch,
		SceneID:        t.SceneID,
		Length:         t.Length,
		PredictedBBox:  t.LastPredictedBox,
		ObservedBBox:   t.LastObservedBox,
		VotingType:     t.VotingType,
		CustomObjectID: t.CustomObjectID,
	}
}

func wastedSortTrackOf(t *track.Track) WastedSortTrack {
	pairs := t.History.Values()
	predicted := make([]geometry.Universal2DBox, len(pairs))
	observed := make([]geometry.Universal2DBox, len(pairs))
	for i, p := range pairs {
		predicted[i] = p.Predicted
		observed[i] = p.Observed
	}
	w := WastedSortTrack{
		SortTrack:      sortTrackOf(t),
		PredictedBoxes: predicted,
		ObservedBoxes:  observed,
	}
	if t.IsVisual && t.Features != nil {
		w.Features = t.Features.Values()
	}
	return w
}
