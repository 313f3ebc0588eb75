package tracker

import "github.com/pkg/errors"

// ErrConfiguration wraps invalid construction-time configuration (zero
// shards, out-of-range thresholds, feature-dim mismatch): fatal to the
// engine instance.
var ErrConfiguration = errors.New("tracker: invalid configuration")

// ErrShape wraps a single bad observation within an otherwise-valid batch
// (wrong feature length, non-positive box height): the offending
// observation is rejected, the rest of the epoch proceeds.
var ErrShape = errors.New("tracker: observation shape error")

// RejectedObservation records which candidate within a predict call was
// rejected, and why, per the per-candidate error-reporting contract.
type RejectedObservation struct {
	CandidateIndex int
	Err            error
}
