package tracker

import "github.com/pkg/errors"

// PositionalMetricKind selects the positional voter.
type PositionalMetricKind int

const (
	// PositionalIoU votes by IoU between a candidate box and a track's
	// last predicted box, gated at IoUThreshold.
	PositionalIoU PositionalMetricKind = iota
	// PositionalMahalanobis votes by inverted Mahalanobis distance (gate
	// minus distance) between a candidate box and a track's Kalman state,
	// gated at the chi-squared 95% quantile for 4 degrees of freedom.
	PositionalMahalanobis
)

// PositionalMetric configures the positional voter.
type PositionalMetric struct {
	Kind         PositionalMetricKind
	IoUThreshold float32 // used only when Kind == PositionalIoU, in (0,1]
}

// IoUMetric builds an IoU positional metric with the given gating threshold.
func IoUMetric(threshold float32) PositionalMetric {
	return PositionalMetric{Kind: PositionalIoU, IoUThreshold: threshold}
}

// MahalanobisMetric builds a Mahalanobis positional metric.
func MahalanobisMetric() PositionalMetric {
	return PositionalMetric{Kind: PositionalMahalanobis}
}

func (m PositionalMetric) validate() error {
	if m.Kind == PositionalIoU && (m.IoUThreshold <= 0 || m.IoUThreshold > 1) {
		return errors.Wrap(ErrConfiguration, "iou threshold must lie within (0,1]")
	}
	return nil
}

// SpatioTemporalStep is one (age_epochs, max_distance) entry of the
// piecewise-constant spatio-temporal constraint table.
type SpatioTemporalStep struct {
	AgeEpochs   uint64
	MaxDistance float32
}

// Config is the recognized SORT tracker configuration.
type Config struct {
	// Shards is the shard count and effective worker-parallelism ceiling. >= 1.
	Shards int
	// BBoxHistory is the ring capacity for (predicted, observed) boxes. >= 1.
	BBoxHistory int
	// MaxIdleEpochs is the age tolerance before a track is wasted. >= 0.
	MaxIdleEpochs uint64
	// Method selects the positional voter.
	Method PositionalMetric
	// MinConfidence floors candidate confidence before use; does not drop
	// low-confidence candidates.
	MinConfidence float32
	// SpatioTemporalConstraints is optional; nil disables the gate.
	SpatioTemporalConstraints []SpatioTemporalStep
	// PositionWeight, VelocityWeight are the Kalman filter's process-noise
	// scaling constants (sigma_p, sigma_v). Zero values fall back to the
	// filter's own defaults (1/20, 1/160).
	PositionWeight, VelocityWeight float32
}

// DefaultConfig returns a Config with sensible defaults: 4 shards, history
// of 5, max idle of 5 epochs, IoU voting at threshold 0.3, no confidence
// floor, no spatio-temporal constraints.
func DefaultConfig() Config {
	return Config{
		Shards:        4,
		BBoxHistory:   5,
		MaxIdleEpochs: 5,
		Method:        IoUMetric(0.3),
		MinConfidence: 0,
	}
}

// Validate checks the configuration and returns an ErrConfiguration-wrapped
// error describing the first problem found.
func (c Config) Validate() error {
	if c.Shards < 1 {
		return errors.Wrap(ErrConfiguration, "shards must be at least 1")
	}
	if c.BBoxHistory < 1 {
		return errors.Wrap(ErrConfiguration, "bbox history must be at least 1")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.Wrap(ErrConfiguration, "min confidence must lie within [0,1]")
	}
	if err := c.Method.validate(); err != nil {
		return err
	}
	return nil
}

// VisualMetricKind selects the appearance-distance voter.
type VisualMetricKind int

const (
	// VisualCosine uses cosine distance between feature vectors.
	VisualCosine VisualMetricKind = iota
	// VisualEuclidean uses Euclidean distance between feature vectors.
	VisualEuclidean
)

// ResolutionStrategy selects how positional and visual votes are combined.
type ResolutionStrategy int

const (
	// ResolutionCombinedCost blends positional and visual scores into one
	// convex-combination cost per §4.3, fed to a single assignment solve.
	ResolutionCombinedCost ResolutionStrategy = iota
	// ResolutionTwoPhase resolves feature voting first (best-fit per
	// track), removes matched tracks/candidates from consideration, then
	// runs positional voting on the remainder.
	ResolutionTwoPhase
)

// VisualConfig is the recognized Visual SORT tracker configuration; it
// embeds Config and adds the visual-voting knobs.
type VisualConfig struct {
	Config

	// VisualHistory is the feature ring capacity (typical 3). >= 1.
	VisualHistory int
	// VisualMetric selects cosine or Euclidean appearance distance.
	VisualMetric VisualMetricKind
	// VisualThreshold gates on visual distance (interpretation depends on
	// VisualMetric: an upper bound for Euclidean, a lower similarity bound
	// for cosine).
	VisualThreshold float32
	// FeatureDim is the fixed feature-vector length for this tracker
	// instance; 0 disables the shape check.
	FeatureDim int
	// PositionalWeight is w_pos in the combined cost; w_vis = 1 - w_pos.
	// Only consulted when Resolution == ResolutionCombinedCost.
	PositionalWeight float32
	// MinWinnerFeatureVotes is the minimum number of competing candidates
	// required before a feature-vote winner is accepted in the two-phase
	// strategy (mirrors BestFitVoting's vote-count gate).
	MinWinnerFeatureVotes int
	// Resolution selects the combined-cost or two-phase voting strategy.
	Resolution ResolutionStrategy
}

// DefaultVisualConfig returns a VisualConfig with sensible defaults: the
// embedded Config defaults, 3-slot feature history, cosine metric at
// threshold 0.3, equal positional/visual weighting, two-phase resolution.
func DefaultVisualConfig() VisualConfig {
	return VisualConfig{
		Config:                DefaultConfig(),
		VisualHistory:         3,
		VisualMetric:          VisualCosine,
		VisualThreshold:       0.3,
		PositionalWeight:      0.5,
		MinWinnerFeatureVotes: 1,
		Resolution:            ResolutionTwoPhase,
	}
}

// Validate checks the visual configuration, including the embedded Config.
func (c VisualConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.VisualHistory < 1 {
		return errors.Wrap(ErrConfiguration, "visual history must be at least 1")
	}
	if c.VisualMetric == VisualCosine && (c.VisualThreshold < -1 || c.VisualThreshold > 1) {
		return errors.Wrap(ErrConfiguration, "cosine threshold must lie within [-1,1]")
	}
	if c.VisualMetric == VisualEuclidean && c.VisualThreshold <= 0 {
		return errors.Wrap(ErrConfiguration, "euclidean threshold must be positive")
	}
	if c.PositionalWeight < 0 || c.PositionalWeight > 1 {
		return errors.Wrap(ErrConfiguration, "positional weight must lie within [0,1]")
	}
	return nil
}
