package kalmanfilter

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// pointDim is the measurement dimensionality (x, y).
const pointDim = 2

// pointDimX2 is the full state dimensionality (position + velocity).
const pointDimX2 = pointDim * 2

// PointFilter is the 4-state constant-velocity Kalman filter over (x, y,
// vx, vy), used to track a single landmark point. Noise scales with a
// caller-supplied "scale" (e.g. the owning box's height) exactly as
// BBoxFilter scales with box height.
type PointFilter struct {
	motion        *mat.Dense // 4x4
	update        *mat.Dense // 2x4
	positionWeigh float32
	velocityWeigh float32
	logger        *zap.Logger
}

// NewPointFilter builds a point filter with explicit noise-scaling constants.
func NewPointFilter(positionWeight, velocityWeight float32) *PointFilter {
	motion := mat.NewDense(pointDimX2, pointDimX2, nil)
	for i := 0; i < pointDimX2; i++ {
		motion.Set(i, i, 1.0)
	}
	for i := 0; i < pointDim; i++ {
		motion.Set(i, pointDim+i, 1.0)
	}

	update := mat.NewDense(pointDim, pointDimX2, nil)
	for i := 0; i < pointDim; i++ {
		update.Set(i, i, 1.0)
	}

	return &PointFilter{
		motion:        motion,
		update:        update,
		positionWeigh: positionWeight,
		velocityWeigh: velocityWeight,
	}
}

// DefaultPointFilter returns a filter with the spec's default noise constants.
func DefaultPointFilter() *PointFilter {
	return NewPointFilter(1.0/20.0, 1.0/160.0)
}

// WithLogger attaches a logger used to report covariance-regularization
// recovery events; nil leaves logging disabled. Returns f for chaining.
func (f *PointFilter) WithLogger(logger *zap.Logger) *PointFilter {
	f.logger = logger
	return f
}

func (f *PointFilter) stdPosition(k, p float32) [2]float32 {
	w := k * f.positionWeigh * p
	return [2]float32{w, w}
}

func (f *PointFilter) stdVelocity(k, p float32) [2]float32 {
	w := k * f.velocityWeigh * p
	return [2]float32{w, w}
}

func diagFromStd4(std [4]float32) *mat.Dense {
	d := mat.NewDense(4, 4, nil)
	for i, v := range std {
		d.Set(i, i, float64(v)*float64(v))
	}
	return d
}

// Initiate builds the initial 4-state estimate for a point observation
// given x, y and the scale (typically the owning box's height) used to
// weight process noise.
func (f *PointFilter) Initiate(x, y, scale float32) State {
	s := newState(pointDimX2)
	s.Mean.SetVec(0, float64(x))
	s.Mean.SetVec(1, float64(y))

	pos := f.stdPosition(2.0, scale)
	vel := f.stdVelocity(10.0, scale)
	var std [4]float32
	copy(std[0:2], pos[:])
	copy(std[2:4], vel[:])

	s.Covariance = diagFromStd4(std)
	return s
}

// Predict advances the mean and covariance by one tick under the
// constant-velocity motion model, given the current scale.
func (f *PointFilter) Predict(s State, scale float32) State {
	pos := f.stdPosition(1.0, scale)
	vel := f.stdVelocity(1.0, scale)
	var std [4]float32
	copy(std[0:2], pos[:])
	copy(std[2:4], vel[:])
	motionCov := diagFromStd4(std)

	var mean mat.VecDense
	mean.MulVec(f.motion, s.Mean)

	var tmp, cov mat.Dense
	tmp.Mul(f.motion, s.Covariance)
	cov.Mul(&tmp, f.motion.T())
	cov.Add(&cov, motionCov)
	ensurePD(&cov, f.logger, "point_filter.predict")

	return State{Mean: &mean, Covariance: &cov}
}

func (f *PointFilter) project(mean *mat.VecDense, cov *mat.Dense, scale float32) State {
	pos := f.stdPosition(1.0, scale)
	innovationCov := mat.NewDense(2, 2, nil)
	for i, v := range pos {
		innovationCov.Set(i, i, float64(v)*float64(v))
	}

	var pmean mat.VecDense
	pmean.MulVec(f.update, mean)

	var tmp, pcov mat.Dense
	tmp.Mul(f.update, cov)
	pcov.Mul(&tmp, f.update.T())
	pcov.Add(&pcov, innovationCov)

	return State{Mean: &pmean, Covariance: &pcov}
}

// Update folds in an (x, y) measurement, given the current scale.
func (f *PointFilter) Update(s State, x, y, scale float32) State {
	projected := f.project(s.Mean, s.Covariance, scale)

	var cht mat.Dense
	cht.Mul(s.Covariance, f.update.T()) // 4x2

	var chtT mat.Dense
	chtT.CloneFrom(cht.T()) // 2x4

	var kt mat.Dense
	if err := kt.Solve(projected.Covariance, &chtT); err != nil {
		if f.logger != nil {
			f.logger.Warn("projected covariance singular, regularizing and retrying",
				zap.String("component", "point_filter.update"),
				zap.Error(err),
			)
		}
		regularize(projected.Covariance, 1e-6)
		_ = kt.Solve(projected.Covariance, &chtT)
	}
	gain := kt.T() // 4x2

	measurement := mat.NewVecDense(2, []float64{float64(x), float64(y)})
	var innovation mat.VecDense
	innovation.SubVec(measurement, projected.Mean)

	var delta mat.VecDense
	delta.MulVec(gain, &innovation)

	var mean mat.VecDense
	mean.AddVec(s.Mean, &delta)

	var gp, gpg, cov mat.Dense
	gp.Mul(gain, projected.Covariance)
	gpg.Mul(&gp, gain.T())
	cov.Sub(s.Covariance, &gpg)
	ensurePD(&cov, f.logger, "point_filter.update")

	return State{Mean: &mean, Covariance: &cov}
}

// XY returns the (x, y) position component of a point state.
func (s State) XY() (float32, float32) {
	return float32(s.Mean.AtVec(0)), float32(s.Mean.AtVec(1))
}

// PointVelocity returns the (vx, vy) velocity component of a point state.
func (s State) PointVelocity() (float32, float32) {
	return float32(s.Mean.AtVec(2)), float32(s.Mean.AtVec(3))
}

// GatingDistance returns the squared Mahalanobis distance between the
// state's projection and an (x, y) measurement.
func (f *PointFilter) GatingDistance(s State, x, y, scale float32) float32 {
	projected := f.project(s.Mean, s.Covariance, scale)
	measurement := mat.NewVecDense(2, []float64{float64(x), float64(y)})
	var diff mat.VecDense
	diff.SubVec(measurement, projected.Mean)

	var sol mat.Dense
	diffCol := mat.NewDense(2, 1, diff.RawVector().Data)
	if err := sol.Solve(projected.Covariance, diffCol); err != nil {
		return float32(math.Inf(1))
	}
	var result mat.Dense
	result.Mul(diffCol.T(), &sol)
	return float32(result.At(0, 0))
}
