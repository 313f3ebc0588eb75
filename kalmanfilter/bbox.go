package kalmanfilter

import (
	"math"

	"github.com/LdDl/trackcore/geometry"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// bboxDim is the measurement dimensionality (xc, yc, aspect, height).
const bboxDim = 4

// bboxDimX2 is the full state dimensionality (position/shape + velocities).
const bboxDimX2 = bboxDim * 2

// BBoxFilter is the 8-state constant-velocity Kalman filter over
// (xc, yc, aspect, height, vxc, vyc, vaspect, vheight), following the
// nwojke/deep_sort formulation: process and measurement noise scale with
// the current box height.
type BBoxFilter struct {
	motion        *mat.Dense // 8x8
	update        *mat.Dense // 4x8
	positionWeigh float32
	velocityWeigh float32
	logger        *zap.Logger
}

// NewBBoxFilter builds a filter with the given process-noise scaling
// constants (sigma_p, sigma_v). Defaults per spec.md are 1/20 and 1/160.
func NewBBoxFilter(positionWeight, velocityWeight float32) *BBoxFilter {
	motion := mat.NewDense(bboxDimX2, bboxDimX2, nil)
	for i := 0; i < bboxDimX2; i++ {
		motion.Set(i, i, 1.0)
	}
	for i := 0; i < bboxDim; i++ {
		motion.Set(i, bboxDim+i, 1.0)
	}

	update := mat.NewDense(bboxDim, bboxDimX2, nil)
	for i := 0; i < bboxDim; i++ {
		update.Set(i, i, 1.0)
	}

	return &BBoxFilter{
		motion:        motion,
		update:        update,
		positionWeigh: positionWeight,
		velocityWeigh: velocityWeight,
	}
}

// DefaultBBoxFilter returns a filter with the spec's default noise constants.
func DefaultBBoxFilter() *BBoxFilter {
	return NewBBoxFilter(1.0/20.0, 1.0/160.0)
}

// WithLogger attaches a logger used to report covariance-regularization
// recovery events; nil leaves logging disabled. Returns f for chaining.
func (f *BBoxFilter) WithLogger(logger *zap.Logger) *BBoxFilter {
	f.logger = logger
	return f
}

func (f *BBoxFilter) stdPosition(k, cnst, p float32) [4]float32 {
	w := k * f.positionWeigh * p
	return [4]float32{w, w, cnst, w}
}

func (f *BBoxFilter) stdVelocity(k, cnst, p float32) [4]float32 {
	w := k * f.velocityWeigh * p
	return [4]float32{w, w, cnst, w}
}

func diagFromStd(std [8]float32) *mat.Dense {
	d := mat.NewDense(8, 8, nil)
	for i, v := range std {
		d.Set(i, i, float64(v)*float64(v))
	}
	return d
}

// Initiate builds the initial 8-state estimate from a first observation: the
// mean copies the box measurement with zero velocities; covariance is
// diagonal, seeded from measurement noise on position and a larger
// bootstrap variance on velocity.
func (f *BBoxFilter) Initiate(box geometry.Universal2DBox) State {
	s := newState(bboxDimX2)
	s.Mean.SetVec(0, float64(box.Xc))
	s.Mean.SetVec(1, float64(box.Yc))
	s.Mean.SetVec(2, float64(box.Aspect))
	s.Mean.SetVec(3, float64(box.Height))

	pos := f.stdPosition(2.0, 1e-2, box.Height)
	vel := f.stdVelocity(10.0, 1e-5, box.Height)
	var std [8]float32
	copy(std[0:4], pos[:])
	copy(std[4:8], vel[:])

	s.Covariance = diagFromStd(std)
	return s
}

// Predict advances the mean and covariance by one tick (dt=1) under the
// constant-velocity motion model.
func (f *BBoxFilter) Predict(s State) State {
	h := float32(s.Mean.AtVec(3))
	pos := f.stdPosition(1.0, 1e-2, h)
	vel := f.stdVelocity(1.0, 1e-5, h)
	var std [8]float32
	copy(std[0:4], pos[:])
	copy(std[4:8], vel[:])
	motionCov := diagFromStd(std)

	var mean mat.VecDense
	mean.MulVec(f.motion, s.Mean)

	var tmp, cov mat.Dense
	tmp.Mul(f.motion, s.Covariance)
	cov.Mul(&tmp, f.motion.T())
	cov.Add(&cov, motionCov)
	ensurePD(&cov, f.logger, "bbox_filter.predict")

	return State{Mean: &mean, Covariance: &cov}
}

// project maps the 8-state estimate into measurement space (xc,yc,a,h).
func (f *BBoxFilter) project(mean *mat.VecDense, cov *mat.Dense) State {
	h := float32(mean.AtVec(3))
	pos := f.stdPosition(1.0, 1e-1, h)
	var std [4]float32
	copy(std[:], pos[:])
	innovationCov := mat.NewDense(4, 4, nil)
	for i, v := range std {
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

// Update folds in a (xc, yc, aspect, height) measurement via the standard
// Kalman update equations, then symmetrizes (and regularizes if needed) the
// posterior covariance to guard against loss of positive-definiteness.
func (f *BBoxFilter) Update(s State, box geometry.Universal2DBox) State {
	projected := f.project(s.Mean, s.Covariance)

	var cht mat.Dense
	cht.Mul(s.Covariance, f.update.T()) // 8x4

	var chtT mat.Dense
	chtT.CloneFrom(cht.T()) // 4x8

	var kt mat.Dense
	if err := kt.Solve(projected.Covariance, &chtT); err != nil {
		// Projected covariance is (near-)singular: regularize and retry once.
		if f.logger != nil {
			f.logger.Warn("projected covariance singular, regularizing and retrying",
				zap.String("component", "bbox_filter.update"),
				zap.Error(err),
			)
		}
		regularize(projected.Covariance, 1e-6)
		_ = kt.Solve(projected.Covariance, &chtT)
	}
	gain := kt.T() // 8x4 (as a view)

	measurement := mat.NewVecDense(4, []float64{
		float64(box.Xc), float64(box.Yc), float64(box.Aspect), float64(box.Height),
	})
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
	ensurePD(&cov, f.logger, "bbox_filter.update")

	return State{Mean: &mean, Covariance: &cov}
}

// Box reconstructs a Universal2DBox (axis-aligned projection) from the
// state's position/shape components.
func (s State) Box() geometry.Universal2DBox {
	return geometry.NewUniversal2DBox(
		float32(s.Mean.AtVec(0)),
		float32(s.Mean.AtVec(1)),
		nil,
		float32(s.Mean.AtVec(2)),
		float32(s.Mean.AtVec(3)),
	)
}

// Velocity returns the (vxc, vyc, vaspect, vheight) velocity block.
func (s State) Velocity() (float32, float32, float32, float32) {
	return float32(s.Mean.AtVec(4)), float32(s.Mean.AtVec(5)), float32(s.Mean.AtVec(6)), float32(s.Mean.AtVec(7))
}

// GatingDistance returns the squared Mahalanobis distance between the
// state's projection into measurement space and a box measurement.
func (f *BBoxFilter) GatingDistance(s State, box geometry.Universal2DBox) float32 {
	projected := f.project(s.Mean, s.Covariance)
	measurement := mat.NewVecDense(4, []float64{
		float64(box.Xc), float64(box.Yc), float64(box.Aspect), float64(box.Height),
	})
	var diff mat.VecDense
	diff.SubVec(measurement, projected.Mean)

	var x mat.Dense
	diffCol := mat.NewDense(4, 1, diff.RawVector().Data)
	if err := x.Solve(projected.Covariance, diffCol); err != nil {
		return float32(math.Inf(1))
	}
	var result mat.Dense
	result.Mul(diffCol.T(), &x)
	return float32(result.At(0, 0))
}
