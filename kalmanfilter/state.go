// Package kalmanfilter implements the constant-velocity Kalman filters used
// to predict and smooth track positions: an 8-state bounding-box filter
// (center, aspect, height + velocities) and a 4-state 2D-point filter, plus
// Mahalanobis gating distances for both.
package kalmanfilter

import (
	"gonum.org/v1/gonum/mat"

	"go.uber.org/zap"
)

// Chi2Inv95 returns the 95% quantile of the chi-squared distribution for
// degrees of freedom 1..9 (index 0 == DOF 1).
func Chi2Inv95() [9]float32 {
	return [9]float32{
		3.8415, 5.9915, 7.8147, 9.4877, 11.070, 12.592, 14.067, 15.507, 16.919,
	}
}

// State holds a Gaussian state estimate: an n-vector mean and an n x n
// covariance, both row-major dense matrices from gonum.
type State struct {
	Mean       *mat.VecDense
	Covariance *mat.Dense
}

func newState(dim int) State {
	return State{
		Mean:       mat.NewVecDense(dim, nil),
		Covariance: mat.NewDense(dim, dim, nil),
	}
}

// Dim returns the dimensionality of the state vector.
func (s State) Dim() int {
	return s.Mean.Len()
}

// symmetrize forces a matrix to be exactly symmetric by averaging with its
// transpose, guarding against drift from floating-point covariance updates.
func symmetrize(m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			avg := (m.At(i, j) + m.At(j, i)) / 2
			m.Set(i, j, avg)
			m.Set(j, i, avg)
		}
	}
}

// regularize adds a small multiple of the identity to a covariance matrix
// that has lost positive-definiteness, restoring numerical stability.
func regularize(m *mat.Dense, eps float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		m.Set(i, i, m.At(i, i)+eps)
	}
}

// isPD reports whether a symmetric matrix is positive-definite via Cholesky.
func isPD(m *mat.Dense) bool {
	var chol mat.Cholesky
	sym := mat.NewSymDense(m.RawMatrix().Rows, nil)
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := i; j < c; j++ {
			sym.SetSym(i, j, m.At(i, j))
		}
	}
	return chol.Factorize(sym)
}

// ensurePD symmetrizes and, if needed, regularizes a covariance matrix in
// place until it is positive-definite (or a small retry budget is spent),
// logging one warning, carrying the attempt count, whenever regularization
// was needed so numerical-recovery events are observable instead of
// silently masked. logger may be nil.
func ensurePD(m *mat.Dense, logger *zap.Logger, component string) {
	symmetrize(m)
	if isPD(m) {
		return
	}
	eps := 1e-6
	attempts := 0
	for attempt := 0; attempt < 10 && !isPD(m); attempt++ {
		regularize(m, eps)
		eps *= 10
		attempts++
	}
	if logger != nil {
		logger.Warn("covariance regularized to restore positive-definiteness",
			zap.String("component", component),
			zap.Int("attempts", attempts),
		)
	}
}
