package kalmanfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"
)

func TestEnsurePDLogsWhenRegularizationIsNeeded(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	// a matrix with a negative diagonal entry is not positive-definite.
	m := mat.NewDense(2, 2, []float64{-1, 0, 0, 1})
	ensurePD(m, logger, "test_component")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Contains(t, entry.Message, "covariance regularized")
	assert.Equal(t, "test_component", entry.ContextMap()["component"])
	assert.True(t, isPD(m))
}

func TestEnsurePDDoesNotLogWhenAlreadyPositiveDefinite(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	m := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	ensurePD(m, logger, "test_component")

	assert.Equal(t, 0, logs.Len())
}

func TestEnsurePDToleratesNilLogger(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{-1, 0, 0, 1})
	assert.NotPanics(t, func() {
		ensurePD(m, nil, "test_component")
	})
	assert.True(t, isPD(m))
}
