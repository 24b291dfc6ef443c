package linear

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tce/pkg/errors"
)

func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })
	return &got
}

func exactData(rows int, beta []float64) (*mat.Dense, *mat.VecDense) {
	rng := rand.New(rand.NewPCG(7, 11))
	X := mat.NewDense(rows, len(beta), nil)
	for i := 0; i < rows; i++ {
		X.Set(i, 0, 1)
		for j := 1; j < len(beta); j++ {
			X.Set(i, j, rng.Float64()*2-1)
		}
	}
	y := mat.NewVecDense(rows, nil)
	y.MulVec(X, mat.NewVecDense(len(beta), beta))
	return X, y
}

func TestRidgeRecoversExactCoefficients(t *testing.T) {
	beta := []float64{-1.5, 0.8, 0.3, -0.05}
	X, y := exactData(30, beta)

	m := NewRidge(0)
	require.NoError(t, m.Fit(X, y, nil))
	require.InDeltaSlice(t, beta, m.Coefficients(), 1e-9)
	require.Equal(t, 4, m.Rank())
	require.Greater(t, m.Condition(), 1.0)

	pred, err := m.Predict(X)
	require.NoError(t, err)
	require.InDeltaSlice(t, y.RawVector().Data, pred.RawVector().Data, 1e-9)
}

func TestRidgeClosedForm(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 1, 1})
	y := mat.NewVecDense(3, []float64{1, 2, 3})

	// β = Σy / (n + λ)
	m := NewRidge(3)
	require.NoError(t, m.Fit(X, y, nil))
	require.InDelta(t, 1.0, m.Coefficients()[0], 1e-12)

	// unpenalised column: the mean
	m = NewRidge(3, WithUnpenalized(0))
	require.NoError(t, m.Fit(X, y, nil))
	require.InDelta(t, 2.0, m.Coefficients()[0], 1e-12)

	// weighted mean
	X2 := mat.NewDense(2, 1, []float64{1, 1})
	m = NewRidge(0.5, WithUnpenalized(0))
	require.NoError(t, m.Fit(X2, mat.NewVecDense(2, []float64{1, 3}), mat.NewVecDense(2, []float64{3, 1})))
	require.InDelta(t, 1.5, m.Coefficients()[0], 1e-12)
}

func TestRidgeMinimumNorm(t *testing.T) {
	warnings := captureWarnings(t)

	X := mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	y := mat.NewVecDense(2, []float64{2, 3})

	m := NewRidge(0)
	require.NoError(t, m.Fit(X, y, nil))
	require.InDeltaSlice(t, []float64{2, 3, 0, 0}, m.Coefficients(), 1e-12)
	require.Equal(t, 2, m.Rank())
	require.NotEmpty(t, *warnings)

	var ill *errors.IllConditionedWarning
	require.True(t, errors.As((*warnings)[0], &ill))
}

func TestRidgeErrors(t *testing.T) {
	captureWarnings(t)
	X := mat.NewDense(3, 2, []float64{1, 0, 1, 1, 1, 2})

	err := NewRidge(0).Fit(X, mat.NewVecDense(2, []float64{1, 2}), nil)
	require.True(t, errors.IsShapeError(err))

	err = NewRidge(0).Fit(X, mat.NewVecDense(3, []float64{1, 2, 3}), mat.NewVecDense(2, nil))
	require.True(t, errors.IsShapeError(err))

	err = NewRidge(-1).Fit(X, mat.NewVecDense(3, []float64{1, 2, 3}), nil)
	require.True(t, errors.IsFitError(err))

	err = NewRidge(0).Fit(mat.NewDense(3, 2, nil), mat.NewVecDense(3, []float64{1, 2, 3}), nil)
	require.True(t, errors.IsFitError(err))

	err = NewRidge(1, WithUnpenalized(5)).Fit(X, mat.NewVecDense(3, []float64{1, 2, 3}), nil)
	require.True(t, errors.IsShapeError(err))

	_, err = NewRidge(1).Predict(X)
	require.Error(t, err)

	m := NewRidge(1)
	require.NoError(t, m.Fit(X, mat.NewVecDense(3, []float64{1, 2, 3}), nil))
	_, err = m.Predict(mat.NewDense(1, 3, nil))
	require.True(t, errors.IsShapeError(err))
}

func TestLassoMatchesLeastSquaresWithoutPenalty(t *testing.T) {
	beta := []float64{0.5, -2, 1, 0.25}
	X, y := exactData(40, beta)

	m := NewLasso(0, WithUnpenalized(0))
	require.NoError(t, m.Fit(X, y, nil))
	require.InDeltaSlice(t, beta, m.Coefficients(), 1e-5)
	require.Equal(t, 4, m.ActiveCount())
	require.Greater(t, m.NIter(), 0)
}

func TestLassoStrongPenaltyKeepsOnlyConstant(t *testing.T) {
	X, y := exactData(40, []float64{0.5, -2, 1, 0.25})

	m := NewLasso(1e3, WithUnpenalized(0))
	require.NoError(t, m.Fit(X, y, nil))
	coef := m.Coefficients()
	require.Equal(t, []float64{0, 0, 0}, coef[1:])
	require.Equal(t, 1, m.ActiveCount())

	var mean float64
	for _, v := range y.RawVector().Data {
		mean += v
	}
	mean /= float64(y.Len())
	require.InDelta(t, mean, coef[0], 1e-9)
}

func TestLassoElasticNetShrinks(t *testing.T) {
	X, y := exactData(40, []float64{0.5, -2, 1, 0.25})

	ridgeLike := NewLasso(0.1, WithUnpenalized(0), WithL1Ratio(0))
	require.NoError(t, ridgeLike.Fit(X, y, nil))
	lasso := NewLasso(0.1, WithUnpenalized(0), WithL1Ratio(1))
	require.NoError(t, lasso.Fit(X, y, nil))

	require.LessOrEqual(t, lasso.ActiveCount(), ridgeLike.ActiveCount())
	require.Greater(t, lasso.Condition(), 0.0)
}

func TestLassoConvergenceWarning(t *testing.T) {
	warnings := captureWarnings(t)
	X, y := exactData(40, []float64{0.5, -2, 1, 0.25})

	m := NewLasso(1e-4, WithMaxIter(1), WithTol(0))
	require.NoError(t, m.Fit(X, y, nil))
	require.Len(t, *warnings, 1)

	var cw *errors.ConvergenceWarning
	require.True(t, errors.As((*warnings)[0], &cw))
	require.Equal(t, 1, cw.Iterations)
}

func TestLassoInvalidL1Ratio(t *testing.T) {
	X, y := exactData(10, []float64{1, 1})
	err := NewLasso(1, WithL1Ratio(1.5)).Fit(X, y, nil)
	require.True(t, errors.IsFitError(err))
}
