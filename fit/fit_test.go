package fit

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tce/design"
	"github.com/YuminosukeSato/tce/pkg/errors"
	"github.com/YuminosukeSato/tce/pkg/log"
)

func silenceWarnings(t *testing.T) {
	t.Helper()
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(error) {})
}

func matrix(x [][]float64, y []float64) *design.Matrix {
	rows, cols := len(x), len(x[0])
	m := &design.Matrix{
		X:     mat.NewDense(rows, cols, nil),
		Y:     mat.NewVecDense(rows, append([]float64(nil), y...)),
		W:     mat.NewVecDense(rows, nil),
		Sites: make([]int, rows),
	}
	for i, row := range x {
		m.X.SetRow(i, row)
		m.W.SetVec(i, 1)
		m.Sites[i] = 1
	}
	return m
}

func TestKFoldSplit(t *testing.T) {
	folds, err := NewKFold(3, false, 0).Split(7)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	require.Equal(t, []int{0, 1, 2}, folds[0].Test)
	require.Equal(t, []int{3, 4}, folds[1].Test)
	require.Equal(t, []int{5, 6}, folds[2].Test)
	require.Equal(t, []int{0, 1, 2, 5, 6}, folds[1].Train)

	shuffled, err := NewKFold(3, true, 42).Split(7)
	require.NoError(t, err)
	var all []int
	for _, f := range shuffled {
		require.Len(t, f.Train, 7-len(f.Test))
		all = append(all, f.Test...)
	}
	sort.Ints(all)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, all)

	again, err := NewKFold(3, true, 42).Split(7)
	require.NoError(t, err)
	require.Equal(t, shuffled, again)

	_, err = NewKFold(1, false, 0).Split(7)
	require.True(t, errors.IsFitError(err))
	_, err = NewKFold(8, false, 0).Split(7)
	require.True(t, errors.IsFitError(err))
}

func TestFitRecoversCoefficients(t *testing.T) {
	silenceWarnings(t)
	rng := rand.New(rand.NewPCG(3, 5))
	beta := []float64{-0.7, 0.2, 0.05}
	var x [][]float64
	var y []float64
	for i := 0; i < 24; i++ {
		row := []float64{1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}
		x = append(x, row)
		y = append(y, beta[0]+beta[1]*row[1]+beta[2]*row[2])
	}

	logger, _ := log.NewTestLogger(log.LevelInfo)
	m := matrix(x, y)
	eci, diag, err := Fit(m, WithGrid([]float64{0, 1e-6, 1}), WithFolds(4), WithLogger(logger))
	require.NoError(t, err)
	require.InDeltaSlice(t, beta, []float64(eci), 1e-4)
	require.Less(t, diag.Regularization, 1.0)
	require.Less(t, diag.CVRMSE, 1e-3)
	require.Less(t, diag.RMSE, 1e-3)
	require.Len(t, diag.Path, 3)
	require.Equal(t, 3, diag.ActiveECI)
	require.InDelta(t, 1.0, diag.R2, 1e-6)
	require.LessOrEqual(t, diag.MAE, diag.MaxError)
	require.InEpsilon(t, normalEquationsCond(m, diag.Regularization, 0), diag.Condition, 1e-9)
	require.True(t, logger.ContainsMessage("cross-validation finished"))
}

func TestFitTieGoesToLargerRegularization(t *testing.T) {
	silenceWarnings(t)
	// a lone unpenalised constant column fits the mean for every λ
	x := [][]float64{{1}, {1}, {1}, {1}}
	y := []float64{1, 2, 3, 4}

	eci, diag, err := Fit(matrix(x, y), WithGrid([]float64{0, 0.1, 1}), WithFolds(2))
	require.NoError(t, err)
	require.Equal(t, 1.0, diag.Regularization)
	require.InDelta(t, 2.5, eci[0], 1e-12)
	require.InDelta(t, diag.Path[0].CVMSE, diag.Path[2].CVMSE, 1e-12)

	// residuals -1.5, -0.5, 0.5, 1.5 around the mean
	require.InDelta(t, 1.25, diag.RMSE*diag.RMSE, 1e-12)
	require.InDelta(t, 1.0, diag.MAE, 1e-12)
	require.InDelta(t, 1.5, diag.MaxError, 1e-12)
	require.InDelta(t, 0.0, diag.R2, 1e-12)
	require.InDelta(t, 1.0, diag.Condition, 1e-12)
}

func TestFitConditionAtSelectedRegularization(t *testing.T) {
	silenceWarnings(t)
	rng := rand.New(rand.NewPCG(9, 4))
	var x [][]float64
	var y []float64
	for i := 0; i < 12; i++ {
		a := rng.Float64()*2 - 1
		row := []float64{1, a, a + 1e-3*(rng.Float64()-0.5)}
		x = append(x, row)
		y = append(y, 0.3*row[1]+rng.Float64()*0.1)
	}
	m := matrix(x, y)
	for i := range y {
		m.W.SetVec(i, 1+float64(i%3))
	}

	_, diag, err := Fit(m, WithGrid([]float64{0.5}), WithFolds(3))
	require.NoError(t, err)
	require.Equal(t, 0.5, diag.Regularization)
	require.InEpsilon(t, normalEquationsCond(m, 0.5, 0), diag.Condition, 1e-9)
}

// normalEquationsCond is the 2-norm condition number of XᵀWX + λD with
// column free left out of D.
func normalEquationsCond(m *design.Matrix, lambda float64, free int) float64 {
	rows, cols := m.Dims()
	a := mat.NewSymDense(cols, nil)
	for i := 0; i < rows; i++ {
		w := m.W.AtVec(i)
		for j := 0; j < cols; j++ {
			for k := j; k < cols; k++ {
				a.SetSym(j, k, a.At(j, k)+w*m.X.At(i, j)*m.X.At(i, k))
			}
		}
	}
	for j := 0; j < cols; j++ {
		if j != free {
			a.SetSym(j, j, a.At(j, j)+lambda)
		}
	}
	return mat.Cond(a, 2)
}

func TestFitLasso(t *testing.T) {
	silenceWarnings(t)
	x := [][]float64{{1, 1}, {1, -1}, {1, 1}, {1, -1}, {1, 1}, {1, -1}}
	y := []float64{0.5, -1.5, 0.5, -1.5, 0.5, -1.5}

	eci, diag, err := Fit(matrix(x, y), WithPenalty(Lasso), WithGrid([]float64{0, 1e-3}), WithFolds(3))
	require.NoError(t, err)
	require.InDelta(t, -0.5, eci[0], 1e-3)
	require.InDelta(t, 1.0, eci[1], 1e-3)
	require.Equal(t, 2, diag.ActiveECI)
}

func TestFitErrors(t *testing.T) {
	silenceWarnings(t)
	one := matrix([][]float64{{1, 0.5}}, []float64{1})
	_, _, err := Fit(one)
	require.True(t, errors.IsFitError(err))

	three := matrix([][]float64{{1, 0}, {1, 1}, {1, 2}}, []float64{1, 2, 3})
	_, _, err = Fit(three, WithFolds(4))
	require.True(t, errors.IsFitError(err))

	_, _, err = Fit(three, WithFolds(1))
	require.True(t, errors.IsFitError(err))

	_, _, err = Fit(three, WithFolds(3), WithGrid(nil))
	require.True(t, errors.IsFitError(err))

	_, _, err = Fit(three, WithFolds(3), WithGrid([]float64{1, -1}))
	require.True(t, errors.IsFitError(err))

	zero := matrix([][]float64{{0}, {0}, {0}}, []float64{1, 2, 3})
	_, _, err = Fit(zero, WithFolds(3), WithGrid([]float64{0}))
	require.True(t, errors.IsFitError(err))
}

func TestParsePenalty(t *testing.T) {
	p, err := ParsePenalty("LASSO")
	require.NoError(t, err)
	require.Equal(t, Lasso, p)
	p, err = ParsePenalty("")
	require.NoError(t, err)
	require.Equal(t, Ridge, p)
	_, err = ParsePenalty("l0")
	require.True(t, errors.IsConfigurationError(err))
}

func TestDefaultGrid(t *testing.T) {
	grid := DefaultGrid()
	require.Len(t, grid, 9)
	require.Equal(t, 0.0, grid[0])
	require.InDelta(t, 1e-6, grid[1], 1e-20)
	require.InDelta(t, 10.0, grid[8], 1e-12)
}
