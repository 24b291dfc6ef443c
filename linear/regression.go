// Package linear は重み付き正則化最小二乗ソルバー（Ridge と elastic-net Lasso）を提供する。
// クラスター展開の ECI フィッティングに使う。切片は持たず、空クラスターの定数列が切片の役割を果たす。
package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tce/core/model"
	"github.com/YuminosukeSato/tce/core/parallel"
	"github.com/YuminosukeSato/tce/pkg/errors"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// Ridge は重み付きリッジ回帰
//
// (XᵀWX + λD)β = XᵀWy を解く。D は対角で、WithUnpenalized で指定した列は 0、それ以外は 1。
// λ = 0 の場合は最小ノルム最小二乗解（LimitingRidge）を返す。
type Ridge struct {
	state *model.StateManager
	cfg   config

	Alpha     float64 // 正則化強度 λ
	coef      []float64
	cond      float64
	rank      int
	nFeatures int
}

// NewRidge は新しいリッジ回帰ソルバーを作成する
func NewRidge(alpha float64, opts ...Option) *Ridge {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Ridge{state: model.NewStateManager(), cfg: cfg, Alpha: alpha}
}

// normalEquations は A = XᵀWX + λD と b = XᵀWy を計算する
func normalEquations(op string, X mat.Matrix, y, w mat.Vector, lambda float64, unpenalized []int) (*mat.SymDense, *mat.VecDense, float64, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, nil, 0, errors.NewFitError(op, "empty design matrix")
	}
	if y.Len() != r {
		return nil, nil, 0, errors.NewShapeError(op, "targets", r, y.Len())
	}
	if w != nil && w.Len() != r {
		return nil, nil, 0, errors.NewShapeError(op, "weights", r, w.Len())
	}
	if lambda < 0 || math.IsNaN(lambda) || math.IsInf(lambda, 0) {
		return nil, nil, 0, errors.NewFitErrorf(op, "regularization must be finite and non-negative, got %g", lambda)
	}
	for _, j := range unpenalized {
		if j < 0 || j >= c {
			return nil, nil, 0, errors.NewShapeError(op, "unpenalized column index", c-1, j)
		}
	}

	// √w で行をスケーリング
	Xw := mat.NewDense(r, c, nil)
	yw := mat.NewVecDense(r, nil)
	var wsum float64
	for i := 0; i < r; i++ {
		wi := 1.0
		if w != nil {
			wi = w.AtVec(i)
		}
		wsum += wi
	}
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			s := 1.0
			if w != nil {
				s = math.Sqrt(w.AtVec(i))
			}
			for j := 0; j < c; j++ {
				Xw.Set(i, j, s*X.At(i, j))
			}
			yw.SetVec(i, s*y.AtVec(i))
		}
	})

	a := mat.NewSymDense(c, nil)
	a.SymOuterK(1, Xw.T())
	if lambda > 0 {
		free := make(map[int]bool, len(unpenalized))
		for _, j := range unpenalized {
			free[j] = true
		}
		for j := 0; j < c; j++ {
			if !free[j] {
				a.SetSym(j, j, a.At(j, j)+lambda)
			}
		}
	}
	b := mat.NewVecDense(c, nil)
	b.MulVec(Xw.T(), yw)

	if err := errors.CheckMatrix(op, a, c, c, 0); err != nil {
		return nil, nil, 0, err
	}
	return a, b, wsum, nil
}

// Fit は計画行列 X、目的変数 y、重み w（nil なら等重み）で係数を求める
func (m *Ridge) Fit(X mat.Matrix, y, w mat.Vector) error {
	const op = "Ridge.Fit"
	a, b, _, err := normalEquations(op, X, y, w, m.Alpha, m.cfg.unpenalized)
	if err != nil {
		return err
	}
	_, c := X.Dims()

	m.cond = mat.Cond(a, 2)
	beta := mat.NewVecDense(c, nil)
	solved := false
	if m.Alpha > 0 && m.cond < m.cfg.illCond {
		var chol mat.Cholesky
		if chol.Factorize(a) {
			if err := chol.SolveVecTo(beta, b); err == nil {
				solved = true
				m.rank = c
			}
		}
	}
	if !solved {
		// 最小ノルム解（SVD）
		if m.cond >= m.cfg.illCond {
			errors.Warn(errors.NewIllConditionedWarning(op, m.cond, m.Alpha))
		}
		var svd mat.SVD
		if ok := svd.Factorize(a, mat.SVDThin); !ok {
			return errors.NewFitError(op, "singular value decomposition failed")
		}
		m.rank = svd.Rank(m.cfg.rcond)
		if m.rank == 0 {
			return errors.NewFitError(op, "normal equations are singular and no solution can be formed")
		}
		svd.SolveVecTo(beta, b, m.rank)
	}

	coef := make([]float64, c)
	for j := range coef {
		coef[j] = beta.AtVec(j)
	}
	if err := errors.CheckNumericalStability(op, coef, 0); err != nil {
		return err
	}
	m.coef = coef
	m.nFeatures = c
	r, _ := X.Dims()
	m.state.SetFitted(c, r)
	return nil
}

// Predict は X の各行に対する予測値を返す
func (m *Ridge) Predict(X mat.Matrix) (*mat.VecDense, error) {
	return predict("Ridge", m.state, m.coef, X)
}

// Coefficients は学習された係数のコピーを返す
func (m *Ridge) Coefficients() []float64 { return append([]float64(nil), m.coef...) }

// Condition は直近の Fit で解いた正規方程式行列の2-ノルム条件数を返す
func (m *Ridge) Condition() float64 { return m.cond }

// Rank は解に用いた有効ランクを返す（Cholesky 解の場合は列数）
func (m *Ridge) Rank() int { return m.rank }

// predict は y = Xβ を計算する
func predict(name string, state *model.StateManager, coef []float64, X mat.Matrix) (*mat.VecDense, error) {
	if !state.IsFitted() {
		return nil, errors.NewNotFittedError(name, "Predict")
	}
	r, c := X.Dims()
	if c != len(coef) {
		return nil, errors.NewShapeError(name+".Predict", "features", len(coef), c)
	}
	out := mat.NewVecDense(r, nil)
	out.MulVec(X, mat.NewVecDense(c, append([]float64(nil), coef...)))
	return out, nil
}
