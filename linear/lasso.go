package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tce/core/model"
	"github.com/YuminosukeSato/tce/pkg/errors"
)

// Lasso は重み付き elastic-net 回帰（座標降下法）
//
// 目的関数:
//
//	(1/2Σw) Σ wᵢ(yᵢ − xᵢβ)² + λ(ρ|β|₁ + (1−ρ)/2 |β|²)
//
// ρ = 1 で純粋な Lasso。WithUnpenalized で指定した列はペナルティの対象外。
// 収束しなかった場合は ConvergenceWarning を errors.Warn で通知し、最後の反復の係数を保持する。
type Lasso struct {
	state *model.StateManager
	cfg   config

	Alpha  float64 // 正則化強度 λ
	coef   []float64
	cond   float64
	nIter  int
	active int
}

// NewLasso は新しい Lasso ソルバーを作成する
func NewLasso(alpha float64, opts ...Option) *Lasso {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Lasso{state: model.NewStateManager(), cfg: cfg, Alpha: alpha}
}

// Fit は座標降下法で係数を求める
func (m *Lasso) Fit(X mat.Matrix, y, w mat.Vector) error {
	const op = "Lasso.Fit"
	if m.cfg.l1Ratio < 0 || m.cfg.l1Ratio > 1 || math.IsNaN(m.cfg.l1Ratio) {
		return errors.NewFitErrorf(op, "l1 ratio must be in [0, 1], got %g", m.cfg.l1Ratio)
	}
	// 正規方程式は条件数の報告とカラムノルムに使う
	gram, xty, wsum, err := normalEquations(op, X, y, w, 0, m.cfg.unpenalized)
	if err != nil {
		return err
	}
	r, c := X.Dims()

	free := make([]bool, c)
	for _, j := range m.cfg.unpenalized {
		free[j] = true
	}
	l1 := m.Alpha * m.cfg.l1Ratio
	l2 := m.Alpha * (1 - m.cfg.l1Ratio)

	// 条件数は (XᵀWX/Σw + λ(1−ρ)D)
	scaled := mat.NewSymDense(c, nil)
	scaled.ScaleSym(1/wsum, gram)
	for j := 0; j < c; j++ {
		if !free[j] {
			scaled.SetSym(j, j, scaled.At(j, j)+l2)
		}
	}
	m.cond = mat.Cond(scaled, 2)

	// 勾配は Gram 行列で更新する: g = XᵀWy − XᵀWXβ
	beta := make([]float64, c)
	grad := make([]float64, c)
	for j := 0; j < c; j++ {
		grad[j] = xty.AtVec(j)
	}
	converged := false
	iter := 0
	for iter = 1; iter <= m.cfg.maxIter; iter++ {
		var maxDelta, maxBeta float64
		for j := 0; j < c; j++ {
			ajj := gram.At(j, j) / wsum
			if ajj == 0 {
				continue
			}
			z := grad[j]/wsum + ajj*beta[j]
			var next float64
			if free[j] {
				next = z / ajj
			} else {
				next = errors.SoftThreshold(z, l1) / (ajj + l2)
			}
			delta := next - beta[j]
			if delta == 0 {
				continue
			}
			for k := 0; k < c; k++ {
				grad[k] -= gram.At(k, j) * delta
			}
			beta[j] = next
			maxDelta = math.Max(maxDelta, math.Abs(delta))
			maxBeta = math.Max(maxBeta, math.Abs(next))
		}
		if err := errors.CheckNumericalStability(op, beta, iter); err != nil {
			return err
		}
		if maxDelta <= m.cfg.tol*math.Max(1, maxBeta) {
			converged = true
			break
		}
	}
	if !converged {
		iter = m.cfg.maxIter
		errors.Warn(errors.NewConvergenceWarning("Lasso", m.cfg.maxIter, ""))
	}

	m.coef = beta
	m.nIter = iter
	m.active = 0
	for _, b := range beta {
		if b != 0 {
			m.active++
		}
	}
	m.state.SetFitted(c, r)
	return nil
}

// Predict は X の各行に対する予測値を返す
func (m *Lasso) Predict(X mat.Matrix) (*mat.VecDense, error) {
	return predict("Lasso", m.state, m.coef, X)
}

// Coefficients は学習された係数のコピーを返す
func (m *Lasso) Coefficients() []float64 { return append([]float64(nil), m.coef...) }

// Condition は (XᵀWX/Σw + λ(1−ρ)D) の2-ノルム条件数を返す
func (m *Lasso) Condition() float64 { return m.cond }

// NIter は実行した座標降下の反復回数を返す
func (m *Lasso) NIter() int { return m.nIter }

// ActiveCount は非ゼロ係数の数を返す
func (m *Lasso) ActiveCount() int { return m.active }
