// Package metrics は ECI フィットの評価指標（重み付き MSE/RMSE/MAE/R² と最大誤差）を提供する。
// 重み w が nil の場合はすべて等重みとして扱う。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tce/pkg/errors"
)

// checkPair は長さの一致と非空、重みの長さと総和を検証し、重みの総和を返す
func checkPair(op string, yTrue, yPred, w mat.Vector) (int, float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	if yPred.Len() != n {
		return 0, 0, errors.NewShapeError(op, "predictions", n, yPred.Len())
	}
	if w == nil {
		return n, float64(n), nil
	}
	if w.Len() != n {
		return 0, 0, errors.NewShapeError(op, "weights", n, w.Len())
	}
	var wsum float64
	for i := 0; i < n; i++ {
		wsum += w.AtVec(i)
	}
	if !(wsum > 0) || math.IsInf(wsum, 0) {
		return 0, 0, errors.NewConfigurationErrorf(op, "weights", "sum must be positive and finite, got %g", wsum)
	}
	return n, wsum, nil
}

func weight(w mat.Vector, i int) float64 {
	if w == nil {
		return 1
	}
	return w.AtVec(i)
}

// MSE は重み付き平均二乗誤差 Σw(yTrue - yPred)² / Σw を計算する
func MSE(yTrue, yPred, w mat.Vector) (float64, error) {
	n, wsum, err := checkPair("MSE", yTrue, yPred, w)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += weight(w, i) * diff * diff
	}

	return sum / wsum, nil
}

// RMSE は重み付き平方根平均二乗誤差を計算する
func RMSE(yTrue, yPred, w mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred, w)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は重み付き平均絶対誤差 Σw|yTrue - yPred| / Σw を計算する
func MAE(yTrue, yPred, w mat.Vector) (float64, error) {
	n, wsum, err := checkPair("MAE", yTrue, yPred, w)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += weight(w, i) * math.Abs(yTrue.AtVec(i)-yPred.AtVec(i))
	}

	return sum / wsum, nil
}

// MaxError は重みが正の行のうち最大の絶対誤差を返す
func MaxError(yTrue, yPred, w mat.Vector) (float64, error) {
	n, _, err := checkPair("MaxError", yTrue, yPred, w)
	if err != nil {
		return 0, err
	}
	var worst float64
	for i := 0; i < n; i++ {
		if weight(w, i) <= 0 {
			continue
		}
		worst = math.Max(worst, math.Abs(yTrue.AtVec(i)-yPred.AtVec(i)))
	}
	return worst, nil
}

// R2 は重み付き決定係数 1 - RSS/TSS を計算する。平均も重み付き。
// yTrue の分散が 0 の場合、完全一致なら 1、そうでなければ 0 を返す。
func R2(yTrue, yPred, w mat.Vector) (float64, error) {
	n, wsum, err := checkPair("R2", yTrue, yPred, w)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += weight(w, i) * yTrue.AtVec(i)
	}
	yMean /= wsum

	var tss, rss float64
	for i := 0; i < n; i++ {
		wi := weight(w, i)
		dt := yTrue.AtVec(i) - yMean
		dr := yTrue.AtVec(i) - yPred.AtVec(i)
		tss += wi * dt * dt
		rss += wi * dr * dr
	}

	if tss == 0 {
		if rss == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - rss/tss, nil
}
