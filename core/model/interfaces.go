package model

import (
	"gonum.org/v1/gonum/mat"
)

// Regressor は重み付き線形回帰ソルバーのインターフェース
//
// w が nil の場合は全サンプル等重みとして扱う。
type Regressor interface {
	// Fit は計画行列 X と目的変数 y でソルバーを学習させる
	Fit(X mat.Matrix, y, w mat.Vector) error

	// Predict は X の各行に対する予測値を返す
	Predict(X mat.Matrix) (*mat.VecDense, error)

	// Coefficients は学習された係数のコピーを返す
	Coefficients() []float64
}

// RegressorFactory は正則化強度ごとに新しいソルバーを作る関数
type RegressorFactory func(regularization float64) Regressor

// Conditioner は正規方程式の条件数を報告できるソルバー
type Conditioner interface {
	// Condition は直近のFitで解いた正則化済み正規方程式行列の2-ノルム条件数を返す
	Condition() float64
}
