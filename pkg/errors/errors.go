// Package errors はクラスター展開エンジン全体のエラーハンドリングと警告システムを提供します。
// 各コンポーネントは不変条件違反を検出した境界で、対象（サイト・オービット・構成の番号）を
// 特定できる構造化エラーを返します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("tce-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nilを渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが利用可能な場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConvergenceWarning は反復ソルバーが収束しなかった場合に発生する警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or the regularization strength.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// IllConditionedWarning は正規方程式の条件数が大きすぎる場合の警告です。
// 解は返されますが、ECIの信頼性は低くなります。
type IllConditionedWarning struct {
	Op             string
	Condition      float64
	Regularization float64
}

func (w *IllConditionedWarning) Error() string {
	return fmt.Sprintf("%s: normal equations are ill-conditioned (cond=%.3g, regularization=%g)", w.Op, w.Condition, w.Regularization)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *IllConditionedWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", w.Op).
		Float64("condition", w.Condition).
		Float64("regularization", w.Regularization).
		Str("type", "IllConditionedWarning")
}

// NewIllConditionedWarning は新しいIllConditionedWarningを作成します。
func NewIllConditionedWarning(op string, cond, regularization float64) *IllConditionedWarning {
	return &IllConditionedWarning{Op: op, Condition: cond, Regularization: regularization}
}

// LargeSystemWarning は大きなスーパーセルの相関計算が遅くなりうる場合の警告です。
type LargeSystemWarning struct {
	Index     int
	Sites     int
	Threshold int
}

func (w *LargeSystemWarning) Error() string {
	return fmt.Sprintf("configuration %d has %d sites (threshold %d); correlation evaluation may be slow", w.Index, w.Sites, w.Threshold)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *LargeSystemWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("configuration", w.Index).
		Int("sites", w.Sites).
		Int("threshold", w.Threshold).
		Str("type", "LargeSystemWarning")
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// ConfigurationError は格子・対称操作の不整合、アルファベット外の化学種、
// 不正な列挙パラメータなど、入力の構成が不正な場合のエラーです。
type ConfigurationError struct {
	Op     string
	Entity string // 問題のある対象（例: "site 3", "orbit 7", "max_diameter"）
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("tce: %s: invalid configuration of %s: %s", e.Op, e.Entity, e.Reason)
	}
	return fmt.Sprintf("tce: %s: invalid configuration: %s", e.Op, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("entity", e.Entity).
		Str("reason", e.Reason).
		Str("type", "ConfigurationError")
}

// NewConfigurationError は新しいConfigurationErrorを作成し、スタックトレースを付与します。
func NewConfigurationError(op, entity, reason string) error {
	return errors.WithStack(&ConfigurationError{Op: op, Entity: entity, Reason: reason})
}

// NewConfigurationErrorf はフォーマット済みの理由でConfigurationErrorを作成します。
func NewConfigurationErrorf(op, entity, format string, args ...interface{}) error {
	return errors.WithStack(&ConfigurationError{Op: op, Entity: entity, Reason: fmt.Sprintf(format, args...)})
}

// ShapeError はステージ間でベクトル・行列の次元が一致しない場合のエラーです。
type ShapeError struct {
	Op       string
	What     string // 比較対象（例: "energies", "eci", "weights"）
	Expected int
	Got      int
}

func (e *ShapeError) Error() string {
	if e.What != "" {
		return fmt.Sprintf("tce: %s: shape mismatch for %s. Expected %d, got %d", e.Op, e.What, e.Expected, e.Got)
	}
	return fmt.Sprintf("tce: %s: shape mismatch. Expected %d, got %d", e.Op, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ShapeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("what", e.What).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("type", "ShapeError")
}

// NewShapeError は新しいShapeErrorを作成し、スタックトレースを付与します。
func NewShapeError(op, what string, expected, got int) error {
	return errors.WithStack(&ShapeError{Op: op, What: what, Expected: expected, Got: got})
}

// NonFiniteError は非有限値（NaN, ±Inf）を含む入力のためのShapeErrorの変種です。
type NonFiniteError struct {
	Op    string
	What  string
	Index int
	Value float64
}

func (e *NonFiniteError) Error() string {
	return fmt.Sprintf("tce: %s: %s[%d] is not finite (%v)", e.Op, e.What, e.Index, e.Value)
}

// Is により NonFiniteError は ShapeError として扱われます。
func (e *NonFiniteError) Is(target error) bool {
	_, ok := target.(*ShapeError)
	return ok
}

// NewNonFiniteError は新しいNonFiniteErrorを作成し、スタックトレースを付与します。
func NewNonFiniteError(op, what string, index int, value float64) error {
	return errors.WithStack(&NonFiniteError{Op: op, What: what, Index: index, Value: value})
}

// FitError は回帰問題が不適切（行数不足、空のフォールドなど）な場合のエラーです。
type FitError struct {
	Op     string
	Reason string
}

func (e *FitError) Error() string {
	return fmt.Sprintf("tce: %s: cannot fit: %s", e.Op, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *FitError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("type", "FitError")
}

// NewFitError は新しいFitErrorを作成し、スタックトレースを付与します。
func NewFitError(op, reason string) error {
	return errors.WithStack(&FitError{Op: op, Reason: reason})
}

// NewFitErrorf はフォーマット済みの理由でFitErrorを作成します。
func NewFitErrorf(op, format string, args ...interface{}) error {
	return errors.WithStack(&FitError{Op: op, Reason: fmt.Sprintf(format, args...)})
}

// DimensionError はスーパーセル変換行列が特異または非整数の場合のエラーです。
type DimensionError struct {
	Op        string
	Transform [3][3]float64
	Reason    string
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("tce: %s: invalid supercell transform %v: %s", e.Op, e.Transform, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Interface("transform", e.Transform).
		Str("reason", e.Reason).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, transform [3][3]float64, reason string) error {
	return errors.WithStack(&DimensionError{Op: op, Transform: transform, Reason: reason})
}

// NotFittedError はソルバーが未学習の状態で `Predict` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("tce: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tce: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// Is により ValidationError は ConfigurationError として扱われます。
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	種類判定ヘルパー
//
// ===========================================================================

// IsConfigurationError はエラー連鎖にConfigurationErrorが含まれるかを返します。
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	var validation *ValidationError
	return errors.As(err, &target) || errors.As(err, &validation)
}

// IsShapeError はエラー連鎖にShapeError（またはNonFiniteError）が含まれるかを返します。
func IsShapeError(err error) bool {
	var target *ShapeError
	var nonFinite *NonFiniteError
	return errors.As(err, &target) || errors.As(err, &nonFinite)
}

// IsFitError はエラー連鎖にFitErrorが含まれるかを返します。
func IsFitError(err error) bool {
	var target *FitError
	return errors.As(err, &target)
}

// IsDimensionError はエラー連鎖にDimensionErrorが含まれるかを返します。
func IsDimensionError(err error) bool {
	var target *DimensionError
	return errors.As(err, &target)
}

// ===========================================================================
//
//	数値不安定性
//
// ===========================================================================

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("tce: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")
)
