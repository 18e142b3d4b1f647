// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// scikit-learnの警告・例外システムにインスパイアされており、構造化されたエラー情報を提供します。
// アプリケーション層のエラー分類（DataUnavailable / InvalidHyperparameter）もここで定義します。
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
		log.Printf("binclass-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
// これにより、ConvergenceWarningなどのカスタム警告の処理方法を制御できます。
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
// nil を渡すと従来のハンドラに戻ります。
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
//	scikit-learn互換の警告型
//
// ===========================================================================

// ConvergenceWarning は最適化アルゴリズムが収束しなかった場合に発生する警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
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

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、適合率(precision)を計算する際に、陽性クラスの予測が一つもなかった場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `DecisionFunction` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("binclass: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("binclass: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
// `ValueError`よりも具体的なバリデーションロジックの失敗を示します。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("binclass: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("binclass: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("binclass: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("binclass: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// ===========================================================================
//
//	アプリケーション層のエラー分類
//
// ===========================================================================

// DataUnavailableError はデータセットファイルが存在しない、または壊れている場合のエラーです。
// 起動時に発生した場合は致命的です。
type DataUnavailableError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("binclass: data unavailable at %q: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("binclass: data unavailable at %q: %s", e.Path, e.Reason)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// Is は errors.Is(err, ErrDataUnavailable) を成立させます。
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DataUnavailableError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("reason", e.Reason).
		Str("type", "DataUnavailableError")
}

// NewDataUnavailableError は新しいDataUnavailableErrorを作成し、スタックトレースを付与します。
func NewDataUnavailableError(path, reason string, err error) error {
	return errors.WithStack(&DataUnavailableError{Path: path, Reason: reason, Err: err})
}

// InvalidHyperparameterError はハイパーパラメータの組み合わせが受け付けられない場合のエラーです。
// 分類アクション1回分のみが失敗し、フォームは再試行に使えます。
type InvalidHyperparameterError struct {
	Algorithm string
	Param     string
	Value     interface{}
	Err       error
}

func (e *InvalidHyperparameterError) Error() string {
	switch {
	case e.Param != "" && e.Err != nil:
		return fmt.Sprintf("binclass: %s: invalid hyperparameter %s=%v: %v", e.Algorithm, e.Param, e.Value, e.Err)
	case e.Param != "":
		return fmt.Sprintf("binclass: %s: invalid hyperparameter %s=%v", e.Algorithm, e.Param, e.Value)
	case e.Err != nil:
		return fmt.Sprintf("binclass: %s: invalid hyperparameters: %v", e.Algorithm, e.Err)
	default:
		return fmt.Sprintf("binclass: %s: invalid hyperparameters", e.Algorithm)
	}
}

func (e *InvalidHyperparameterError) Unwrap() error {
	return e.Err
}

// Is は errors.Is(err, ErrInvalidHyperparameter) を成立させます。
func (e *InvalidHyperparameterError) Is(target error) bool {
	return target == ErrInvalidHyperparameter
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InvalidHyperparameterError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("algorithm", e.Algorithm).
		Str("param", e.Param).
		Interface("value", e.Value).
		Str("type", "InvalidHyperparameterError")
}

// NewInvalidHyperparameterError は新しいInvalidHyperparameterErrorを作成し、スタックトレースを付与します。
func NewInvalidHyperparameterError(algorithm, param string, value interface{}, err error) error {
	return errors.WithStack(&InvalidHyperparameterError{Algorithm: algorithm, Param: param, Value: value, Err: err})
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

// CombineErrors は2つのエラーをまとめます。メッセージは最初の非nilエラーのものです。
func CombineErrors(err, other error) error {
	return errors.CombineErrors(err, other)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	数値計算のエラー型
//
// ===========================================================================

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// NaN、Inf、オーバーフロー、アンダーフローなどを検出します。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "loss", "kernel"）
	Values    []float64 // 問題のある値
	Iteration int       // 発生したイテレーション番号
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
	return fmt.Sprintf("binclass: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrDataUnavailable はデータセットが読み込めない場合のセンチネルです。
	ErrDataUnavailable = New("data unavailable")

	// ErrInvalidHyperparameter はハイパーパラメータが不正な場合のセンチネルです。
	ErrInvalidHyperparameter = New("invalid hyperparameter")

	// ErrSingleClass は学習データに1クラスしか含まれない場合のエラーです。
	ErrSingleClass = New("training labels contain a single class")
)
