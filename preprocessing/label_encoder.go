// Package preprocessing はカテゴリ値を整数へ符号化する前処理を提供します。
package preprocessing

import (
	"fmt"
	"slices"

	"github.com/YuminosukeSato/binclass/core/model"
	"github.com/YuminosukeSato/binclass/pkg/errors"
)

// LabelEncoder はscikit-learn互換のラベルエンコーダー
// クラスを昇順に並べ、その位置 0..n_classes-1 を符号とする。
// 行の順序に依存しない決定的な全単射になる。
type LabelEncoder struct {
	state *model.StateManager

	classes_ []string
	index    map[string]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
//
// 使用例:
//
//	le := preprocessing.NewLabelEncoder()
//	codes, err := le.FitTransform([]string{"p", "e", "e"})
//	// codes == []int{1, 0, 0}
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{state: model.NewStateManager()}
}

// Fit はユニークな値を昇順に並べてクラスとして記憶する
func (le *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	index := make(map[string]int)
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := index[v]; ok {
			continue
		}
		index[v] = 0
		classes = append(classes, v)
	}
	slices.Sort(classes)
	for i, c := range classes {
		index[c] = i
	}

	le.classes_ = classes
	le.index = index
	le.state.SetDimensions(1, len(values))
	le.state.SetFitted()
	return nil
}

// Transform は値を符号に変換する。学習時に見ていない値はValueErrorになる。
func (le *LabelEncoder) Transform(values []string) ([]int, error) {
	if err := le.state.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	codes := make([]int, len(values))
	for i, v := range values {
		code, ok := le.index[v]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", fmt.Sprintf("y contains previously unseen label %q", v))
		}
		codes[i] = code
	}
	return codes, nil
}

// FitTransform はFitとTransformを同時に実行する
func (le *LabelEncoder) FitTransform(values []string) ([]int, error) {
	if err := le.Fit(values); err != nil {
		return nil, err
	}
	return le.Transform(values)
}

// InverseTransform は符号を元の値に戻す
func (le *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if err := le.state.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	values := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(le.classes_) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", fmt.Sprintf("code %d is out of range [0, %d)", c, len(le.classes_)))
		}
		values[i] = le.classes_[c]
	}
	return values, nil
}

// Code は1つの値の符号を返す
func (le *LabelEncoder) Code(value string) (int, bool) {
	code, ok := le.index[value]
	return code, ok
}

// Classes は学習したクラスを符号順で返す（コピー）
func (le *LabelEncoder) Classes() []string {
	return slices.Clone(le.classes_)
}

// NClasses はクラス数を返す
func (le *LabelEncoder) NClasses() int {
	return len(le.classes_)
}

// IsFitted は学習済みかどうかを返す
func (le *LabelEncoder) IsFitted() bool {
	return le.state.IsFitted()
}
