package task

import "encoding/json"

// Nullable はJSONの「未指定」「null」「値あり」を区別して受け取るフィールド。
// Setはキーがボディに含まれていた場合にtrueとなり、nullのときValueはnilのまま。
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Null は明示的なnullを表すNullableを返す。
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// Some は値ありのNullableを返す。
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// UnmarshalJSON はキーが存在する場合のみ呼ばれる。
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}
