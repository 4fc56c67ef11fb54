// Package record 定义记录、字段表与记录集，以及字段表的增删规则。
package record

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrBlankField 表示字段名为空或仅含空白。
	ErrBlankField = errors.New("blank field name")
	// ErrDuplicateField 表示字段名已存在。
	ErrDuplicateField = errors.New("duplicate field name")
)

// ValidationError 描述添加字段时被拒绝的原因。
type ValidationError struct {
	Name string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("字段 %q 无法添加: %v", e.Name, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Record 是一行数据：字段名到值的映射。值为 string、int64 或 float64，缺失即未设置。
type Record map[string]any

// Lookup 返回字段值，值为 nil 时视为缺失。
func (r Record) Lookup(field string) (any, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Text 返回字段的字符串形式，缺失时为空串。
func (r Record) Text(field string) string {
	v, ok := r.Lookup(field)
	if !ok {
		return ""
	}
	return Stringify(v)
}

// Stringify 将记录中的值转为字符串，数字格式与表格中显示的一致（不含多余的 0 与指数）。
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// Empty 报告记录是否不含任何值。
func (r Record) Empty() bool {
	for _, v := range r {
		if v != nil {
			return false
		}
	}
	return true
}

// Clone 返回记录的浅拷贝。
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Schema 是有序且不重复的字段名列表，决定载荷编码顺序与可选标签字段。
type Schema []string

// NewSchema 按给定顺序构建字段表，忽略空白与重复（保留首次出现）。
func NewSchema(names ...string) Schema {
	s := Schema{}
	for _, name := range names {
		s = s.AddField(name)
	}
	return s
}

// SetSchema 整体替换字段表，不与旧字段合并。
func SetSchema(_ Schema, names []string) Schema { return NewSchema(names...) }

// Contains 报告字段是否存在。
func (s Schema) Contains(name string) bool {
	for _, f := range s {
		if f == name {
			return true
		}
	}
	return false
}

// Add 返回追加 name 后的新字段表，名字按原样保存，去空白只用于判断是否为空。
// 空白或重复时返回原字段表与 *ValidationError。
func (s Schema) Add(name string) (Schema, error) {
	if strings.TrimSpace(name) == "" {
		return s, &ValidationError{Name: name, Err: ErrBlankField}
	}
	if s.Contains(name) {
		return s, &ValidationError{Name: name, Err: ErrDuplicateField}
	}
	out := make(Schema, len(s), len(s)+1)
	copy(out, s)
	return append(out, name), nil
}

// AddField 与 Add 相同，但静默忽略非法字段名，重复点击不会产生副作用。
func (s Schema) AddField(name string) Schema {
	out, _ := s.Add(name)
	return out
}

// Set 是有序记录集，顺序即打印顺序。
type Set []Record

// Append 返回追加一条记录后的新记录集。
func (s Set) Append(r Record) Set {
	out := make(Set, len(s), len(s)+1)
	copy(out, s)
	return append(out, r)
}

// Clear 返回空记录集。
func (s Set) Clear() Set { return Set{} }
