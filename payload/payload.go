// Package payload 将一条记录转换为二维码要编码的字符串。
package payload

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/ByLCY/qrsheet/record"
)

// ErrUnsupportedValue 表示记录中出现了无法序列化的值类型。
var ErrUnsupportedValue = errors.New("unsupported record value")

// Encode 按字段表生成载荷：
//   - 只有一个字段时直接输出该字段的文本值（纯文本二维码，如单个 SKU）；
//   - 其余情况输出 JSON 对象，键按字段表顺序排列，缺失字段省略，不在字段表中的键不参与。
func Encode(rec record.Record, schema record.Schema) (string, error) {
	if len(schema) == 1 {
		return rec.Text(schema[0]), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, field := range schema {
		val, ok := rec.Lookup(field)
		if !ok {
			continue
		}
		encoded, err := encodeValue(val)
		if err != nil {
			return "", fmt.Errorf("字段 %q: %w", field, err)
		}
		key, err := json.MarshalNoEscape(field)
		if err != nil {
			return "", fmt.Errorf("字段 %q: %w", field, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

func encodeValue(v any) ([]byte, error) {
	switch v.(type) {
	case string, int64, int, float64, bool:
		return json.MarshalNoEscape(v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// RecordError 指出记录集中第几条记录无法编码。
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("记录 %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// EncodeAll 按顺序为记录集中每条记录生成载荷，遇到第一条失败的记录即返回 *RecordError。
func EncodeAll(records record.Set, schema record.Schema) ([]string, error) {
	out := make([]string, len(records))
	for i, rec := range records {
		p, err := Encode(rec, schema)
		if err != nil {
			return nil, &RecordError{Index: i, Err: err}
		}
		out[i] = p
	}
	return out, nil
}
