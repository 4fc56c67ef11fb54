package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// 长度统一以毫米为内部单位，Length 保留作者书写时的原始单位。

// Unit represents the original unit of a length value.
type Unit int

const (
	UnitNone Unit = iota // 无单位，按 mm 解释
	UnitMM               // millimeters
	UnitCM               // centimeters
	UnitIN               // inches
	UnitPT               // points
)

// PtToMm converts points to millimeters.
const PtToMm = 0.352777

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// ToMM 将长度换算为毫米；无单位的数值视为毫米。
func (l Length) ToMM() float64 {
	switch l.Unit {
	case UnitCM:
		return l.Value * 10
	case UnitIN:
		return l.Value * 25.4
	case UnitPT:
		return l.Value * PtToMm
	default:
		return l.Value
	}
}

var unitSuffixes = []struct {
	s string
	u Unit
}{{"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"pt", UnitPT}}

// ParseLength 解析 "35mm"、"3.5cm"、"12pt" 或裸数字（按 mm）。
func ParseLength(value string) (Length, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, fmt.Errorf("长度为空")
	}
	unit := UnitNone
	num := v
	for _, suf := range unitSuffixes {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, fmt.Errorf("无法解析长度 %q: %w", value, err)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return Length{}, fmt.Errorf("长度 %q 不是有限数值", value)
	}
	return Length{Value: f, Unit: unit}, nil
}

// ParseMM 是 ParseLength 的便捷形式，直接返回毫米值。
func ParseMM(value string) (float64, error) {
	l, err := ParseLength(value)
	if err != nil {
		return 0, err
	}
	return l.ToMM(), nil
}
