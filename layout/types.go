package layout

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// 该文件定义网格布局的输入（配置、纸张）与输出（落位、几何），单位均为毫米。

// CaptionAllowance 是开启标签时每个二维码下方预留的垂直高度（mm）。
const CaptionAllowance = 8.0

// ErrInvalidConfig 表示布局配置不满足基本约束。
var ErrInvalidConfig = errors.New("invalid layout config")

// Config 描述二维码网格的尺寸与标签设置。
type Config struct {
	CodeSize     float64 `json:"codeSize" yaml:"code_size"`
	Gap          float64 `json:"gap" yaml:"gap"`
	Margin       float64 `json:"margin" yaml:"margin"`
	ShowCaption  bool    `json:"showCaption" yaml:"show_caption"`
	CaptionField string  `json:"captionField,omitempty" yaml:"caption_field"`
}

// DefaultConfig 返回 35mm 码、5mm 间距、10mm 页边距并显示标签的默认配置。
func DefaultConfig() Config {
	return Config{CodeSize: 35, Gap: 5, Margin: 10, ShowCaption: true}
}

// ConfigError 指出具体哪个字段非法。
type ConfigError struct {
	Field string
	Value float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("布局配置 %s 非法: %g", e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate 检查尺寸是否为有限的合法长度。列数不足不在此报错，由 ComputeGeometry 钳制。
func (c Config) Validate() error {
	if !finite(c.CodeSize) || c.CodeSize <= 0 {
		return &ConfigError{Field: "codeSize", Value: c.CodeSize}
	}
	if !finite(c.Gap) || c.Gap < 0 {
		return &ConfigError{Field: "gap", Value: c.Gap}
	}
	if !finite(c.Margin) || c.Margin < 0 {
		return &ConfigError{Field: "margin", Value: c.Margin}
	}
	return nil
}

func finite(v float64) bool { return !math.IsInf(v, 0) && !math.IsNaN(v) }

// ItemHeight 为单个格子（码 + 可选标签）的高度。
func (c Config) ItemHeight() float64 {
	if c.ShowCaption {
		return c.CodeSize + CaptionAllowance
	}
	return c.CodeSize
}

// PageSize 以毫米表示纸张尺寸。
type PageSize struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// A4 是导出文档固定使用的纸张（纵向）。
var A4 = PageSize{Width: 210, Height: 297}

var pagePresets = map[string]PageSize{
	"A4": A4,
	"A5": {Width: 148, Height: 210},
}

// ResolvePageSize 按名称查找预设纸张，landscape 时交换宽高。
func ResolvePageSize(name string, landscape bool) (PageSize, error) {
	size, ok := pagePresets[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return PageSize{}, fmt.Errorf("暂不支持的纸张尺寸：%s", name)
	}
	if landscape {
		size.Width, size.Height = size.Height, size.Width
	}
	return size, nil
}

// Placement 是某条记录二维码在文档中的页码与左上角坐标。
type Placement struct {
	Index int     `json:"index"`
	Page  int     `json:"page"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Geometry 是由配置与纸张推导出的网格参数，每次计算都重新生成。
type Geometry struct {
	ContentWidth float64 `json:"contentWidth"`
	Columns      int     `json:"columns"`
	RowWidth     float64 `json:"rowWidth"`
	XOffset      float64 `json:"xOffset"`
	ItemHeight   float64 `json:"itemHeight"`
	// Clamped 为 true 表示码宽加间距超出内容宽度，列数被强制设为 1。
	Clamped bool `json:"clamped,omitempty"`
}

// Plan 汇总一次布局计算的输入与结果，供调试 JSON 与预览使用。
type Plan struct {
	Page       PageSize    `json:"page"`
	Config     Config      `json:"config"`
	Geometry   Geometry    `json:"geometry"`
	Pages      int         `json:"pages"`
	Placements []Placement `json:"placements"`
}
