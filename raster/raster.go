// Package raster 负责把载荷字符串栅格化为二维码 PNG。
package raster

import (
	"context"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// Level 是纠错等级（L/M/Q/H）。
type Level string

const (
	LevelL Level = "L"
	LevelM Level = "M"
	LevelQ Level = "Q"
	LevelH Level = "H"
)

// Options 控制生成图像的纠错等级、像素宽度与静区。
type Options struct {
	Level      Level `yaml:"level"`
	PixelWidth int   `yaml:"pixel_width"`
	// Margin 为 0 时去掉静区，由版面间距负责留白。
	Margin int `yaml:"margin"`
}

// DefaultOptions 与打印导出一致：M 级纠错、200px、无静区。
func DefaultOptions() Options {
	return Options{Level: LevelM, PixelWidth: 200, Margin: 0}
}

// Rasterizer 将载荷转换为 PNG 字节。
type Rasterizer interface {
	Rasterize(ctx context.Context, payload string, opts Options) ([]byte, error)
}

// QR 基于 github.com/skip2/go-qrcode 的 Rasterizer 实现。
type QR struct{}

var _ Rasterizer = QR{}

// Rasterize 实现 Rasterizer。
func (QR) Rasterize(ctx context.Context, payload string, opts Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	level, err := recoveryLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	code, err := qrcode.New(payload, level)
	if err != nil {
		return nil, fmt.Errorf("生成二维码失败: %w", err)
	}
	if opts.Margin <= 0 {
		code.DisableBorder = true
	}
	width := opts.PixelWidth
	if width <= 0 {
		width = DefaultOptions().PixelWidth
	}
	png, err := code.PNG(width)
	if err != nil {
		return nil, fmt.Errorf("编码二维码 PNG 失败: %w", err)
	}
	return png, nil
}

func recoveryLevel(l Level) (qrcode.RecoveryLevel, error) {
	switch Level(strings.ToUpper(string(l))) {
	case LevelL:
		return qrcode.Low, nil
	case LevelM, "":
		return qrcode.Medium, nil
	case LevelQ:
		return qrcode.High, nil
	case LevelH:
		return qrcode.Highest, nil
	default:
		return qrcode.Medium, fmt.Errorf("未知的纠错等级：%s", l)
	}
}
