// Package config 读取 YAML 配置文件；配置只读，从不回写。
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ByLCY/qrsheet/layout"
	"github.com/ByLCY/qrsheet/logging"
	"github.com/ByLCY/qrsheet/raster"
)

// 可选的文档渲染后端。
const (
	RendererCanvas = "canvas"
	RendererFPDF   = "fpdf"
)

type Config struct {
	Layout      layout.Config  `yaml:"layout"`
	Page        PageConfig     `yaml:"page"`
	Raster      raster.Options `yaml:"raster"`
	Renderer    string         `yaml:"renderer"`
	Document    DocumentConfig `yaml:"document"`
	Concurrency int            `yaml:"concurrency"`
	Output      string         `yaml:"output"`
	MetricsFile string         `yaml:"metrics_file"`
	Log         logging.Config `yaml:"log"`
}

type PageConfig struct {
	Size      string `yaml:"size"`
	Landscape bool   `yaml:"landscape"`
}

type DocumentConfig struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
	Font   string `yaml:"font"`
}

// Default 返回内置默认值：35mm 二维码、5mm 间距、10mm 页边距、A4 纵向。
func Default() *Config {
	return &Config{
		Layout:      layout.DefaultConfig(),
		Page:        PageConfig{Size: "A4"},
		Raster:      raster.DefaultOptions(),
		Renderer:    RendererCanvas,
		Document:    DocumentConfig{Title: "Bulk QR Codes"},
		Concurrency: 4,
		Output:      "bulk-qr-codes.pdf",
		Log:         logging.DefaultConfig(),
	}
}

// Load 读取配置文件，文件中未出现的键保留默认值。path 为空时直接返回默认值。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置 %s 失败: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置 %s 无效: %w", path, err)
	}
	return cfg, nil
}

// PageSize 解析页面预设。
func (c *Config) PageSize() (layout.PageSize, error) {
	return layout.ResolvePageSize(c.Page.Size, c.Page.Landscape)
}

// Validate 检查各项取值。
func (c *Config) Validate() error {
	var errs []error
	if err := c.Layout.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.PageSize(); err != nil {
		errs = append(errs, err)
	}
	switch c.Renderer {
	case RendererCanvas, RendererFPDF:
	default:
		errs = append(errs, fmt.Errorf("未知的 renderer %q", c.Renderer))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency 必须大于 0，实际 %d", c.Concurrency))
	}
	if c.Raster.PixelWidth <= 0 {
		errs = append(errs, fmt.Errorf("raster.pixel_width 必须大于 0，实际 %d", c.Raster.PixelWidth))
	}
	return errors.Join(errs...)
}
