package layout

import "math"

// ComputeGeometry 推导网格参数：列数、水平居中偏移与格子高度。
// 码宽加间距超过内容宽度（或为 0）时列数钳制为 1，保证后续排布必然终止。
func ComputeGeometry(cfg Config, page PageSize) Geometry {
	contentWidth := page.Width - 2*cfg.Margin
	step := cfg.CodeSize + cfg.Gap

	columns := 0
	if step > 0 {
		if c := math.Floor(contentWidth / step); !math.IsNaN(c) && !math.IsInf(c, 0) && c > 0 {
			if c > math.MaxInt32 {
				c = math.MaxInt32
			}
			columns = int(c)
		}
	}
	clamped := false
	if columns < 1 {
		columns = 1
		clamped = true
	}

	rowWidth := float64(columns)*cfg.CodeSize + float64(columns-1)*cfg.Gap
	return Geometry{
		ContentWidth: contentWidth,
		Columns:      columns,
		RowWidth:     rowWidth,
		XOffset:      cfg.Margin + (contentWidth-rowWidth)/2,
		ItemHeight:   cfg.ItemHeight(),
		Clamped:      clamped,
	}
}

// Compute 为 count 条记录按行优先顺序计算落位。
// 纯函数：相同输入总是得到相同序列；页码从 0 开始单调不减。
func Compute(count int, cfg Config, page PageSize) []Placement {
	if count <= 0 {
		return []Placement{}
	}
	geo := ComputeGeometry(cfg, page)
	bottom := page.Height - cfg.Margin

	out := make([]Placement, 0, count)
	pageIndex := 0
	x, y := geo.XOffset, cfg.Margin
	itemsOnPage := 0

	for i := 0; i < count; i++ {
		// 空页上的格子即使放不下也直接落位，避免出现空白页。
		if itemsOnPage > 0 && y+geo.ItemHeight > bottom {
			pageIndex++
			x, y = geo.XOffset, cfg.Margin
			itemsOnPage = 0
		}

		out = append(out, Placement{Index: i, Page: pageIndex, X: x, Y: y})

		itemsOnPage++
		if itemsOnPage%geo.Columns == 0 {
			x = geo.XOffset
			y += geo.ItemHeight + cfg.Gap
		} else {
			x += cfg.CodeSize + cfg.Gap
		}
	}
	return out
}

// PageCount 返回落位序列覆盖的页数（1 + 最大页码），空序列为 0。
func PageCount(placements []Placement) int {
	if len(placements) == 0 {
		return 0
	}
	return placements[len(placements)-1].Page + 1
}

// BuildPlan 计算完整布局计划。
func BuildPlan(count int, cfg Config, page PageSize) *Plan {
	placements := Compute(count, cfg, page)
	return &Plan{
		Page:       page,
		Config:     cfg,
		Geometry:   ComputeGeometry(cfg, page),
		Pages:      PageCount(placements),
		Placements: placements,
	}
}
