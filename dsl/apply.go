package dsl

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ByLCY/qrsheet/ingest"
	"github.com/ByLCY/qrsheet/layout"
	"github.com/ByLCY/qrsheet/record"
	"github.com/ByLCY/qrsheet/session"
)

// Error 指出作业文件中语义错误的位置。
type Error struct {
	Pos lexer.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

func errorf(pos lexer.Position, format string, args ...any) error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Apply 按出现顺序把作业文件的各段作用到会话上：fields 调用 AddField，
// record 调用 AddRecord，layout 覆盖布局参数。
func Apply(doc *Document, s session.Session) (session.Session, error) {
	if doc == nil {
		return s, nil
	}
	for _, sec := range doc.Sections {
		switch {
		case sec.Layout != nil:
			cfg, err := applyLayout(sec.Layout.Block, s.Config)
			if err != nil {
				return s, err
			}
			s.Config = cfg
		case sec.Fields != nil:
			for _, f := range sec.Fields.Names {
				s = s.AddField(string(f.Value))
			}
		case sec.Record != nil:
			rec, err := buildRecord(sec.Record, s.ManualFields)
			if err != nil {
				return s, err
			}
			s, _ = s.AddRecord(rec)
		}
	}
	return s, nil
}

// Page 返回最后一个 page 段，未声明时为 nil。
func (d *Document) Page() *PageSection {
	if d == nil {
		return nil
	}
	var page *PageSection
	for _, sec := range d.Sections {
		if sec.Page != nil {
			page = sec.Page
		}
	}
	return page
}

// PageSize 返回作业文件声明的页面尺寸；未声明时为 A4 纵向。
func (d *Document) PageSize() (layout.PageSize, error) {
	page := d.Page()
	if page == nil {
		return layout.A4, nil
	}
	size, err := layout.ResolvePageSize(page.Size, page.Orientation == "landscape")
	if err != nil {
		return layout.PageSize{}, errorf(page.Pos, "%v", err)
	}
	return size, nil
}

func applyLayout(block *Block, cfg layout.Config) (layout.Config, error) {
	if block == nil {
		return cfg, nil
	}
	for _, a := range block.Assignments {
		text := a.Value.Text()
		switch a.Key {
		case "size", "code-size":
			v, err := lengthValue(a)
			if err != nil {
				return cfg, err
			}
			cfg.CodeSize = v
		case "gap":
			v, err := lengthValue(a)
			if err != nil {
				return cfg, err
			}
			cfg.Gap = v
		case "margin":
			v, err := lengthValue(a)
			if err != nil {
				return cfg, err
			}
			cfg.Margin = v
		case "caption":
			cfg.CaptionField = text
		case "show-caption":
			b, err := strconv.ParseBool(text)
			if err != nil {
				return cfg, errorf(a.Pos, "show-caption 需要 true 或 false，实际 %q", text)
			}
			cfg.ShowCaption = b
		default:
			return cfg, errorf(a.Pos, "未知的 layout 属性 %q", a.Key)
		}
	}
	return cfg, nil
}

func lengthValue(a *Assignment) (float64, error) {
	if a.Value.Number == nil && a.Value.String == nil {
		return 0, errorf(a.Pos, "%s 需要长度值", a.Key)
	}
	mm, err := layout.ParseMM(a.Value.Text())
	if err != nil {
		return 0, errorf(a.Pos, "%s: %v", a.Key, err)
	}
	return mm, nil
}

func buildRecord(sec *RecordSection, fields record.Schema) (record.Record, error) {
	rec := make(record.Record)
	if sec.Block == nil {
		return rec, nil
	}
	for _, a := range sec.Block.Assignments {
		key := string(a.Key)
		if !fields.Contains(key) {
			return nil, errorf(a.Pos, "字段 %q 未在 fields 中声明", key)
		}
		switch {
		case a.Value.String != nil:
			rec[key] = string(*a.Value.String)
		case a.Value.Number != nil:
			rec[key] = ingest.ParseValue(*a.Value.Number)
		default:
			rec[key] = a.Value.Text()
		}
	}
	return rec, nil
}
