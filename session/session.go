// Package session 保存一次编辑会话的字段表、记录集与布局参数。
//
// Session 是值类型，每个操作返回新的 Session，原值保持不变。
package session

import (
	"github.com/ByLCY/qrsheet/assemble"
	"github.com/ByLCY/qrsheet/ingest"
	"github.com/ByLCY/qrsheet/layout"
	"github.com/ByLCY/qrsheet/record"
)

// DefaultManualFields 是手动录入的初始字段。
var DefaultManualFields = []string{"ID", "Name"}

// Session 是当前待打印的数据与布局。
type Session struct {
	Schema       record.Schema
	Records      record.Set
	Config       layout.Config
	ManualFields record.Schema
}

// New 以给定布局创建空会话。
func New(cfg layout.Config) Session {
	return Session{
		Schema:       record.Schema{},
		Records:      record.Set{},
		Config:       cfg,
		ManualFields: record.NewSchema(DefaultManualFields...),
	}
}

// Ingest 用导入的表整体替换字段表与记录集。空表返回 ingest.ErrEmpty，会话不变。
func (s Session) Ingest(t ingest.Table) (Session, error) {
	if len(t.Records) == 0 {
		return s, ingest.ErrEmpty
	}
	out := s
	out.Schema = record.SetSchema(s.Schema, t.Schema)
	out.Records = append(record.Set{}, t.Records...)
	out.Config = withCaption(out.Config, out.Schema)
	return out, nil
}

// AddField 追加一个手动字段，空白或重复的名字被静默忽略。
func (s Session) AddField(name string) Session {
	fields, err := s.ManualFields.Add(name)
	if err != nil {
		return s
	}
	out := s
	out.ManualFields = fields
	out.Schema = append(record.Schema{}, fields...)
	return out
}

// AddRecord 追加一条手动录入的记录。没有任何值的记录被拒绝（返回 false）。
func (s Session) AddRecord(rec record.Record) (Session, bool) {
	if rec.Empty() {
		return s, false
	}
	out := s
	out.Records = s.Records.Append(rec.Clone())
	out.Schema = append(record.Schema{}, s.ManualFields...)
	out.Config = withCaption(out.Config, out.Schema)
	return out, true
}

// Clear 清空字段表与记录，保留布局参数和手动字段。
func (s Session) Clear() Session {
	out := s
	out.Schema = record.Schema{}
	out.Records = s.Records.Clear()
	return out
}

// Job 生成一次打印任务的快照。
func (s Session) Job(page layout.PageSize) assemble.Job {
	return assemble.Job{
		Schema:  append(record.Schema{}, s.Schema...),
		Records: append(record.Set{}, s.Records...),
		Config:  s.Config,
		Page:    page,
	}
}

// withCaption 在尚未选择标签字段时选中第一个字段。
func withCaption(cfg layout.Config, schema record.Schema) layout.Config {
	if cfg.CaptionField == "" && len(schema) > 0 {
		cfg.CaptionField = schema[0]
	}
	return cfg
}
