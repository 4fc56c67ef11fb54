// Package ingest 把表格文件（xlsx、xls、csv）读成字段表与记录集。
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/ByLCY/qrsheet/record"
)

// maxXLSRows 是读取旧版 xls 时的行数上限。
const maxXLSRows = 100000

var (
	// ErrEmpty 表示文件没有任何数据行。
	ErrEmpty = errors.New("file appears empty")
	// ErrUnsupported 表示无法识别的文件扩展名。
	ErrUnsupported = errors.New("unsupported file type")
)

// ParseError 包装读取或解析过程中的底层错误。
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("解析 %s 失败: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Table 是一次导入的结果：首行作为字段表，其余行为记录。
type Table struct {
	Source  string
	Schema  record.Schema
	Records record.Set
}

// Load 根据文件名扩展名选择解析器读取整张表。
func Load(ctx context.Context, name string, r io.Reader) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r)
	case ".xls":
		rows, err = readXLS(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	if err != nil {
		if errors.Is(err, ErrEmpty) {
			return Table{}, err
		}
		return Table{}, &ParseError{Source: name, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	t, err := FromRows(rows)
	if err != nil {
		return Table{}, err
	}
	t.Source = name
	return t, nil
}

// FromRows 把二维单元格文本转换为 Table。
func FromRows(rows [][]string) (Table, error) {
	if len(rows) == 0 {
		return Table{}, ErrEmpty
	}
	header := rows[0]
	columns := make([]string, len(header))
	var names []string
	for i, h := range header {
		h = strings.TrimSpace(h)
		columns[i] = h
		if h != "" {
			names = append(names, h)
		}
	}
	schema := record.NewSchema(names...)

	var set record.Set
	for _, row := range rows[1:] {
		rec := make(record.Record)
		for i, cell := range row {
			if i >= len(columns) || columns[i] == "" {
				continue
			}
			if _, seen := rec[columns[i]]; seen {
				continue
			}
			if strings.TrimSpace(cell) == "" {
				continue
			}
			rec[columns[i]] = ParseValue(cell)
		}
		if rec.Empty() {
			continue
		}
		set = append(set, rec)
	}
	if len(set) == 0 {
		return Table{}, ErrEmpty
	}
	return Table{Schema: schema, Records: set}, nil
}

// ParseValue 把看起来像数字的单元格转为 int64 或 float64，其余保留原文。
// 带前导 0 的整数部分（如 "007"）视为编号，保留字符串。
func ParseValue(s string) any {
	t := strings.TrimSpace(s)
	if !looksNumeric(t) {
		return s
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return f
	}
	return s
}

func looksNumeric(s string) bool {
	body := strings.TrimPrefix(s, "-")
	if body == "" {
		return false
	}
	intPart, frac, hasDot := strings.Cut(body, ".")
	if intPart == "" || !allDigits(intPart) {
		return false
	}
	if len(intPart) > 1 && intPart[0] == '0' {
		return false
	}
	if hasDot && (frac == "" || !allDigits(frac)) {
		return false
	}
	return true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("no worksheet found")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return rows, nil
}

func readXLS(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, errors.New("no worksheet found")
	}
	// 只读第一个工作表，与 xlsx 一致。
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("no worksheet found")
	}
	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow) && i < maxXLSRows; i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return rows, nil
}

// xlsRow 取第 i 行。xls 库对缺失的行会解引用空指针，此处转成 nil。
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	// 去掉 UTF-8 BOM。
	if len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}
