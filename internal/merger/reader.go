package merger

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ReadSheet читает расшифрованную книгу. Первая строка листа содержит заголовки,
// типы ячеек берутся из самой книги.
func ReadSheet(data []byte, sel SheetSelector) (RecordSet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return RecordSet{}, &SheetReadError{Sheet: sel, Err: fmt.Errorf("файл не является книгой Excel: %w", err)}
	}
	defer f.Close()

	sheet, err := resolveSheet(f, sel)
	if err != nil {
		return RecordSet{}, &SheetReadError{Sheet: sel, Err: err}
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return RecordSet{}, &SheetReadError{Sheet: sel, Err: fmt.Errorf("ошибка чтения строк: %w", err)}
	}
	if len(rows) == 0 {
		return RecordSet{}, nil
	}

	sr := &sheetReader{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		sr.date1904 = *props.Date1904
	}

	// Ячейки правее последнего заголовка попадают в колонки "Unnamed: N"
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	header := make([]string, width)
	copy(header, rows[0])

	rs := RecordSet{Columns: headerNames(header)}
	for r := 1; r < len(rows); r++ {
		row := make(Row, len(rs.Columns))
		empty := true
		for c, col := range rs.Columns {
			raw := ""
			if c < len(rows[r]) {
				raw = rows[r][c]
			}
			v := sr.cell(c+1, r+1, raw)
			if !v.IsMissing() {
				empty = false
			}
			row[col] = v
		}
		if empty {
			continue
		}
		rs.Rows = append(rs.Rows, row)
	}

	return rs, nil
}

func resolveSheet(f *excelize.File, sel SheetSelector) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.New("в книге нет листов")
	}
	if sel.IsName() {
		for _, name := range sheets {
			if name == sel.Name {
				return name, nil
			}
		}
		return "", fmt.Errorf("лист '%s' не найден (есть: %s)", sel.Name, strings.Join(sheets, ", "))
	}
	if sel.Index < 0 || sel.Index >= len(sheets) {
		return "", fmt.Errorf("индекс листа %d вне диапазона (0..%d)", sel.Index, len(sheets)-1)
	}
	return sheets[sel.Index], nil
}

type sheetReader struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

func (sr *sheetReader) cell(col, row int, raw string) Value {
	if raw == "" {
		return Missing()
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return String(raw)
	}
	typ, err := sr.f.GetCellType(sr.sheet, ref)
	if err != nil {
		return String(raw)
	}

	switch typ {
	case excelize.CellTypeBool:
		if raw == "1" || strings.EqualFold(raw, "true") {
			return String("TRUE")
		}
		return String("FALSE")
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError:
		return String(raw)
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return Date(t)
		}
		if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
			return Date(t)
		}
		return String(raw)
	}

	n, err := decimal.NewFromString(raw)
	if err != nil {
		return String(raw)
	}
	if sr.isDateStyled(ref) {
		if t, err := excelize.ExcelDateToTime(n.InexactFloat64(), sr.date1904); err == nil {
			return Date(t)
		}
	}
	return Number(n)
}

func (sr *sheetReader) isDateStyled(ref string) bool {
	id, err := sr.f.GetCellStyle(sr.sheet, ref)
	if err != nil || id == 0 {
		return false
	}
	if isDate, ok := sr.dateStyles[id]; ok {
		return isDate
	}
	isDate := false
	if style, err := sr.f.GetStyle(id); err == nil {
		isDate = isDateFormat(style.NumFmt) ||
			(style.CustomNumFmt != nil && isDateLayout(*style.CustomNumFmt))
	}
	sr.dateStyles[id] = isDate
	return isDate
}

func isDateFormat(fmtID int) bool {
	switch fmtID {
	case 14, 15, 16, 17, 22, 27, 30, 36, 45, 46, 47:
		return true
	}
	return false
}

var (
	quotedLiteralRe = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)
	dateTokenRe     = regexp.MustCompile(`[dy]`)
)

// isDateLayout распознает пользовательские форматы вида dd/mm/yyyy
func isDateLayout(layout string) bool {
	s := quotedLiteralRe.ReplaceAllString(strings.ToLower(layout), "")
	return dateTokenRe.MatchString(s)
}

// headerNames повторяет правила pandas: пустой заголовок становится "Unnamed: N",
// повторы получают суффиксы .1, .2
func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	for i, h := range raw {
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		names[i] = h
	}
	return uniqueNames(names)
}

func uniqueNames(names []string) []string {
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		cnt, dup := seen[n]
		seen[n] = cnt + 1
		if !dup {
			out[i] = n
			continue
		}
		candidate := fmt.Sprintf("%s.%d", n, cnt)
		for taken[candidate] {
			cnt++
			candidate = fmt.Sprintf("%s.%d", n, cnt)
		}
		seen[n] = cnt + 1
		taken[candidate] = true
		out[i] = candidate
	}
	return out
}
