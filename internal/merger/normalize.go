package merger

import (
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// NormalizeColumns приводит заголовки к виду snake_case и разбирает period_call
// в календарные даты. Функция чистая и идемпотентная.
func NormalizeColumns(rs RecordSet) RecordSet {
	names := make([]string, len(rs.Columns))
	for i, col := range rs.Columns {
		names[i] = NormalizeColumnName(col)
	}
	names = uniqueNames(names)

	out := RecordSet{Columns: names, Rows: make([]Row, len(rs.Rows))}
	for i, row := range rs.Rows {
		r := make(Row, len(names))
		for j, col := range rs.Columns {
			r[names[j]] = row.Get(col)
		}
		if p, ok := r[ColumnPeriodCall]; ok {
			r[ColumnPeriodCall] = ParsePeriodDate(p)
		}
		out.Rows[i] = r
	}
	return out
}

func NormalizeColumnName(name string) string {
	s := lower.String(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "periode call", ColumnPeriodCall)
	return strings.ReplaceAll(s, " ", "_")
}

// Сначала форматы «день, затем месяц»; «месяц, затем день» пробуется
// только когда день первым невозможен (01/13/2025).
var periodLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2006-01-02",
	"2006/01/02",
	"20060102",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006 3:04:05 PM",
	"2/1/2006 3:04 PM",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2 January 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2006",
	"Jan 2006",
	"1/2/2006",
	"1/2/06",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
}

// Диапазон серийных номеров дат Excel: 1900-01-01 .. 9999-12-31
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// ParsePeriodDate возвращает дату или пропуск, если значение не разбирается
func ParsePeriodDate(v Value) Value {
	switch v.Kind {
	case KindDate:
		return Date(v.Date)
	case KindNumber:
		f := v.Num.InexactFloat64()
		if f < minExcelSerial || f > maxExcelSerial {
			return Missing()
		}
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return Missing()
		}
		return Date(t)
	case KindString:
		s := strings.TrimSpace(v.Str)
		for _, layout := range periodLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return Date(t)
			}
		}
	}
	return Missing()
}
