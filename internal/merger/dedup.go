package merger

import (
	"sort"
	"time"
)

type Stats struct {
	Before  int `json:"rows_before"`
	After   int `json:"rows_after"`
	Removed int `json:"duplicates_removed"`
}

type Dedup struct {
	Sorted RecordSet // все строки, period_call по убыванию
	Unique RecordSet // последняя запись на каждого customer_no
	Stats  Stats
}

// Deduplicate сортирует строки по period_call (пропуски в конце, порядок
// равных сохраняется) и оставляет первую строку для каждого customer_no.
func Deduplicate(rs RecordSet) Dedup {
	sorted := SortByPeriod(rs)

	unique := RecordSet{Columns: sorted.Columns, Rows: make([]Row, 0, len(sorted.Rows))}
	seen := make(map[string]struct{}, len(sorted.Rows))
	for _, row := range sorted.Rows {
		key := row.Get(ColumnCustomerNo).Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique.Rows = append(unique.Rows, row)
	}

	return Dedup{
		Sorted: sorted,
		Unique: unique,
		Stats: Stats{
			Before:  len(sorted.Rows),
			After:   len(unique.Rows),
			Removed: len(sorted.Rows) - len(unique.Rows),
		},
	}
}

// SortByPeriod повторно приводит period_call к датам и стабильно сортирует по убыванию
func SortByPeriod(rs RecordSet) RecordSet {
	out := RecordSet{Columns: rs.Columns, Rows: make([]Row, len(rs.Rows))}
	for i, row := range rs.Rows {
		r := row.clone()
		r[ColumnPeriodCall] = ParsePeriodDate(row.Get(ColumnPeriodCall))
		out.Rows[i] = r
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, b := out.Rows[i][ColumnPeriodCall], out.Rows[j][ColumnPeriodCall]
		if a.IsMissing() || b.IsMissing() {
			return !a.IsMissing() && b.IsMissing()
		}
		return a.Date.After(b.Date)
	})
	return out
}

// PeriodDates возвращает различные известные даты period_call по убыванию
func PeriodDates(rs RecordSet) []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, row := range rs.Rows {
		v := row.Get(ColumnPeriodCall)
		if v.Kind != KindDate || seen[v.Date] {
			continue
		}
		seen[v.Date] = true
		dates = append(dates, v.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	return dates
}
