package merger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Имена служебных и обязательных колонок
const (
	ColumnPeriodCall = "period_call"
	ColumnCustomerNo = "customer_no"
	ColumnSourceFile = "source_file"
)

type Kind int

const (
	KindMissing Kind = iota
	KindString
	KindNumber
	KindDate
)

// Value: значение ячейки. Нулевое значение соответствует пропуску.
type Value struct {
	Kind Kind
	Str  string
	Num  decimal.Decimal
	Date time.Time
}

func Missing() Value { return Value{} }

func String(s string) Value { return Value{Kind: KindString, Str: s} }

func Number(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

// Date хранит только календарную дату (полночь UTC)
func Date(t time.Time) Value { return Value{Kind: KindDate, Date: dateOnly(t)} }

func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// Key возвращает ключ идентичности значения: числа сравниваются по величине,
// даты по дню, все пропуски попадают в одну группу.
func (v Value) Key() string {
	switch v.Kind {
	case KindString:
		return "s:" + v.Str
	case KindNumber:
		return "n:" + v.Num.String()
	case KindDate:
		return "d:" + v.Date.Format(time.DateOnly)
	}
	return "missing"
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num.String()
	case KindDate:
		return v.Date.Format(time.DateOnly)
	}
	return ""
}

// Cell возвращает значение в виде, пригодном для excelize
func (v Value) Cell() interface{} {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		if v.Num.IsInteger() && v.Num.Abs().LessThan(decimal.New(1, 15)) {
			return v.Num.IntPart()
		}
		return v.Num.InexactFloat64()
	case KindDate:
		return v.Date
	}
	return nil
}

func (v Value) Equal(o Value) bool {
	return v.Kind == o.Kind && v.Key() == o.Key()
}

type Row map[string]Value

// Get возвращает пропуск для отсутствующей колонки
func (r Row) Get(col string) Value {
	if v, ok := r[col]; ok {
		return v
	}
	return Missing()
}

func (r Row) clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// RecordSet: упорядоченный набор строк с общей схемой колонок
type RecordSet struct {
	Columns []string
	Rows    []Row
}

func (rs RecordSet) Len() int { return len(rs.Rows) }

func (rs RecordSet) HasColumn(name string) bool {
	for _, c := range rs.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// WithColumn возвращает копию набора, в которой колонка name заполнена значением v
func (rs RecordSet) WithColumn(name string, v Value) RecordSet {
	out := RecordSet{Columns: append([]string(nil), rs.Columns...), Rows: make([]Row, len(rs.Rows))}
	if !out.HasColumn(name) {
		out.Columns = append(out.Columns, name)
	}
	for i, row := range rs.Rows {
		r := row.clone()
		r[name] = v
		out.Rows[i] = r
	}
	return out
}

// Values возвращает строку в порядке колонок
func (rs RecordSet) Values(i int) []Value {
	vals := make([]Value, len(rs.Columns))
	for j, col := range rs.Columns {
		vals[j] = rs.Rows[i].Get(col)
	}
	return vals
}

func (rs RecordSet) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(rs.Columns, "\t"))
	for i := range rs.Rows {
		b.WriteByte('\n')
		for j, v := range rs.Values(i) {
			if j > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(v.String())
		}
	}
	return b.String()
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
