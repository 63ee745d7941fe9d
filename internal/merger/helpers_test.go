package merger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const testPassword = "202502"

type testSheet struct {
	name string
	rows [][]interface{}
}

// buildWorkbook собирает книгу в памяти; первый лист переименовывается
func buildWorkbook(t *testing.T, sheets ...testSheet) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		for r, row := range sh.rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func encrypt(t *testing.T, plain []byte, password string) []byte {
	t.Helper()
	out, err := excelize.Encrypt(plain, &excelize.Options{Password: password})
	if err != nil {
		t.Fatalf("encrypt workbook: %v", err)
	}
	return out
}

func encryptedWorkbook(t *testing.T, sheets ...testSheet) []byte {
	t.Helper()
	return encrypt(t, buildWorkbook(t, sheets...), testPassword)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func num(n int64) Value { return Number(decimal.NewFromInt(n)) }

// record собирает набор из колонок и строк значений
func record(columns []string, rows ...[]Value) RecordSet {
	rs := RecordSet{Columns: columns}
	for _, vals := range rows {
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = vals[i]
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs
}
