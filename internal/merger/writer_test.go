package merger

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriteWorkbook_RoundTrip(t *testing.T) {
	rs := record([]string{ColumnCustomerNo, ColumnPeriodCall, "name", ColumnSourceFile},
		[]Value{num(1), Date(day(2025, 2, 1)), String("Andi"), String("a.xlsx")},
		[]Value{num(2), Missing(), Missing(), String("b.xlsx")},
	)

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, rs, ""); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadSheet(buf.Bytes(), SheetIndex(0))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !reflect.DeepEqual(got.Columns, rs.Columns) {
		t.Fatalf("expected columns %v, got %v", rs.Columns, got.Columns)
	}
	if got.Len() != rs.Len() {
		t.Fatalf("expected %d rows, got %d", rs.Len(), got.Len())
	}
	for i := range rs.Rows {
		for _, col := range rs.Columns {
			if want, v := rs.Rows[i].Get(col), got.Rows[i].Get(col); !v.Equal(want) {
				t.Errorf("row %d column %s: expected %#v, got %#v", i, col, want, v)
			}
		}
	}
}

func TestPartWriter_RotatesFiles(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "merged.xlsx")

	stale := filepath.Join(dir, "merged_part9.xlsx")
	if err := os.WriteFile(stale, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	rs := RecordSet{Columns: []string{ColumnCustomerNo}}
	for i := int64(1); i <= 5; i++ {
		rs.Rows = append(rs.Rows, Row{ColumnCustomerNo: num(i)})
	}

	pw := &PartWriter{OutputPath: out, MaxRowPerFile: 3}
	files, err := pw.Write(rs)
	if err != nil {
		t.Fatalf("write parts: %v", err)
	}

	want := []string{
		filepath.Join(dir, "merged_part1.xlsx"),
		filepath.Join(dir, "merged_part2.xlsx"),
		filepath.Join(dir, "merged_part3.xlsx"),
	}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("expected files %v, got %v", want, files)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("expected stale part to be removed, stat err = %v", err)
	}

	wantRows := []int{2, 2, 1}
	next := int64(1)
	for i, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		part, err := ReadSheet(data, SheetIndex(0))
		if err != nil {
			t.Fatalf("parse %s: %v", f, err)
		}
		if part.Len() != wantRows[i] {
			t.Errorf("%s: expected %d rows, got %d", f, wantRows[i], part.Len())
		}
		for _, row := range part.Rows {
			if !row.Get(ColumnCustomerNo).Equal(num(next)) {
				t.Errorf("%s: expected customer %d, got %v", f, next, row.Get(ColumnCustomerNo))
			}
			next++
		}
	}
}
