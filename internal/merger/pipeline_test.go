package merger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testPipeline(workers int) *Pipeline {
	return NewPipeline(Options{Password: testPassword, Workers: workers}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func scenarioFiles(t *testing.T) (file1, file2 []byte) {
	t.Helper()
	file1 = encryptedWorkbook(t, testSheet{name: "Sheet1", rows: [][]interface{}{
		{"Customer No", "Periode Call", "Nama"},
		{1, "10/01/2025", "Andi"},
		{2, "05/01/2025", "Budi"},
	}})
	file2 = encryptedWorkbook(t, testSheet{name: "Sheet1", rows: [][]interface{}{
		{"CUSTOMER NO", "PERIODE CALL"},
		{1, day(2025, 2, 1)},
	}})
	return file1, file2
}

func TestPipeline_MergesAndKeepsLatest(t *testing.T) {
	file1, file2 := scenarioFiles(t)

	for _, workers := range []int{1, 4} {
		res, err := testPipeline(workers).Run(context.Background(), []Upload{
			{Name: "file1.xlsx", Data: file1},
			{Name: "file2.xlsx", Data: file2},
		})
		if err != nil {
			t.Fatalf("workers=%d: run: %v", workers, err)
		}

		if res.RunID == "" {
			t.Error("expected run id")
		}
		if len(res.Files) != 2 || res.Files[0].Name != "file1.xlsx" || res.Files[1].Name != "file2.xlsx" {
			t.Fatalf("workers=%d: file reports out of order: %+v", workers, res.Files)
		}
		if res.Files[0].Rows != 2 || res.Files[1].Rows != 1 {
			t.Errorf("workers=%d: unexpected per-file rows %d/%d", workers, res.Files[0].Rows, res.Files[1].Rows)
		}
		if res.Stats != (Stats{Before: 3, After: 2, Removed: 1}) {
			t.Errorf("workers=%d: unexpected stats %+v", workers, res.Stats)
		}

		for _, row := range res.Unique.Rows {
			if row.Get(ColumnCustomerNo).Equal(num(1)) {
				if !row.Get(ColumnPeriodCall).Equal(Date(day(2025, 2, 1))) {
					t.Errorf("workers=%d: customer 1 kept %v, expected 2025-02-01", workers, row.Get(ColumnPeriodCall))
				}
				if row.Get(ColumnSourceFile).Str != "file2.xlsx" {
					t.Errorf("workers=%d: customer 1 should come from file2.xlsx, got %v", workers, row.Get(ColumnSourceFile))
				}
			}
		}

		if res.Merged.Len() != 3 {
			t.Errorf("workers=%d: expected 3 merged rows, got %d", workers, res.Merged.Len())
		}
		if len(res.Dates) != 3 || !res.Dates[0].Equal(day(2025, 2, 1)) {
			t.Errorf("workers=%d: unexpected dates %v", workers, res.Dates)
		}
	}
}

func TestPipeline_WrongPasswordIsolated(t *testing.T) {
	file1, _ := scenarioFiles(t)
	other := encrypt(t, buildWorkbook(t, testSheet{name: "Sheet1", rows: [][]interface{}{
		{"customer_no", "period_call"},
		{9, "01/01/2025"},
	}}), "another-password")

	res, err := testPipeline(1).Run(context.Background(), []Upload{
		{Name: "locked.xlsx", Data: other},
		{Name: "file1.xlsx", Data: file1},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var de *DecryptionError
	if !errors.As(res.Files[0].Err, &de) {
		t.Fatalf("expected *DecryptionError for locked.xlsx, got %v", res.Files[0].Err)
	}
	if de.File != "locked.xlsx" {
		t.Errorf("expected error to name locked.xlsx, got %q", de.File)
	}
	if !res.Files[1].OK() {
		t.Errorf("file1.xlsx should still be processed: %v", res.Files[1].Err)
	}
	if res.Stats.Before != 2 {
		t.Errorf("expected only rows of file1.xlsx, got %+v", res.Stats)
	}
}

func TestPipeline_AllFilesFail(t *testing.T) {
	file1, file2 := scenarioFiles(t)
	p := NewPipeline(Options{Password: "wrong"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	res, err := p.Run(context.Background(), []Upload{
		{Name: "file1.xlsx", Data: file1},
		{Name: "file2.xlsx", Data: file2},
	})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if res == nil || len(res.Files) != 2 {
		t.Fatalf("expected file reports even when every file fails, got %+v", res)
	}
	for _, fr := range res.Files {
		if fr.OK() {
			t.Errorf("%s: expected failure", fr.Name)
		}
	}
	if res.Merged.Len() != 0 || res.Unique.Len() != 0 {
		t.Error("no artifacts expected when every file fails")
	}
}

func TestPipeline_MissingNamedSheet(t *testing.T) {
	file1, _ := scenarioFiles(t)
	withLoad := encryptedWorkbook(t,
		testSheet{name: "Cover", rows: [][]interface{}{{"ignored"}}},
		testSheet{name: SheetLoad, rows: [][]interface{}{
			{"customer_no", "periode call"},
			{3, "20/01/2025"},
		}},
	)

	res, err := testPipeline(1).Run(context.Background(), []Upload{
		{Name: "file1.xlsx", Data: file1, Sheet: SheetName(SheetLoad)},
		{Name: "load.xlsx", Data: withLoad, Sheet: SheetName(SheetLoad)},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var se *SheetReadError
	if !errors.As(res.Files[0].Err, &se) {
		t.Fatalf("expected *SheetReadError for file1.xlsx, got %v", res.Files[0].Err)
	}
	if se.File != "file1.xlsx" || se.Sheet != SheetName(SheetLoad) {
		t.Errorf("unexpected error details: %+v", se)
	}
	if !res.Files[1].OK() || res.Stats.After != 1 {
		t.Errorf("load.xlsx should be merged alone: %+v / %+v", res.Files[1], res.Stats)
	}
}

func TestPipeline_SchemaMismatch(t *testing.T) {
	noCustomer := encryptedWorkbook(t, testSheet{name: "Sheet1", rows: [][]interface{}{
		{"Nama", "Periode Call"},
		{"Andi", "10/01/2025"},
	}})

	res, err := testPipeline(1).Run(context.Background(), []Upload{{Name: "x.xlsx", Data: noCustomer}})
	var sme *SchemaMismatchError
	if !errors.As(err, &sme) {
		t.Fatalf("expected *SchemaMismatchError, got %v", err)
	}
	if len(sme.Missing) != 1 || sme.Missing[0] != ColumnCustomerNo {
		t.Errorf("expected customer_no to be reported, got %v", sme.Missing)
	}
	if res == nil || !res.Files[0].OK() {
		t.Fatalf("file report should be successful, got %+v", res)
	}
	if res.Merged.Len() != 0 || res.Unique.Len() != 0 {
		t.Error("no artifacts expected on schema mismatch")
	}
}

func TestPipeline_UnparseableDateKept(t *testing.T) {
	data := encryptedWorkbook(t, testSheet{name: "Sheet1", rows: [][]interface{}{
		{"customer_no", "period_call"},
		{5, "kemarin"},
		{6, "01/03/2025"},
		{6, "bukan tanggal"},
	}})

	res, err := testPipeline(1).Run(context.Background(), []Upload{{Name: "e.xlsx", Data: data}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stats != (Stats{Before: 3, After: 2, Removed: 1}) {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
	last := res.Merged.Rows[res.Merged.Len()-1]
	if !last.Get(ColumnPeriodCall).IsMissing() {
		t.Errorf("rows without a date must sort last, got %v", last.Get(ColumnPeriodCall))
	}

	kept := map[string]Value{}
	for _, row := range res.Unique.Rows {
		kept[row.Get(ColumnCustomerNo).Key()] = row.Get(ColumnPeriodCall)
	}
	if v, ok := kept[num(5).Key()]; !ok || !v.IsMissing() {
		t.Errorf("customer 5 must be kept with a missing date, got %v (present=%v)", v, ok)
	}
	if v := kept[num(6).Key()]; !v.Equal(Date(day(2025, 3, 1))) {
		t.Errorf("customer 6 must keep the dated row, got %v", v)
	}
}

func TestPipeline_CancelledContext(t *testing.T) {
	file1, _ := scenarioFiles(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testPipeline(1).Run(ctx, []Upload{{Name: "file1.xlsx", Data: file1}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
