package merger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Имена выгружаемых файлов
const (
	MergedFileName = "all_merged_data.xlsx"
	UniqueFileName = "filtered_unique_customers.xlsx"
	DefaultSheet   = "Sheet1"
)

type sheetWriter struct {
	File         *excelize.File
	StreamWriter *excelize.StreamWriter
	Sheet        string
	HeaderStyle  int
	DateStyle    int
	RowCounter   int64
}

func newSheetWriter(sheet string) (*sheetWriter, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f := excelize.NewFile()
	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("ошибка переименования листа: %w", err)
		}
	}

	sw := &sheetWriter{File: f, Sheet: sheet}
	var err error
	if sw.HeaderStyle, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ошибка создания стиля заголовков: %w", err)
	}
	if sw.DateStyle, err = f.NewStyle(&excelize.Style{NumFmt: 14}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ошибка создания стиля дат: %w", err)
	}
	if sw.StreamWriter, err = f.NewStreamWriter(sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ошибка создания StreamWriter: %w", err)
	}
	return sw, nil
}

func (sw *sheetWriter) writeHeader(columns []string) error {
	sw.RowCounter = 1
	headerRow := make([]interface{}, len(columns))
	for i, h := range columns {
		headerRow[i] = excelize.Cell{Value: h, StyleID: sw.HeaderStyle}
	}
	if err := sw.StreamWriter.SetRow("A1", headerRow); err != nil {
		return fmt.Errorf("ошибка записи заголовков: %w", err)
	}
	sw.RowCounter++
	return nil
}

func (sw *sheetWriter) writeRow(values []Value) error {
	rowData := make([]interface{}, len(values))
	for i, v := range values {
		switch v.Kind {
		case KindMissing:
			rowData[i] = nil
		case KindDate:
			rowData[i] = excelize.Cell{Value: v.Date, StyleID: sw.DateStyle}
		default:
			rowData[i] = v.Cell()
		}
	}
	cell := fmt.Sprintf("A%d", sw.RowCounter)
	if err := sw.StreamWriter.SetRow(cell, rowData); err != nil {
		return fmt.Errorf("ошибка записи строки: %w", err)
	}
	sw.RowCounter++
	return nil
}

// WriteWorkbook записывает набор в книгу с одним листом и строкой заголовков
func WriteWorkbook(w io.Writer, rs RecordSet, sheet string) error {
	sw, err := newSheetWriter(sheet)
	if err != nil {
		return err
	}
	defer sw.File.Close()

	if err := sw.writeHeader(rs.Columns); err != nil {
		return err
	}
	for i := range rs.Rows {
		if err := sw.writeRow(rs.Values(i)); err != nil {
			return err
		}
	}
	if err := sw.StreamWriter.Flush(); err != nil {
		return fmt.Errorf("ошибка финального flush: %w", err)
	}
	if err := sw.File.Write(w); err != nil {
		return fmt.Errorf("ошибка записи книги: %w", err)
	}
	return nil
}

// PartWriter пишет набор в файлы <base>_partN.xlsx, начиная новый файл
// по достижении MaxRowPerFile строк (включая заголовок). 0 отключает ограничение.
type PartWriter struct {
	OutputPath    string
	MaxRowPerFile int64
	Sheet         string

	current     *sheetWriter
	columns     []string
	partCounter int
	outputFiles []string
}

func (pw *PartWriter) Write(rs RecordSet) ([]string, error) {
	pw.columns = rs.Columns
	pw.partCounter = 1
	pw.outputFiles = nil

	// Удаляем старые файлы перед началом
	if err := removeExistingPartFiles(pw.OutputPath); err != nil {
		return nil, err
	}

	if err := pw.newOutput(); err != nil {
		return nil, err
	}
	for i := range rs.Rows {
		if pw.MaxRowPerFile > 0 && pw.current.RowCounter > pw.MaxRowPerFile {
			if err := pw.newOutput(); err != nil {
				return nil, err
			}
		}
		if err := pw.current.writeRow(rs.Values(i)); err != nil {
			pw.abort()
			return nil, err
		}
	}

	if err := pw.finishPart(); err != nil {
		return nil, err
	}
	return pw.outputFiles, nil
}

func (pw *PartWriter) newOutput() error {
	// Завершение текущего файла
	if pw.current != nil {
		if err := pw.finishPart(); err != nil {
			return err
		}
		pw.partCounter++
	}

	sw, err := newSheetWriter(pw.Sheet)
	if err != nil {
		return err
	}
	pw.current = sw
	if err := sw.writeHeader(pw.columns); err != nil {
		pw.abort()
		return err
	}
	return nil
}

func (pw *PartWriter) finishPart() error {
	defer pw.abort()
	if err := pw.current.StreamWriter.Flush(); err != nil {
		return fmt.Errorf("ошибка финального flush: %w", err)
	}
	fileName := partFileName(pw.OutputPath, pw.partCounter)
	if dir := filepath.Dir(fileName); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ошибка создания папки %s: %w", dir, err)
		}
	}
	if err := pw.current.File.SaveAs(fileName); err != nil {
		return fmt.Errorf("ошибка сохранения файла: %w", err)
	}
	pw.outputFiles = append(pw.outputFiles, fileName)
	return nil
}

func (pw *PartWriter) abort() {
	if pw.current != nil {
		_ = pw.current.File.Close()
	}
}

func partFileName(outputPath string, part int) string {
	return fmt.Sprintf("%s_part%d.xlsx", strings.TrimSuffix(outputPath, ".xlsx"), part)
}

func removeExistingPartFiles(outputPath string) error {
	pattern := fmt.Sprintf("%s_part*.xlsx", strings.TrimSuffix(outputPath, ".xlsx"))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("ошибка поиска файлов по шаблону: %w", err)
	}

	for _, file := range files {
		if err := os.Remove(file); err != nil {
			return fmt.Errorf("ошибка удаления файла %s: %w", file, err)
		}
	}
	return nil
}
