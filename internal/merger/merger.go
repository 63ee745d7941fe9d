package merger

// Merge объединяет наборы в порядке поступления. Схема результата: объединение
// колонок в порядке первого появления; недостающие значения остаются пропусками.
func Merge(sets ...RecordSet) RecordSet {
	var out RecordSet
	seen := make(map[string]bool)
	total := 0
	for _, rs := range sets {
		for _, col := range rs.Columns {
			if !seen[col] {
				seen[col] = true
				out.Columns = append(out.Columns, col)
			}
		}
		total += len(rs.Rows)
	}

	out.Rows = make([]Row, 0, total)
	for _, rs := range sets {
		out.Rows = append(out.Rows, rs.Rows...)
	}
	return out
}

// CheckSchema сообщает об отсутствии period_call или customer_no
func CheckSchema(rs RecordSet) error {
	var missing []string
	for _, col := range []string{ColumnPeriodCall, ColumnCustomerNo} {
		if !rs.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaMismatchError{Missing: missing}
	}
	return nil
}

// TagSource добавляет колонку source_file с именем исходного файла
func TagSource(rs RecordSet, fileName string) RecordSet {
	return rs.WithColumn(ColumnSourceFile, String(fileName))
}
