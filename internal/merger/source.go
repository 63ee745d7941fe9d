package merger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadDir собирает *.xlsx из папки (рекурсивно) в порядке имен.
// Лист берется из overrides по имени файла, иначе используется sheet.
func LoadDir(dir string, sheet SheetSelector, overrides map[string]SheetSelector) ([]Upload, error) {
	var paths []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xlsx") {
			return nil
		}
		// Временные файлы блокировки Excel
		if strings.HasPrefix(info.Name(), "~$") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка при обходе папки: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("в папке %s нет файлов .xlsx", dir)
	}
	sort.Strings(paths)

	uploads := make([]Upload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
		}
		name := filepath.Base(path)
		sel := sheet
		if o, ok := overrides[name]; ok {
			sel = o
		}
		uploads = append(uploads, Upload{Name: name, Data: data, Sheet: sel})
	}
	return uploads, nil
}
