package merger

import (
	"strconv"
	"strings"
)

// SheetLoad: именованный лист, который выгружается из CRM
const SheetLoad = "LOAD"

// SheetSelector указывает лист по имени или по индексу (с нуля).
// Нулевое значение означает первый лист книги.
type SheetSelector struct {
	Name  string
	Index int
}

func SheetIndex(i int) SheetSelector { return SheetSelector{Index: i} }

func SheetName(name string) SheetSelector { return SheetSelector{Name: name} }

// Префикс для листов, имя которых состоит из цифр: "name:2024"
const sheetNamePrefix = "name:"

// ParseSheetSelector: пустая строка и неотрицательные числа дают индекс,
// остальное имя листа. "name:2024" выбирает лист с именем "2024".
func ParseSheetSelector(s string) SheetSelector {
	s = strings.TrimSpace(s)
	if name, ok := strings.CutPrefix(s, sheetNamePrefix); ok && name != "" {
		return SheetName(name)
	}
	if s == "" {
		return SheetSelector{}
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 {
		return SheetIndex(i)
	}
	return SheetName(s)
}

func (s SheetSelector) IsName() bool { return s.Name != "" }

func (s SheetSelector) String() string {
	if s.IsName() {
		return s.Name
	}
	return strconv.Itoa(s.Index)
}
