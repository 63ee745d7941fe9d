package report

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ryabkov82/crm-merge/internal/merger"
)

var printer = message.NewPrinter(language.English)

// Count форматирует число с разделителями разрядов: 12345 -> "12,345"
func Count(n int) string {
	return printer.Sprintf("%d", n)
}

type Counters struct {
	Before  string
	After   string
	Removed string
}

func FormatStats(s merger.Stats) Counters {
	return Counters{
		Before:  Count(s.Before),
		After:   Count(s.After),
		Removed: Count(s.Removed),
	}
}

// FileLines формирует журнал обработки: по строке на файл, для успешных еще число строк
func FileLines(files []merger.FileReport) []string {
	lines := make([]string, 0, len(files)*2)
	for _, fr := range files {
		if !fr.OK() {
			lines = append(lines, "❌ "+fr.Err.Error())
			continue
		}
		lines = append(lines,
			printer.Sprintf("✅ Прочитан: %s (лист: %s)", fr.Name, fr.Sheet),
			printer.Sprintf("   Всего строк: %d", fr.Rows))
	}
	return lines
}

func Dates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(time.DateOnly)
	}
	return out
}
