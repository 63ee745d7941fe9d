package merger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoData возвращается, когда ни один файл не удалось прочитать
var ErrNoData = errors.New("ни один файл не был успешно прочитан")

// DecryptionError: неверный пароль или файл не является зашифрованной книгой
type DecryptionError struct {
	File string
	Err  error
}

func (e *DecryptionError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("ошибка расшифровки: %v", e.Err)
	}
	return fmt.Sprintf("ошибка расшифровки %s: %v", e.File, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// SheetReadError: лист не найден или содержимое не является таблицей
type SheetReadError struct {
	File  string
	Sheet SheetSelector
	Err   error
}

func (e *SheetReadError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("ошибка чтения листа %s: %v", e.Sheet, e.Err)
	}
	return fmt.Sprintf("ошибка чтения листа %s в %s: %v", e.Sheet, e.File, e.Err)
}

func (e *SheetReadError) Unwrap() error { return e.Err }

// SchemaMismatchError: после объединения отсутствуют обязательные колонки
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("после объединения не найдены колонки: %s; проверьте единообразие названий колонок",
		strings.Join(e.Missing, ", "))
}
