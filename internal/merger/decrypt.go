package merger

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/richardlehane/mscfb"
	"github.com/xuri/excelize/v2"
)

var (
	ErrNoPassword    = errors.New("пароль не задан")
	ErrNotEncrypted  = errors.New("файл не является зашифрованной книгой Excel")
	ErrWrongPassword = errors.New("неверный пароль")
)

// Decryptor снимает защиту паролем с книги Excel (ECMA-376, agile/standard).
// Если задан StagingDir, файл перед расшифровкой сохраняется во временную
// папку, которая удаляется при любом исходе.
type Decryptor struct {
	StagingDir string
}

// Decrypt выполняет одну попытку расшифровки, повторов нет
func (d Decryptor) Decrypt(raw []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, &DecryptionError{Err: ErrNoPassword}
	}

	var src io.ReaderAt = bytes.NewReader(raw)
	if d.StagingDir != "" {
		dir, err := os.MkdirTemp(d.StagingDir, "decrypt-*")
		if err != nil {
			return nil, fmt.Errorf("ошибка создания временной папки: %w", err)
		}
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "upload.xlsx")
		if err := os.WriteFile(path, raw, 0o600); err != nil {
			return nil, fmt.Errorf("ошибка сохранения временного файла: %w", err)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия временного файла: %w", err)
		}
		defer f.Close()
		src = f
	}

	if err := probeContainer(src); err != nil {
		return nil, &DecryptionError{Err: err}
	}

	payload, err := io.ReadAll(io.NewSectionReader(src, 0, int64(len(raw))))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}

	out, err := excelize.Decrypt(payload, &excelize.Options{Password: password})
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}

	// При неверном пароле расшифровка не падает, а выдает мусор вместо zip-пакета
	if !isOOXMLPackage(out) {
		return nil, &DecryptionError{Err: ErrWrongPassword}
	}

	return out, nil
}

// probeContainer проверяет, что файл является составным документом OLE с потоками шифрования
func probeContainer(ra io.ReaderAt) error {
	doc, err := mscfb.New(ra)
	if err != nil {
		return ErrNotEncrypted
	}

	var hasInfo, hasPackage bool
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "EncryptionInfo":
			hasInfo = true
		case "EncryptedPackage":
			hasPackage = true
		}
	}
	if !hasInfo || !hasPackage {
		return ErrNotEncrypted
	}
	return nil
}

func isOOXMLPackage(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name == "[Content_Types].xml" {
			return true
		}
	}
	return false
}
