package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ryabkov82/crm-merge/internal/merger"
)

type Config struct {
	InputDir       string
	OutputPath     string
	Password       string
	Sheet          string            // "0" или "LOAD" для всех файлов
	SheetOverrides map[string]string // имя файла -> лист
	StagingDir     string
	MaxRowPerFile  int64 // максимальное количество строк в объединенном файле
	Workers        int
	HTTPAddr       string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Load заполняет значения по умолчанию и переменные окружения CRMMERGE_*.
// Флаги командной строки накладываются поверх.
func Load() Config {
	return Config{
		OutputPath:     getEnv("CRMMERGE_OUT", "./merged.xlsx"),
		Password:       strings.TrimSpace(os.Getenv("CRMMERGE_PASSWORD")),
		Sheet:          getEnv("CRMMERGE_SHEET", "0"),
		StagingDir:     strings.TrimSpace(os.Getenv("CRMMERGE_STAGING_DIR")),
		MaxRowPerFile:  int64(getIntEnv("CRMMERGE_MAX_ROW", 600000)),
		Workers:        getIntEnv("CRMMERGE_WORKERS", 1),
		HTTPAddr:       getEnv("CRMMERGE_HTTP_ADDR", ":8080"),
		MaxUploadBytes: int64(getIntEnv("CRMMERGE_MAX_UPLOAD_BYTES", 64<<20)),
		RequestTimeout: getDurationEnv("CRMMERGE_REQUEST_TIMEOUT", 5*time.Minute),
	}
}

func (c *Config) ValidateMerge() error {
	if c.InputDir == "" {
		return errors.New("необходимо указать папку с файлами через --dir")
	}
	if c.Password == "" {
		return errors.New("необходимо указать пароль через --password или CRMMERGE_PASSWORD")
	}
	if c.MaxRowPerFile < 0 {
		return fmt.Errorf("недопустимое значение --max-row: %d", c.MaxRowPerFile)
	}

	// Нормализация путей
	c.InputDir = filepath.Clean(c.InputDir)
	c.OutputPath = filepath.Clean(c.OutputPath)
	return c.validateCommon()
}

func (c *Config) ValidateServe() error {
	if c.HTTPAddr == "" {
		return errors.New("необходимо указать адрес через --addr")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("недопустимый размер загрузки: %d", c.MaxUploadBytes)
	}
	return c.validateCommon()
}

func (c *Config) validateCommon() error {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.StagingDir != "" {
		info, err := os.Stat(c.StagingDir)
		if err != nil {
			return fmt.Errorf("временная папка недоступна: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s не является папкой", c.StagingDir)
		}
	}
	return nil
}

// Options возвращает параметры конвейера для одного запуска
func (c Config) Options(password string) merger.Options {
	if password == "" {
		password = c.Password
	}
	return merger.Options{
		Password:   password,
		StagingDir: c.StagingDir,
		Workers:    c.Workers,
	}
}

// Selectors возвращает лист по умолчанию и переопределения по файлам
func (c Config) Selectors() (merger.SheetSelector, map[string]merger.SheetSelector) {
	overrides := make(map[string]merger.SheetSelector, len(c.SheetOverrides))
	for name, sheet := range c.SheetOverrides {
		overrides[name] = merger.ParseSheetSelector(sheet)
	}
	return merger.ParseSheetSelector(c.Sheet), overrides
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getIntEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
