package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryabkov82/crm-merge/internal/config"
	"github.com/ryabkov82/crm-merge/internal/merger"
	"github.com/ryabkov82/crm-merge/internal/report"
	"github.com/ryabkov82/crm-merge/internal/web"
)

type Output struct {
	Success     bool          `json:"success"`
	RunID       string        `json:"run_id,omitempty"`
	OutputFiles []string      `json:"output_files,omitempty"`
	Log         []string      `json:"log,omitempty"`
	Stats       *merger.Stats `json:"stats,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    string        `json:"duration"`
	RowCount    int64         `json:"row_count,omitempty"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "crm-merge",
		Short:        "Объединение защищенных паролем выгрузок CRM с отбором последней записи по клиенту",
		SilenceUsage: true,
	}
	root.AddCommand(newMergeCmd(), newServeCmd())
	return root
}

func newLogger() *slog.Logger {
	// stdout занят JSON-результатом
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func newMergeCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Объединить все .xlsx из папки",
		RunE: func(cmd *cobra.Command, args []string) error {
			runMerge(cmd.Context(), cfg, os.Stdout, newLogger())
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.InputDir, "dir", cfg.InputDir, "папка с исходными XLSX файлами")
	cmd.Flags().StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "базовое имя результирующих файлов")
	cmd.Flags().StringVar(&cfg.Password, "password", cfg.Password, "пароль файлов Excel (общий для всех файлов)")
	cmd.Flags().StringVar(&cfg.Sheet, "sheet", cfg.Sheet, "лист для всех файлов: индекс или имя (0, LOAD, name:2024)")
	cmd.Flags().StringToStringVar(&cfg.SheetOverrides, "sheet-for", nil, "лист для отдельного файла: имя.xlsx=LOAD или имя.xlsx=name:2024")
	cmd.Flags().StringVar(&cfg.StagingDir, "staging-dir", cfg.StagingDir, "папка для временных файлов расшифровки")
	cmd.Flags().Int64Var(&cfg.MaxRowPerFile, "max-row", cfg.MaxRowPerFile, "максимальное количество строк в объединенном файле")
	cmd.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "количество файлов, обрабатываемых одновременно")

	return cmd
}

func runMerge(ctx context.Context, cfg config.Config, w io.Writer, logger *slog.Logger) {
	start := time.Now()

	fail := func(format string, err error, res *merger.Result) {
		out := Output{
			Success:  false,
			Error:    fmt.Sprintf(format, err),
			Duration: time.Since(start).String(),
		}
		if res != nil {
			out.RunID = res.RunID
			out.Log = report.FileLines(res.Files)
		}
		emitJSON(w, out)
	}

	if err := cfg.ValidateMerge(); err != nil {
		fail("Ошибка конфигурации: %v", err, nil)
		return
	}

	sheet, overrides := cfg.Selectors()
	uploads, err := merger.LoadDir(cfg.InputDir, sheet, overrides)
	if err != nil {
		fail("Ошибка чтения папки: %v", err, nil)
		return
	}

	res, err := merger.NewPipeline(cfg.Options(""), logger).Run(ctx, uploads)
	if err != nil {
		fail("Ошибка объединения: %v", err, res)
		return
	}

	var outputFiles []string
	for _, part := range []struct {
		name string
		rs   merger.RecordSet
	}{
		{merger.MergedFileName, res.Merged},
		{merger.UniqueFileName, res.Unique},
	} {
		pw := &merger.PartWriter{
			OutputPath:    outputPath(cfg.OutputPath, part.name),
			MaxRowPerFile: cfg.MaxRowPerFile,
		}
		files, err := pw.Write(part.rs)
		if err != nil {
			fail("Ошибка записи результата: %v", err, res)
			return
		}
		outputFiles = append(outputFiles, files...)
	}

	emitJSON(w, Output{
		Success:     true,
		RunID:       res.RunID,
		OutputFiles: outputFiles,
		Log:         report.FileLines(res.Files),
		Stats:       &res.Stats,
		RowCount:    int64(res.Stats.After),
		Duration:    time.Since(start).String(),
	})
}

func newServeCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить веб-форму загрузки",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateServe(); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			srv, err := web.New(cfg, newLogger())
			if err != nil {
				return fmt.Errorf("build server: %w", err)
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "адрес HTTP-сервера")
	cmd.Flags().StringVar(&cfg.Password, "password", cfg.Password, "пароль по умолчанию, если в форме не указан")
	cmd.Flags().StringVar(&cfg.StagingDir, "staging-dir", cfg.StagingDir, "папка для временных файлов расшифровки")
	cmd.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "количество файлов, обрабатываемых одновременно")
	cmd.Flags().Int64Var(&cfg.MaxUploadBytes, "max-upload", cfg.MaxUploadBytes, "максимальный размер загрузки в байтах")
	cmd.Flags().DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "таймаут обработки запроса")

	return cmd
}

// outputPath: ./merged.xlsx + all_merged_data.xlsx -> ./merged_all_merged_data.xlsx
func outputPath(out, name string) string {
	return strings.TrimSuffix(out, ".xlsx") + "_" + name
}

func emitJSON(w io.Writer, out Output) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Ошибка вывода JSON: %v", err)
	}
}
