package merger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Upload: один загруженный файл
type Upload struct {
	Name  string
	Data  []byte
	Sheet SheetSelector
}

// Options заменяет глобальные настройки: общий пароль, временная папка,
// число файлов, обрабатываемых одновременно.
type Options struct {
	Password   string
	StagingDir string
	Workers    int
}

type FileReport struct {
	Name  string
	Sheet SheetSelector
	Rows  int
	Err   error
}

func (r FileReport) OK() bool { return r.Err == nil }

type Result struct {
	RunID  string
	Files  []FileReport
	Merged RecordSet // все строки, отсортированные по period_call
	Unique RecordSet
	Stats  Stats
	Dates  []time.Time
}

type Pipeline struct {
	opts      Options
	decryptor Decryptor
	log       *slog.Logger
}

func NewPipeline(opts Options, logger *slog.Logger) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		opts:      opts,
		decryptor: Decryptor{StagingDir: opts.StagingDir},
		log:       logger,
	}
}

// Run обрабатывает файлы независимо друг от друга, затем объединяет их и
// оставляет последнюю запись на клиента. Ошибка одного файла попадает в его
// FileReport и не останавливает остальные. Если не прочитан ни один файл,
// возвращается ErrNoData, при нехватке колонок *SchemaMismatchError;
// в обоих случаях Result содержит отчеты по файлам.
func (p *Pipeline) Run(ctx context.Context, uploads []Upload) (*Result, error) {
	res := &Result{
		RunID: uuid.NewString(),
		Files: make([]FileReport, len(uploads)),
	}
	log := p.log.With(slog.String("run_id", res.RunID))

	sets := make([]RecordSet, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, u := range uploads {
		i, u := i, u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rs, err := p.ProcessFile(u)
			res.Files[i] = FileReport{Name: u.Name, Sheet: u.Sheet, Rows: rs.Len(), Err: err}
			if err != nil {
				log.Warn("файл пропущен", slog.String("file", u.Name), slog.String("sheet", u.Sheet.String()), slog.Any("error", err))
				return nil
			}
			sets[i] = rs
			log.Info("файл прочитан", slog.String("file", u.Name), slog.String("sheet", u.Sheet.String()), slog.Int("rows", rs.Len()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ok []RecordSet
	for i, fr := range res.Files {
		if fr.OK() {
			ok = append(ok, sets[i])
		}
	}
	if len(ok) == 0 {
		return res, ErrNoData
	}

	merged := Merge(ok...)
	if err := CheckSchema(merged); err != nil {
		log.Warn("объединение невозможно", slog.Any("error", err))
		return res, err
	}

	d := Deduplicate(merged)
	res.Merged = d.Sorted
	res.Unique = d.Unique
	res.Stats = d.Stats
	res.Dates = PeriodDates(d.Sorted)

	log.Info("объединение завершено",
		slog.Int("rows_before", d.Stats.Before),
		slog.Int("rows_after", d.Stats.After),
		slog.Int("duplicates_removed", d.Stats.Removed))
	return res, nil
}

// ProcessFile: расшифровка, чтение листа, нормализация колонок, метка источника
func (p *Pipeline) ProcessFile(u Upload) (RecordSet, error) {
	plain, err := p.decryptor.Decrypt(u.Data, p.opts.Password)
	if err != nil {
		return RecordSet{}, withFile(err, u.Name)
	}
	rs, err := ReadSheet(plain, u.Sheet)
	if err != nil {
		return RecordSet{}, withFile(err, u.Name)
	}
	return TagSource(NormalizeColumns(rs), u.Name), nil
}

func withFile(err error, name string) error {
	var de *DecryptionError
	if errors.As(err, &de) {
		de.File = name
		return err
	}
	var se *SheetReadError
	if errors.As(err, &se) {
		se.File = name
		return err
	}
	return &fileError{file: name, err: err}
}

type fileError struct {
	file string
	err  error
}

func (e *fileError) Error() string { return e.file + ": " + e.err.Error() }

func (e *fileError) Unwrap() error { return e.err }
