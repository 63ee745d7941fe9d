package web

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ryabkov82/crm-merge/internal/merger"
	"github.com/ryabkov82/crm-merge/internal/report"
)

const (
	previewRows = 10
	xlsxMIME    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type formPage struct {
	SheetLoad string
}

type download struct {
	Name    string
	Caption string
	Href    template.URL
}

type resultPage struct {
	RunID     string
	Log       []string
	Error     string
	Counters  report.Counters
	Dates     []string
	Headers   []string
	Preview   [][]string
	Downloads []download
}

// разобранная форма загрузки
type processRequest struct {
	Password string
	Uploads  []merger.Upload
}

func (s *Server) handleHealth(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleForm(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache")
	s.render(w, "upload.html", formPage{SheetLoad: merger.SheetLoad})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseForm(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page := resultPage{}
	res, err := merger.NewPipeline(s.cfg.Options(req.Password), s.log).Run(r.Context(), req.Uploads)
	if res != nil {
		page.RunID = res.RunID
		page.Log = report.FileLines(res.Files)
	}
	if err != nil {
		page.Error = err.Error()
		s.render(w, "result.html", page)
		return
	}

	page.Counters = report.FormatStats(res.Stats)
	page.Dates = report.Dates(res.Dates)
	page.Headers, page.Preview = preview(res.Unique, previewRows)

	artifacts, err := encodeArtifacts(res)
	if err != nil {
		s.log.Error("ошибка формирования файлов", slog.String("run_id", res.RunID), slog.Any("error", err))
		http.Error(w, "Failed to build downloads", http.StatusInternalServerError)
		return
	}
	page.Downloads = []download{
		{Name: merger.UniqueFileName, Caption: "Уникальные клиенты (последние записи)", Href: dataURL(artifacts[merger.UniqueFileName])},
		{Name: merger.MergedFileName, Caption: "Все объединенные данные", Href: dataURL(artifacts[merger.MergedFileName])},
	}
	s.render(w, "result.html", page)
}

type apiFile struct {
	Name  string `json:"name"`
	Sheet string `json:"sheet"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

type apiResponse struct {
	RunID     string            `json:"run_id,omitempty"`
	Files     []apiFile         `json:"files"`
	Stats     *merger.Stats     `json:"stats,omitempty"`
	Dates     []string          `json:"dates,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (s *Server) handleAPIProcess(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := merger.NewPipeline(s.cfg.Options(req.Password), s.log).Run(r.Context(), req.Uploads)
	if res == nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := apiResponse{RunID: res.RunID, Files: make([]apiFile, len(res.Files))}
	for i, fr := range res.Files {
		resp.Files[i] = apiFile{Name: fr.Name, Sheet: fr.Sheet.String(), Rows: fr.Rows}
		if fr.Err != nil {
			resp.Files[i].Error = fr.Err.Error()
		}
	}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	artifacts, err := encodeArtifacts(res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Stats = &res.Stats
	resp.Dates = report.Dates(res.Dates)
	resp.Artifacts = make(map[string]string, len(artifacts))
	for name, data := range artifacts {
		resp.Artifacts[name] = base64.StdEncoding.EncodeToString(data)
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseForm читает поля password, sheet ("0" или "LOAD"), sheet_for
// (строки вида "файл.xlsx=LOAD") и файлы files.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) (processRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return processRequest{}, fmt.Errorf("ошибка разбора формы: %w", err)
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return processRequest{}, errors.New("не выбрано ни одного файла")
	}

	sheet := merger.ParseSheetSelector(r.FormValue("sheet"))
	overrides := parseOverrides(r.MultipartForm.Value["sheet_for"])

	req := processRequest{Password: r.FormValue("password")}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return processRequest{}, fmt.Errorf("ошибка чтения файла %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return processRequest{}, fmt.Errorf("ошибка чтения файла %s: %w", fh.Filename, err)
		}

		sel := sheet
		if o, ok := overrides[fh.Filename]; ok {
			sel = o
		}
		req.Uploads = append(req.Uploads, merger.Upload{Name: fh.Filename, Data: data, Sheet: sel})
	}
	return req, nil
}

func parseOverrides(values []string) map[string]merger.SheetSelector {
	out := make(map[string]merger.SheetSelector)
	for _, v := range values {
		for _, line := range strings.Split(v, "\n") {
			name, sheet, ok := strings.Cut(line, "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				continue
			}
			out[name] = merger.ParseSheetSelector(sheet)
		}
	}
	return out
}

func encodeArtifacts(res *merger.Result) (map[string][]byte, error) {
	out := make(map[string][]byte, 2)
	for name, rs := range map[string]merger.RecordSet{
		merger.MergedFileName: res.Merged,
		merger.UniqueFileName: res.Unique,
	} {
		var buf bytes.Buffer
		if err := merger.WriteWorkbook(&buf, rs, merger.DefaultSheet); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = buf.Bytes()
	}
	return out, nil
}

func dataURL(data []byte) template.URL {
	return template.URL("data:" + xlsxMIME + ";base64," + base64.StdEncoding.EncodeToString(data))
}

func preview(rs merger.RecordSet, n int) ([]string, [][]string) {
	if n > rs.Len() {
		n = rs.Len()
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		vals := rs.Values(i)
		rows[i] = make([]string, len(vals))
		for j, v := range vals {
			rows[i][j] = v.String()
		}
	}
	return rs.Columns, rows
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error("ошибка шаблона", slog.String("template", name), slog.Any("error", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
