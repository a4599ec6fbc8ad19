package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/file-insights/internal/config"
	"github.com/kirillkom/file-insights/internal/core/domain"
	"github.com/kirillkom/file-insights/internal/core/ports"
	"github.com/kirillkom/file-insights/internal/infrastructure/export"
	"github.com/kirillkom/file-insights/internal/observability/metrics"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
	formatXLSX = "xlsx"
	formatText = "txt"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Router struct {
	cfg      config.Config
	analyzer ports.BatchAnalyzer
	catalog  ports.TaskCatalog
	metrics  *metrics.HTTPServerMetrics
	contract *apiContract
	logger   *slog.Logger
}

// NewRouter loads the embedded OpenAPI contract and fails if it is invalid. httpMetrics may be nil.
func NewRouter(
	cfg config.Config,
	analyzer ports.BatchAnalyzer,
	catalog ports.TaskCatalog,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	contract, err := loadAPIContract(context.Background())
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:      cfg,
		analyzer: analyzer,
		catalog:  catalog,
		metrics:  httpMetrics,
		contract: contract,
		logger:   logger,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	mux.HandleFunc("GET /v1/tasks", rt.listTasks)
	mux.HandleFunc("POST /v1/analyze", rt.analyze)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "api_version": rt.contract.version()})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

type taskListResponse struct {
	Tasks []domain.TaskDescriptor `json:"tasks"`
}

func (rt *Router) listTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, taskListResponse{Tasks: rt.catalog.List()})
}

func (rt *Router) analyze(w http.ResponseWriter, r *http.Request) {
	if err := rt.contract.validateRequest(r); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatJSON
	}

	maxBytes := rt.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	// maxMemory equals the body cap so uploaded parts are never spooled to disk.
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxBytes))
			return
		}
		writeError(w, r, http.StatusBadRequest, "multipart/form-data body is required")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	credential := credentialFromRequest(r)
	if credential == "" {
		writeError(w, r, http.StatusBadRequest, "credential is required: send Authorization: Bearer <key> or the api_key field")
		return
	}

	taskName := strings.TrimSpace(r.FormValue("task"))
	if taskName == "" {
		writeError(w, r, http.StatusBadRequest, "multipart field 'task' is required")
		return
	}
	overrides, err := overridesFromForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	task, err := rt.catalog.Resolve(taskName, overrides)
	if err != nil {
		writeError(w, r, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	files, err := rt.readFiles(r.MultipartForm.File["files"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(files) == 0 {
		writeError(w, r, http.StatusBadRequest, "multipart field 'files' is required")
		return
	}

	report, err := rt.analyzer.Analyze(r.Context(), files, task, credential)
	if err != nil {
		writeError(w, r, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	rt.writeReport(w, r, format, report)
}

func (rt *Router) readFiles(headers []*multipart.FileHeader) ([]domain.UploadedFile, error) {
	files := make([]domain.UploadedFile, 0, len(headers))
	for _, header := range headers {
		data, err := readPart(header)
		if err != nil {
			return nil, fmt.Errorf("read file %q: %w", header.Filename, err)
		}
		if rt.metrics != nil {
			rt.metrics.ObserveUpload(len(data))
		}
		files = append(files, domain.UploadedFile{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (rt *Router) writeReport(w http.ResponseWriter, r *http.Request, format string, report domain.BatchReport) {
	var (
		contentType string
		write       func(io.Writer, domain.BatchReport) error
	)
	switch format {
	case formatCSV:
		contentType, write = "text/csv; charset=utf-8", export.WriteCSV
	case formatXLSX:
		contentType, write = xlsxContentType, export.WriteXLSX
	case formatText:
		contentType, write = "text/plain; charset=utf-8", export.WriteInsightsText
	default:
		writeJSON(w, http.StatusOK, report)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "insights-"+report.BatchID+"."+format))
	w.WriteHeader(http.StatusOK)
	if err := write(w, report); err != nil {
		rt.logger.Error("report.write.failed",
			"request_id", requestIDFromContext(r.Context()),
			"batch_id", report.BatchID,
			"format", format,
			"error", err,
		)
	}
}

func credentialFromRequest(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	return strings.TrimSpace(r.FormValue("api_key"))
}

func overridesFromForm(r *http.Request) (ports.TaskOverrides, error) {
	overrides := ports.TaskOverrides{
		Model:        strings.TrimSpace(r.FormValue("model")),
		Categories:   splitList(r.FormValue("categories")),
		Criteria:     splitList(r.FormValue("criteria")),
		Instructions: strings.TrimSpace(r.FormValue("instructions")),
	}
	if raw := strings.TrimSpace(r.FormValue("max_tokens")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return ports.TaskOverrides{}, fmt.Errorf("max_tokens must be a positive integer")
		}
		overrides.MaxTokens = n
	}
	return overrides, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, RequestID: requestIDFromContext(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
