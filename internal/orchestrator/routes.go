package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfdocx/internal/extract"
	"github.com/local/pdfdocx/internal/filetype"
	"github.com/local/pdfdocx/internal/metrics"
	"github.com/local/pdfdocx/internal/progress"
	"github.com/local/pdfdocx/internal/storage"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Routes returns the service router.
func (o *Orchestrator) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", o.handleStatus)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", o.handleExtract)
		r.Get("/jobs/{id}", o.handleJob)
		r.Get("/jobs/{id}/result", o.handleResult)
		r.Delete("/jobs/{id}", o.handleCancel)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

type extractRequest struct {
	FileURL                  string   `json:"file_url"`
	Languages                []string `json:"languages"`
	Profile                  string   `json:"processing_profile"`
	IncludePageBreaks        *bool    `json:"include_page_breaks"`
	IncludeConfidenceMarkers bool     `json:"include_confidence_markers"`
	MinNativeCharsPerPage    *int     `json:"min_native_chars_per_page"`
	Wait                     bool     `json:"wait"`
}

func (req extractRequest) options(defaults extract.Options) extract.Options {
	o := extract.Options{
		Profile:                  extract.Profile(req.Profile),
		Languages:                req.Languages,
		IncludePageBreaks:        true,
		IncludeConfidenceMarkers: req.IncludeConfidenceMarkers,
		MinNativeCharsPerPage:    req.MinNativeCharsPerPage,
	}
	if req.IncludePageBreaks != nil {
		o.IncludePageBreaks = *req.IncludePageBreaks
	}
	if o.Profile == "" {
		o.Profile = defaults.Profile
	}
	if len(o.Languages) == 0 {
		o.Languages = defaults.Languages
	}
	return o
}

type extractResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	TotalPages int    `json:"total_pages,omitempty"`
}

func (o *Orchestrator) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, o.deps.MaxUploadBytes+1<<20)

	var (
		req  extractRequest
		data []byte
		name string
		err  error
	)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data":
		req, data, name, err = o.readMultipart(r)
	case "application/json":
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			err = fmt.Errorf("invalid json: %v", derr)
			break
		}
		if req.FileURL == "" {
			err = errors.New("file_url is required")
			break
		}
		if data, name, err = o.fetchSource(r.Context(), req.FileURL); err != nil {
			err = fmt.Errorf("cannot fetch file_url: %w", err)
		}
	default:
		err = fmt.Errorf("unsupported content type %q", ct)
	}
	if err != nil {
		writeError(w, string(extract.CodeInputInvalid), err.Error())
		return
	}
	if r.URL.Query().Get("wait") == "true" {
		req.Wait = true
	}

	if len(data) == 0 {
		writeError(w, string(extract.CodeInputInvalid), "file is missing or empty")
		return
	}
	if _, ferr := filetype.Check(data); ferr != nil {
		writeError(w, string(extract.CodeInputInvalid), ferr.Error())
		return
	}
	opts, err := req.options(o.deps.Defaults).Resolve(o.deps.Tuning)
	if err != nil {
		writeError(w, string(extract.CodeOf(err)), err.Error())
		return
	}

	in := extract.Input{Name: extract.SafeName(name), Data: data}
	j := o.newJob(in, opts, o.countPages(data))

	if req.Wait {
		o.runInline(w, r, j)
		return
	}
	if err := o.enqueue(r.Context(), j); err != nil {
		log.Error().Err(err).Msg("enqueue failed")
		writeError(w, CodeInternal, "progress store unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, extractResponse{JobID: j.id, Status: progress.StateQueued, TotalPages: j.totalPages})
}

// runInline runs the job inside the request and answers with the document or
// the classified error.
func (o *Orchestrator) runInline(w http.ResponseWriter, r *http.Request, j *job) {
	start := j.start
	_ = o.deps.Status.Set(r.Context(), j.id, progress.Status{
		State: progress.StateQueued, Step: "queued", Start: &start, Metadata: maps.Clone(j.meta),
	})
	ctx, cancel := o.register(r.Context(), j.id)
	defer cancel()
	stop := context.AfterFunc(o.ctx, cancel)
	defer stop()

	res, err := o.run(ctx, j)
	if err != nil {
		code := failureCode(err)
		if extract.IsCancelled(err) {
			code = CodeCancelled
			if timedOut(ctx) {
				code = CodeTimeout
			}
		}
		msg := err.Error()
		var pe *extract.Error
		if errors.As(err, &pe) {
			msg = pe.Message
		}
		writeError(w, code, msg)
		return
	}
	writeDocx(w, j.id, j.input.Name, res.Document)
}

func (o *Orchestrator) readMultipart(r *http.Request) (extractRequest, []byte, string, error) {
	var req extractRequest
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return req, nil, "", fmt.Errorf("invalid multipart form: %v", err)
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		return req, nil, "", errors.New("file is missing or empty")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, o.deps.MaxUploadBytes+1))
	if err != nil {
		return req, nil, "", fmt.Errorf("read upload: %v", err)
	}
	if int64(len(data)) > o.deps.MaxUploadBytes {
		return req, nil, "", errTooLarge
	}

	req.Languages = extract.ParseLanguages(r.FormValue("languages"))
	req.Profile = r.FormValue("processing_profile")
	req.IncludeConfidenceMarkers = formBool(r.FormValue("include_confidence_markers"))
	req.Wait = formBool(r.FormValue("wait"))
	if v := r.FormValue("include_page_breaks"); v != "" {
		b := formBool(v)
		req.IncludePageBreaks = &b
	}
	if v := strings.TrimSpace(r.FormValue("min_native_chars_per_page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, nil, "", errors.New("min_native_chars_per_page must be an integer")
		}
		req.MinNativeCharsPerPage = &n
	}
	return req, data, hdr.Filename, nil
}

func formBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "on" || v == "yes"
}

func (o *Orchestrator) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil {
		writeError(w, CodeInternal, "progress store unavailable")
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("NOT_FOUND", "job not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":     id,
		"success":    st.State == progress.StateSuccess,
		"status":     st.State,
		"progress":   st.Progress,
		"step":       st.Step,
		"message":    st.Message,
		"code":       st.Code,
		"start_time": st.Start,
		"end_time":   st.End,
		"metadata":   st.Metadata,
	})
}

func (o *Orchestrator) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil {
		writeError(w, CodeInternal, "progress store unavailable")
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("NOT_FOUND", "job not found"))
		return
	}
	if st.State != progress.StateSuccess {
		writeJSON(w, http.StatusConflict, map[string]any{"job_id": id, "status": st.State, "progress": st.Progress})
		return
	}
	key, _ := st.Metadata["result_key"].(string)
	if key == "" {
		key = storage.ResultKey(o.deps.ResultPrefix, id)
	}
	data, err := o.deps.Results.Get(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusGone, errorBody("NOT_FOUND", "result no longer available"))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("job_id", id).Msg("result read failed")
		writeError(w, CodeStorageFailed, "result storage unavailable")
		return
	}
	name, _ := st.Metadata["source_name"].(string)
	writeDocx(w, id, name, data)
}

// handleCancel cancels a job that is still running. A finished job is
// forgotten instead: its status and stored result are removed.
func (o *Orchestrator) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil {
		writeError(w, CodeInternal, "progress store unavailable")
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("NOT_FOUND", "job not found"))
		return
	}
	if !st.Terminal() {
		if !o.cancel(id) {
			writeJSON(w, http.StatusConflict, errorBody("NOT_RUNNING", "job is not running on this instance"))
			return
		}
		log.Info().Str("job_id", id).Msg("job cancellation requested")
		writeJSON(w, http.StatusAccepted, map[string]any{"job_id": id, "status": "cancelling"})
		return
	}

	if key, _ := st.Metadata["result_key"].(string); key != "" {
		if err := o.deps.Results.Delete(r.Context(), key); err != nil {
			log.Warn().Err(err).Str("job_id", id).Msg("result delete failed")
		}
	}
	if err := o.deps.Status.Delete(r.Context(), id); err != nil {
		writeError(w, CodeInternal, "progress store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
	if o.deps.Checker == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	s := o.deps.Checker.Summary(r.Context())
	code := http.StatusOK
	if !s.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, s)
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case string(extract.CodeInputInvalid):
		return http.StatusBadRequest
	case string(extract.CodePDFParseFailed):
		return http.StatusUnprocessableEntity
	case string(extract.CodeOCRRuntimeMissing):
		return http.StatusServiceUnavailable
	case CodeCancelled:
		return 499
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(code, msg string) map[string]any {
	return map[string]any{"error": map[string]string{"code": code, "message": msg}}
}

func writeError(w http.ResponseWriter, code, msg string) {
	writeJSON(w, StatusFor(code), errorBody(code, msg))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDocx(w http.ResponseWriter, jobID, source string, data []byte) {
	w.Header().Set("Content-Type", docxMIME)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": resultName(source)}))
	w.Header().Set("X-Job-ID", jobID)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// resultName derives the download name from the source name.
func resultName(source string) string {
	base := strings.TrimSuffix(source, ".pdf")
	base = strings.TrimSuffix(base, ".PDF")
	if base == "" {
		base = "document"
	}
	return base + ".docx"
}
