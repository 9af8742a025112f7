package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wakala/glrecon/internal/detection"
	"github.com/wakala/glrecon/internal/domain"
	"github.com/wakala/glrecon/internal/ingestion"
	"github.com/wakala/glrecon/internal/logger"
	"github.com/wakala/glrecon/internal/report"
	"github.com/wakala/glrecon/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	recordRepo   *repository.RecordRepo
	verdictRepo  *repository.VerdictRepo
	ingestionSvc *ingestion.Service
	detectionSvc *detection.Service
	log          zerolog.Logger
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// serverError logs err with the request-scoped logger and returns a 500.
func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Error().Err(err).Msg("request failed")
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func parseAccount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// --- IngestRecords ---

func (h *Handlers) IngestRecords(w http.ResponseWriter, r *http.Request) {
	// Accept multipart form.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, fh, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return
	}

	result, err := h.ingestionSvc.IngestCSV(r.Context(), data, fh.Filename)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// --- ListRecords ---

func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	account, err := parseAccount(q.Get("account"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid account number")
		return
	}
	filter := repository.RecordFilter{
		Account:  account,
		Currency: q.Get("currency"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}
	if c := q.Get("company"); c != "" {
		company, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid company")
			return
		}
		filter.Company = &company
	}

	records, total, err := h.recordRepo.List(r.Context(), filter)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

// --- GetAccount ---

// GetAccount returns an account's stored verdict alongside its scored history.
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount(chi.URLParam(r, "account"))
	if err != nil || account == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid account number")
		return
	}

	res, err := h.detectionSvc.EvaluateAccount(r.Context(), account)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if len(res.Scored) == 0 && res.Verdict.Outcome != domain.OutcomeDataQuality {
		h.writeError(w, http.StatusNotFound, "no historical data found for this account")
		return
	}

	stored, err := h.verdictRepo.Get(r.Context(), account)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.serverError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"verdict": stored,
		"current": res.Verdict,
		"history": res.Scored,
	})
}

// --- RunDetection ---

func (h *Handlers) RunDetection(w http.ResponseWriter, r *http.Request) {
	run, _, err := h.detectionSvc.Run(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// --- ListVerdicts ---

func (h *Handlers) ListVerdicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.VerdictFilter{
		Anomaly: q.Get("anomaly"),
		Outcome: q.Get("outcome"),
		Page:    parseIntDefault(q.Get("page"), 1),
		Limit:   parseIntDefault(q.Get("limit"), 50),
	}

	verdicts, total, err := h.verdictRepo.List(r.Context(), filter)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"verdicts": verdicts,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	})
}

// --- GetVerdictSummary ---

func (h *Handlers) GetVerdictSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.verdictRepo.GetSummary(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// --- Exports ---

func (h *Handlers) ExportVerdictsCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "text/csv", "predictions.csv", report.WriteCSV)
}

func (h *Handlers) ExportVerdictsXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"predictions.xlsx", report.WriteXLSX)
}

func (h *Handlers) export(w http.ResponseWriter, r *http.Request, contentType, filename string,
	write func(io.Writer, []domain.Verdict) error) {
	verdicts, _, err := h.verdictRepo.List(r.Context(), repository.VerdictFilter{})
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, verdicts); err != nil {
		h.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.Error().Err(err).Msg("write export")
	}
}
