package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/scout-edge/brandgate/internal/matcher"
	"github.com/scout-edge/brandgate/internal/quality"
	"github.com/scout-edge/brandgate/internal/record"
	"github.com/scout-edge/brandgate/internal/report"
	"github.com/scout-edge/brandgate/internal/rules"
)

// ValidationHandler serves the validation API endpoints.
type ValidationHandler struct {
	Matcher   *matcher.Matcher
	Validator *rules.Validator
	Scorer    *quality.Scorer
	Store     *report.Store // nil disables persistence and report lookup
	Log       *logrus.Logger
}

// ValidateRequest wraps a single transaction record with optional context
// keywords for the matcher.
type ValidateRequest struct {
	Record          record.TransactionRecord `json:"record"`
	ContextKeywords []string                 `json:"context_keywords,omitempty"`
}

// Validate runs one record through the full validation pass and returns
// its report.
func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rec := &req.Record

	var matches []matcher.Candidate
	if rec.HasTranscript() {
		matches = h.Matcher.Match(rec.Transcript, req.ContextKeywords)
	}
	findings, err := h.Validator.Validate(r.Context(), rec, matches)
	if err != nil {
		// Request cancelled mid-evaluation; no terminal verdict exists.
		http.Error(w, "Validation aborted", http.StatusServiceUnavailable)
		return
	}
	score, verdict := h.Scorer.Score(findings, matches, rec.HasTranscript())
	rep := report.New(rec.ID, findings, matches, score, h.Scorer.BucketFor(score), verdict)

	if h.Store != nil {
		if err := h.Store.SaveReport(rep); err != nil {
			h.Log.WithError(err).WithField("transaction_id", rec.ID).
				Error("failed to persist report")
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, rep)
}

// GetReport returns a stored report by its identifier.
func (h *ValidationHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		http.Error(w, "Report storage disabled", http.StatusNotImplemented)
		return
	}
	id := mux.Vars(r)["id"]

	rep, err := h.Store.GetReport(id)
	if err != nil {
		h.Log.WithError(err).WithField("report_id", id).Error("report lookup failed")
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if rep == nil {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ListReports returns stored reports filtered by verdict.
func (h *ValidationHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		http.Error(w, "Report storage disabled", http.StatusNotImplemented)
		return
	}

	verdict := quality.Verdict(r.URL.Query().Get("verdict"))
	switch verdict {
	case quality.VerdictPass, quality.VerdictWarn, quality.VerdictFail:
	default:
		http.Error(w, "verdict must be pass, warn or fail", http.StatusBadRequest)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	reports, err := h.Store.ListByVerdict(verdict, limit)
	if err != nil {
		h.Log.WithError(err).Error("report listing failed")
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(reports),
		"reports": reports,
	})
}

// GetStats returns verdict tallies over stored reports.
func (h *ValidationHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		http.Error(w, "Report storage disabled", http.StatusNotImplemented)
		return
	}
	stats, err := h.Store.GetStats()
	if err != nil {
		h.Log.WithError(err).Error("stats query failed")
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
