package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"backoffice/internal/core"
	"backoffice/internal/log"
	"backoffice/internal/services"
	"backoffice/internal/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

type errorResponse struct {
	Error string `json:"error"`
}

// batchView is the API shape of a journal entry.
type batchView struct {
	ID         string          `json:"id"`
	ProductID  int64           `json:"productId"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	DurationMs int64           `json:"durationMs"`
	EditCount  int             `json:"editCount"`
	Outcome    string          `json:"outcome"`
	Result     core.SaveResult `json:"result"`
}

func newBatchView(rec core.BatchRecord) batchView {
	return batchView{
		ID:         rec.ID,
		ProductID:  rec.ProductID,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		DurationMs: rec.Duration().Milliseconds(),
		EditCount:  rec.EditCount,
		Outcome:    rec.Outcome(),
		Result:     rec.Result,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.journal != nil {
		if err := s.journal.Ping(r.Context()); err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "journal unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleSave runs a save batch. A batch that was aborted as a whole answers
// 422; per-edit failures still answer 200 with partialFailure set.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSaveRequest(w, r)
	if !ok {
		return
	}

	result := s.saver.Save(r.Context(), req)

	status := http.StatusOK
	if !result.Success && !result.PartialFailure {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSaveRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, services.BuildPlan(req.Edits))
}

func (s *Server) decodeSaveRequest(w http.ResponseWriter, r *http.Request) (core.SaveRequest, bool) {
	var req core.SaveRequest
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return req, false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return req, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "malformed request body: trailing data")
		return req, false
	}
	return req, true
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	if !s.requireJournal(w) {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	recs, err := s.journal.ListRecentBatches(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, "list save batches", err)
		return
	}
	views := make([]batchView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newBatchView(rec))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	if !s.requireJournal(w) {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))

	if rec, ok := s.batchCache.Get(id); ok {
		writeJSON(w, http.StatusOK, newBatchView(rec))
		return
	}

	rec, err := s.journal.GetBatch(r.Context(), id)
	if errors.Is(err, storage.ErrBatchNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("save batch %q not found", id))
		return
	}
	if err != nil {
		s.internalError(w, r, "get save batch", err)
		return
	}
	s.batchCache.Set(id, rec)
	writeJSON(w, http.StatusOK, newBatchView(rec))
}

func (s *Server) handleListFailedEdits(w http.ResponseWriter, r *http.Request) {
	if !s.requireJournal(w) {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	edits, err := s.journal.ListFailedEdits(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, "list failed edits", err)
		return
	}
	if edits == nil {
		edits = []storage.FailedEdit{}
	}
	writeJSON(w, http.StatusOK, edits)
}

func handleActivityTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.ActivityTypes())
}

func (s *Server) requireJournal(w http.ResponseWriter) bool {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "save journal not configured")
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.FieldOperation, op,
		log.FieldError, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
