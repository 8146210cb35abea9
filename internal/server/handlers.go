package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spesesync/internal/core"
	"spesesync/internal/log"
	"spesesync/internal/remote"
)

const maxBodyBytes = 64 << 10

// clockSkew is how far into the future a record date may be, so that a
// client a timezone ahead of the server is not rejected.
const clockSkew = 24 * time.Hour

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.records.List(r.Context(), q)
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpList).WithError(err)
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List records failed", fields.ToSlice()...)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCreate stores a new record. A repeated id replaces the stored record
// and answers 200 so a retried create is harmless.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(rec.ID) == "" {
		writeError(w, http.StatusBadRequest, core.ErrMissingID.Error())
		return
	}
	if !s.validate(w, rec) {
		return
	}

	logger := log.FromContext(r.Context())
	created, err := s.records.Upsert(r.Context(), rec)
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpCreate).WithRecord(rec).WithError(err)
		logger.ErrorContext(r.Context(), "Create record failed", fields.ToSlice()...)
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	fields := log.NewFields().WithOperation(log.OpCreate).WithRecord(rec)
	fields["created"] = created
	logger.InfoContext(r.Context(), "Record stored", fields.ToSlice()...)
	writeJSON(w, status, rec)
}

// handleReplace upserts the record at the path id.
func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.ID != id {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("body id %q does not match path id %q", rec.ID, id))
		return
	}
	if !s.validate(w, rec) {
		return
	}

	if _, err := s.records.Upsert(r.Context(), rec); err != nil {
		fields := log.NewFields().WithOperation(log.OpReplace).WithRecord(rec).WithError(err)
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Replace record failed", fields.ToSlice()...)
		writeError(w, http.StatusInternalServerError, "replace failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := s.records.Delete(r.Context(), id)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Delete record failed",
			log.FieldOperation, log.OpDelete,
			log.FieldRecordID, id,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, remote.ErrNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) parseListQuery(r *http.Request) (remote.ListQuery, error) {
	v := r.URL.Query()
	q := remote.ListQuery{Page: 1, Category: strings.TrimSpace(v.Get("category"))}

	if p := strings.TrimSpace(v.Get("page")); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return q, fmt.Errorf("invalid page %q", p)
		}
		q.Page = n
	}
	if l := strings.TrimSpace(v.Get("limit")); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			return q, fmt.Errorf("invalid limit %q", l)
		}
		q.PageSize = min(n, s.maxPageSize)
	}
	return q, nil
}

func (s *Server) decodeRecord(w http.ResponseWriter, r *http.Request) (core.Record, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var rec core.Record
	if err := dec.Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return core.Record{}, false
	}
	return rec, true
}

func (s *Server) validate(w http.ResponseWriter, rec core.Record) bool {
	if err := rec.ValidateAt(s.now().Add(clockSkew)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
