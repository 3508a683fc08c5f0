package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/almuhajirin/hafalan-hub/internal/application/command"
	"github.com/almuhajirin/hafalan-hub/internal/application/query"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "Hafalan Hub API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":    "/health",
			"students":  "/api/v1/students",
			"records":   "/api/v1/records",
			"summaries": "/api/v1/summaries",
			"analysis":  "/api/v1/analysis",
			"export":    "/api/v1/export",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness probe; only required checks count.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SANTRI HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListStudents handles GET /api/v1/students
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.ListStudents.Handle(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, list, &ResponseMeta{TotalCount: len(list)})
}

// handleAddStudent handles POST /api/v1/students
func (s *Server) handleAddStudent(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddStudentCommand
	if !s.decode(w, r, &cmd) {
		return
	}
	st, err := s.deps.AddStudent.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, st)
}

// handleDeleteStudent handles DELETE /api/v1/students/{name}?confirm=true
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.DeleteStudent.Handle(r.Context(), command.DeleteStudentCommand{
		Name:    r.PathValue("name"),
		Confirm: getQueryParamBool(r, "confirm"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var meta *ResponseMeta
	if res.OrphanedRecords > 0 || res.OrphanedSummaries > 0 {
		meta = &ResponseMeta{Warnings: []string{fmt.Sprintf(
			"%d daily records and %d monthly summaries still reference %s",
			res.OrphanedRecords, res.OrphanedSummaries, res.Name)}}
	}
	writeJSONWithMeta(w, r, http.StatusOK, res, meta)
}

// handleStudentHistory handles GET /api/v1/students/{name}/records
func (s *Server) handleStudentHistory(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.StudentHistory.Handle(r.Context(), query.StudentHistoryQuery{Name: r.PathValue("name")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, res, &ResponseMeta{TotalCount: len(res.Records)})
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY RECORD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRecordsByDate handles GET /api/v1/records?date=YYYY-MM-DD
func (s *Server) handleRecordsByDate(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.RecordsByDate.Handle(r.Context(), query.RecordsByDateQuery{Date: r.URL.Query().Get("date")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, res, &ResponseMeta{TotalCount: len(res.Records)})
}

// handleSaveRecord handles POST /api/v1/records
func (s *Server) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	var cmd command.SaveDailyRecordCommand
	if !s.decode(w, r, &cmd) {
		return
	}
	res, err := s.deps.SaveRecord.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusCreated, res, &ResponseMeta{Warnings: res.Warnings})
}

// handleDeleteRecord handles DELETE /api/v1/records/{id}
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.DeleteRecord.Handle(r.Context(), command.DeleteDailyRecordCommand{ID: id}); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"deleted": id})
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTHLY SUMMARY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListSummaries handles GET /api/v1/summaries?month=&year=
func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.ListSummaries.Handle(r.Context(), query.ListSummariesQuery{
		Month: r.URL.Query().Get("month"),
		Year:  r.URL.Query().Get("year"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, list, &ResponseMeta{TotalCount: len(list)})
}

// handleUpsertSummary handles PUT /api/v1/summaries
func (s *Server) handleUpsertSummary(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpsertMonthlySummaryCommand
	if !s.decode(w, r, &cmd) {
		return
	}
	sum, err := s.deps.UpsertSummary.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sum)
}

// handleDeleteSummary handles DELETE /api/v1/summaries/{name}/{month}/{year}
func (s *Server) handleDeleteSummary(w http.ResponseWriter, r *http.Request) {
	cmd := command.DeleteMonthlySummaryCommand{
		StudentName: r.PathValue("name"),
		Month:       r.PathValue("month"),
		Year:        r.PathValue("year"),
	}
	if err := s.deps.DeleteSummary.Handle(r.Context(), cmd); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"deleted": cmd.StudentName + "_" + cmd.Month + "_" + cmd.Year})
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYSIS & EXPORT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleAnalysis handles GET /api/v1/analysis
//
// Query: month, year, granularity (monthly|weekly|daily), week, date, k,
// features (full|compact), winsorize, diagnostic, elbow, fresh.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	q, err := s.analysisQuery(r)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	rep, err := s.deps.RunAnalysis.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, rep, &ResponseMeta{TotalCount: rep.Students})
}

func (s *Server) analysisQuery(r *http.Request) (query.RunAnalysisQuery, error) {
	v := r.URL.Query()
	q := query.RunAnalysisQuery{
		Month:          v.Get("month"),
		Year:           v.Get("year"),
		Granularity:    v.Get("granularity"),
		Date:           v.Get("date"),
		K:              s.config.DefaultK,
		FeatureSet:     getQueryParam(r, "features", s.config.DefaultFeatureSet),
		WinsorizeLimit: s.config.DefaultWinsorize,
		Diagnostic:     getQueryParamBool(r, "diagnostic"),
		Elbow:          getQueryParamBool(r, "elbow"),
		SkipCache:      getQueryParamBool(r, "fresh"),
	}
	var err error
	if raw := v.Get("k"); raw != "" {
		if q.K, err = strconv.Atoi(raw); err != nil {
			return q, fmt.Errorf("k must be an integer")
		}
	}
	if raw := v.Get("week"); raw != "" {
		if q.Week, err = strconv.Atoi(raw); err != nil {
			return q, fmt.Errorf("week must be an integer")
		}
	}
	if raw := v.Get("winsorize"); raw != "" {
		if q.WinsorizeLimit, err = strconv.ParseFloat(raw, 64); err != nil {
			return q, fmt.Errorf("winsorize must be a number")
		}
	}
	return q, nil
}

// handleExport handles GET /api/v1/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Export.Handle(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="hafalan-export.json"`)
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decode reads a JSON body into dst and writes 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeJSONError(w, r, http.StatusBadRequest, "invalid_body", msg+": "+err.Error())
		return false
	}
	return true
}

// statusFor maps a domain error kind to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, shared.ErrConfirmationRequired):
		return http.StatusConflict, "confirmation_required"
	case errors.Is(err, shared.ErrInsufficientData):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, shared.ErrDegenerateCluster):
		return http.StatusUnprocessableEntity, "degenerate_cluster"
	case errors.Is(err, shared.ErrMissingField):
		return http.StatusUnprocessableEntity, "missing_field"
	case shared.IsUpstream(err):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError logs and writes an error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" && status != http.StatusBadRequest {
		msg = de.Message
	}

	log := logger.FromContext(r.Context(), s.logger)
	fields := []logger.Field{
		logger.String("path", r.URL.Path),
		logger.Int("status", status),
		logger.Err(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Debug("request rejected", fields...)
	}
	writeJSONError(w, r, status, code, msg)
}

func getQueryParam(r *http.Request, key, defaultValue string) string {
	if value := r.URL.Query().Get(key); value != "" {
		return value
	}
	return defaultValue
}

func getQueryParamBool(r *http.Request, key string) bool {
	value := strings.ToLower(r.URL.Query().Get(key))
	return value == "true" || value == "1" || value == "yes"
}
