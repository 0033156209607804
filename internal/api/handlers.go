package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hydromate/internal/lifecycle"
	"hydromate/internal/metrics"
	"hydromate/internal/model"
	"hydromate/internal/report"
	"hydromate/internal/schedule"
)

// handleUsers routes /api/v1/users/{id}/<resource>.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	userID, resource, ok := splitUserPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case resource == "reminders/next" && r.Method == http.MethodPost:
		metrics.IncHTTP("schedule_next")
		s.scheduleNext(w, r, userID)
	case resource == "suggestions" && r.Method == http.MethodGet:
		metrics.IncHTTP("suggestions")
		s.suggestions(w, r, userID)
	case resource == "statistics" && r.Method == http.MethodGet:
		metrics.IncHTTP("statistics")
		s.statistics(w, r, userID)
	case resource == "settings" && r.Method == http.MethodGet:
		metrics.IncHTTP("get_settings")
		s.getSettings(w, r, userID)
	case resource == "settings" && r.Method == http.MethodPut:
		metrics.IncHTTP("update_settings")
		s.updateSettings(w, r, userID)
	case resource == "intake" && r.Method == http.MethodPost:
		metrics.IncHTTP("log_intake")
		s.logIntake(w, r, userID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleReminders routes /api/v1/reminders/{id}/<event>.
func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/reminders/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	reminderID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reminder id")
		return
	}

	switch parts[1] {
	case "delivered":
		metrics.IncHTTP("delivered")
		s.delivered(w, r, reminderID)
	case "failed":
		metrics.IncHTTP("delivery_failed")
		s.deliveryFailed(w, r, reminderID)
	case "response":
		metrics.IncHTTP("response")
		s.response(w, r, reminderID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) scheduleNext(w http.ResponseWriter, r *http.Request, userID int64) {
	rem, err := s.svc.ScheduleNext(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if rem == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

func (s *Server) suggestions(w http.ResponseWriter, r *http.Request, userID int64) {
	sugg, err := s.svc.GetSuggestions(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": sugg})
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request, userID int64) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			writeError(w, http.StatusBadRequest, "days must be in [1, 365]")
			return
		}
		days = n
	}

	stats, err := s.svc.GetStatistics(r.Context(), userID, days)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request, userID int64) {
	settings, err := s.svc.GetSettings(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request, userID int64) {
	var patch model.SettingsPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	settings, err := s.svc.UpdateSettings(r.Context(), userID, &patch)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) logIntake(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		AmountML  float64    `json:"amount_ml"`
		Timestamp *time.Time `json:"timestamp,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AmountML <= 0 {
		writeError(w, http.StatusBadRequest, "amount_ml must be positive")
		return
	}
	at := time.Now()
	if req.Timestamp != nil {
		at = *req.Timestamp
	}

	if err := s.svc.LogIntake(r.Context(), userID, req.AmountML, at); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) delivered(w http.ResponseWriter, r *http.Request, reminderID int64) {
	if err := s.svc.OnDelivered(r.Context(), reminderID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deliveryFailed(w http.ResponseWriter, r *http.Request, reminderID int64) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "unspecified"
	}

	if err := s.svc.OnDeliveryFailed(r.Context(), reminderID, req.Reason); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) response(w http.ResponseWriter, r *http.Request, reminderID int64) {
	var req struct {
		Action   model.ResponseAction `json:"action"`
		AmountML float64              `json:"amount_ml,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	delayMins, err := s.svc.OnUserResponse(r.Context(), reminderID, req.Action, req.AmountML)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"response_delay_minutes": delayMins})
}

func (s *Server) handleEffectivenessReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("effectiveness_report")

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			writeError(w, http.StatusBadRequest, "days must be in [1, 365]")
			return
		}
		days = n
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="effectiveness_%s.xlsx"`, time.Now().Format("2006-01-02")))
	if err := report.Effectiveness(r.Context(), s.svc, days, w); err != nil {
		s.logger.Error().Err(err).Msg("failed to build effectiveness report")
	}
}

// writeServiceError maps domain errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		writeError(w, http.StatusNotFound, "reminder not found")
	case errors.Is(err, lifecycle.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, schedule.ErrInternalInconsistency):
		s.logger.Error().Err(err).Msg("scheduling inconsistency")
		writeError(w, http.StatusInternalServerError, "internal error")
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		model.ErrInvalidInterval,
		model.ErrInvalidWindow,
		model.ErrNoChannels,
		model.ErrUnknownChannel,
		model.ErrUnknownIntensity,
		model.ErrUnknownAction,
		model.ErrInvalidGoal,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// splitUserPath extracts the user id and trailing resource from a path of the
// form /api/v1/users/{id}/<resource...>.
func splitUserPath(path string) (int64, string, bool) {
	rest := strings.TrimPrefix(path, "/api/v1/users/")
	idx := strings.Index(rest, "/")
	if idx <= 0 {
		return 0, "", false
	}
	userID, err := strconv.ParseInt(rest[:idx], 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", false
	}
	return userID, rest[idx+1:], true
}
