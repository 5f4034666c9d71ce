package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"petagenda/internal/booking"
	"petagenda/internal/database"
	"petagenda/internal/recurrence"
	"petagenda/internal/service"
	"petagenda/shared/access"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	// Reason is a stable code for booking rejections, e.g. "staff_conflict".
	Reason   string `json:"reason,omitempty"`
	Conflict string `json:"conflict,omitempty"`
	// Occurrence is the first failing date of a rejected series.
	Occurrence string `json:"occurrence,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service error to a status code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case access.IsAccessDenied(err):
		status = http.StatusForbidden
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest):
		status = http.StatusBadRequest
	case booking.IsRejection(err):
		resp.Reason = booking.ReasonCode(err)
		status = http.StatusConflict
		if errors.Is(err, booking.ErrInvalidTransition) || errors.Is(err, booking.ErrInvalidRecurrenceRule) {
			status = http.StatusUnprocessableEntity
		}
		if re, ok := booking.AsRejection(err); ok {
			resp.Conflict = re.Conflict
		}
		if oe, ok := recurrence.AsError(err); ok {
			resp.Occurrence = oe.Date.Format("2006-01-02")
		}
	}

	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		resp = ErrorResponse{Error: "internal error"}
	}
	writeJSON(w, status, resp)
}
