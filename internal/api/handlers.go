package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"petagenda/internal/booking"
	"petagenda/internal/model"
	"petagenda/internal/service"
	"petagenda/internal/slots"
)

const dateLayout = "2006-01-02"

// SlotDetailsResponse is returned by the availability route when details=true.
type SlotDetailsResponse struct {
	Date      string           `json:"date"`
	ServiceID int64            `json:"service_id"`
	Slots     []slots.SlotInfo `json:"slots"`
}

// RecurrenceRequest is the body of POST /api/bookings/{id}/recurrence.
type RecurrenceRequest struct {
	Frequency string `json:"frequency"`           // WEEKLY, BIWEEKLY or MONTHLY
	EndDate   string `json:"recurrence_end_date"` // YYYY-MM-DD, inclusive
}

// RecurrenceResponse lists the stored occurrences.
type RecurrenceResponse struct {
	Created  int             `json:"created"`
	Bookings []model.Booking `json:"bookings"`
}

// handleAvailability returns free start times for a service on a day.
// GET /api/shops/{shopID}/availability?date=YYYY-MM-DD&service_id=N[&details=true]
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	shopID, err := strconv.ParseInt(r.PathValue("shopID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid shop id")
		return
	}

	q := r.URL.Query()
	serviceID, err := strconv.ParseInt(q.Get("service_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}
	day, err := time.ParseInLocation(dateLayout, q.Get("date"), s.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	if q.Get("details") == "true" {
		details, err := s.svc.SlotDetails(r.Context(), shopID, serviceID, day)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotDetailsResponse{
			Date:      day.Format(dateLayout),
			ServiceID: serviceID,
			Slots:     slots.ToSlotInfo(details),
		})
		return
	}

	av, err := s.svc.Availability(r.Context(), shopID, serviceID, day)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req service.CreateBookingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ShopID == 0 || req.ServiceID == 0 || req.PetID == 0 {
		writeError(w, http.StatusBadRequest, "shop_id, service_id and pet_id are required")
		return
	}

	b, err := s.svc.CreateBooking(r.Context(), actorID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// GET /api/bookings/{id}
func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := actorAndBooking(w, r)
	if !ok {
		return
	}
	b, err := s.svc.GetBooking(r.Context(), actorID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// POST /api/bookings/{id}/confirm
func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := actorAndBooking(w, r)
	if !ok {
		return
	}
	b, err := s.svc.Confirm(r.Context(), actorID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// POST /api/bookings/{id}/cancel
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := actorAndBooking(w, r)
	if !ok {
		return
	}
	b, err := s.svc.Cancel(r.Context(), actorID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// POST /api/bookings/{id}/recurrence
func (s *HTTPServer) handleRecurrence(w http.ResponseWriter, r *http.Request) {
	actorID, id, ok := actorAndBooking(w, r)
	if !ok {
		return
	}
	var req RecurrenceRequest
	if !decode(w, r, &req) {
		return
	}

	freq, err := model.ParseFrequency(req.Frequency)
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("%w: %v", booking.ErrInvalidRecurrenceRule, err))
		return
	}
	end, err := time.ParseInLocation(dateLayout, req.EndDate, s.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recurrence_end_date; expected YYYY-MM-DD")
		return
	}

	created, err := s.svc.CreateRecurrence(r.Context(), actorID, id, model.RecurrenceRule{Frequency: freq, EndDate: end})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if created == nil {
		created = []model.Booking{}
	}
	writeJSON(w, http.StatusCreated, RecurrenceResponse{Created: len(created), Bookings: created})
}

// POST /api/time-blocks
func (s *HTTPServer) handleCreateTimeBlock(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req service.CreateTimeBlockRequest
	if !decode(w, r, &req) {
		return
	}

	tb, err := s.svc.CreateTimeBlock(r.Context(), actorID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tb)
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// actor reads the acting user id set by the upstream gateway.
func actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(headerUserID), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusUnauthorized, "missing or invalid "+headerUserID)
		return 0, false
	}
	return id, true
}

func actorAndBooking(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	actorID, ok := actor(w, r)
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return 0, 0, false
	}
	return actorID, id, true
}
