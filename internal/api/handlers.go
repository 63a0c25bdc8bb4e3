package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vlad-Pos/MedFlow-sub004/internal/booking"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/calendarview"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/conflict"
	redisclient "github.com/Vlad-Pos/MedFlow-sub004/internal/redis"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/suggest"
)

// Server holds the handler dependencies. Each provider gets its own store
// adapter, since a visible booking list is owned by the calendar that
// fetched it.
type Server struct {
	repo      booking.Repository
	locker    booking.WriteLocker
	ranker    *suggest.Ranker
	log       *zap.Logger
	opTimeout time.Duration
	weekStart time.Weekday
	now       func() time.Time

	mu     sync.Mutex
	stores map[uuid.UUID]*booking.Store
}

func NewServer(repo booking.Repository, locker booking.WriteLocker, ranker *suggest.Ranker, log *zap.Logger, opTimeout time.Duration) *Server {
	return &Server{
		repo:      repo,
		locker:    locker,
		ranker:    ranker,
		log:       log,
		opTimeout: opTimeout,
		weekStart: time.Monday,
		now:       time.Now,
		stores:    make(map[uuid.UUID]*booking.Store),
	}
}

func (s *Server) storeFor(providerID uuid.UUID) *booking.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[providerID]
	if !ok {
		st = booking.NewStore(s.repo, s.locker, s.log, s.opTimeout)
		s.stores[providerID] = st
	}
	return st
}

func providerIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "providerID"))
}

func (s *Server) listBookings(w http.ResponseWriter, r *http.Request) {
	providerID, err := providerIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
		return
	}

	bookings, err := s.storeFor(providerID).FetchRange(r.Context(), providerID, from, to)
	if err != nil {
		s.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookingResponses(bookings))
}

func (s *Server) createBooking(w http.ResponseWriter, r *http.Request) {
	providerID, err := providerIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
		return
	}

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return
	}

	id, err := s.storeFor(providerID).Create(r.Context(), booking.Draft{
		ProviderID:      providerID,
		PatientID:       patientID,
		PatientName:     req.PatientName,
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		NationalID:      req.NationalID,
		Email:           req.Email,
		Phone:           req.Phone,
		BirthDate:       req.BirthDate,
	})
	if err != nil {
		s.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateBookingResponse{ID: id})
}

func (s *Server) updateBooking(w http.ResponseWriter, r *http.Request) {
	providerID, err := providerIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
		return
	}

	var req UpdateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	u := booking.Update{
		PatientName:     req.PatientName,
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		NationalID:      req.NationalID,
		Email:           req.Email,
		Phone:           req.Phone,
		BirthDate:       req.BirthDate,
	}
	if req.Status != nil {
		status := booking.Status(*req.Status)
		u.Status = &status
	}

	if err := s.storeFor(providerID).Update(r.Context(), id, u); err != nil {
		s.handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteBooking(w http.ResponseWriter, r *http.Request) {
	providerID, err := providerIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
		return
	}

	if err := s.storeFor(providerID).Delete(r.Context(), id); err != nil {
		s.handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) suggestions(w http.ResponseWriter, r *http.Request) {
	providerID, err := providerIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
		return
	}

	var req SuggestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	urgency := suggest.Priority(req.Urgency)
	switch urgency {
	case suggest.PriorityLow, suggest.PriorityMedium, suggest.PriorityHigh, suggest.PriorityUrgent:
	case "":
		urgency = suggest.PriorityMedium
	default:
		writeError(w, http.StatusBadRequest, "invalid_urgency", "urgency must be one of low, medium, high, urgent")
		return
	}

	weekdays := make([]time.Weekday, 0, len(req.PreferredWeekdays))
	for _, d := range req.PreferredWeekdays {
		if d < 0 || d > 6 {
			writeError(w, http.StatusBadRequest, "invalid_weekday", "preferred_weekdays entries must be 0-6")
			return
		}
		weekdays = append(weekdays, time.Weekday(d))
	}

	// Existing bookings across the whole horizon feed conflict scoring.
	now := s.now()
	deadline := now.Add(suggest.HorizonFor(urgency)).AddDate(0, 0, 1)
	existing, err := s.repo.FetchRange(r.Context(), providerID, now.AddDate(0, 0, -1), deadline)
	if err != nil {
		s.handleError(w, err)
		return
	}

	ranked := s.ranker.Rank(suggest.Request{
		ProviderID:        providerID,
		PreferredHours:    req.PreferredHours,
		PreferredWeekdays: weekdays,
		MaxWaitDays:       req.MaxWaitDays,
		Urgency:           urgency,
		DurationMinutes:   req.DurationMinutes,
	}, existing)

	writeJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: ranked})
}

func (s *Server) conflictCheck(w http.ResponseWriter, r *http.Request) {
	providerID, err := providerIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
		return
	}

	var req ConflictCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Start.IsZero() || req.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_interval", "start and a positive duration_minutes are required")
		return
	}

	end := req.Start.Add(time.Duration(req.DurationMinutes) * time.Minute)

	// One day of context on each side covers any booking that could
	// overlap the candidate.
	existing, err := s.repo.FetchRange(r.Context(), providerID, req.Start.AddDate(0, 0, -1), end.AddDate(0, 0, 1))
	if err != nil {
		s.handleError(w, err)
		return
	}

	blocked := conflict.FindConflicting(req.Start, end, existing)
	resp := ConflictCheckResponse{
		Conflicts: make([]uuid.UUID, 0, len(blocked)),
		Warnings:  make([]string, 0, len(blocked)),
	}
	for _, b := range blocked {
		resp.Conflicts = append(resp.Conflicts, b.ID)
		resp.Warnings = append(resp.Warnings, conflict.Describe(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) calendar(w http.ResponseWriter, r *http.Request) {
	providerID, err := providerIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
		return
	}

	mode := calendarview.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = calendarview.ModeWeek
	}
	if !calendarview.ValidMode(mode) {
		writeError(w, http.StatusBadRequest, "invalid_mode", "mode must be one of day, week, month")
		return
	}

	anchor := s.now()
	if a := r.URL.Query().Get("anchor"); a != "" {
		anchor, err = time.Parse("2006-01-02", a)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_anchor", "anchor must be YYYY-MM-DD")
			return
		}
	}

	state := calendarview.State{Mode: mode, Anchor: anchor}
	from, to := calendarview.VisibleRange(state, s.weekStart)

	provider, err := s.repo.GetProviderByID(r.Context(), providerID)
	if err != nil {
		s.handleError(w, err)
		return
	}

	bookings, err := s.storeFor(providerID).FetchRange(r.Context(), providerID, from, to)
	if err != nil {
		s.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CalendarResponse{
		Mode:     string(mode),
		Anchor:   from.Format("2006-01-02"),
		From:     from,
		To:       to,
		Events:   calendarview.EventsFromBookings(bookings, provider.Name),
		Bookings: bookingResponses(bookings),
	})
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseInstant(r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("from must be RFC3339 or YYYY-MM-DD")
	}
	to, err := parseInstant(r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("to must be RFC3339 or YYYY-MM-DD")
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_failed", verr.Error())
	case errors.Is(err, booking.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "booking_being_edited", "booking is currently being edited, please retry shortly")
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
