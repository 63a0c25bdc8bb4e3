package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/Vlad-Pos/MedFlow-sub004/internal/booking"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/calendarview"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/suggest"
)

type CreateBookingRequest struct {
	PatientID       string     `json:"patient_id"`
	PatientName     string     `json:"patient_name"`
	Start           time.Time  `json:"start"`
	DurationMinutes int        `json:"duration_minutes"`
	Notes           string     `json:"notes,omitempty"`
	NationalID      *string    `json:"national_id,omitempty"`
	Email           *string    `json:"email,omitempty"`
	Phone           *string    `json:"phone,omitempty"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
}

type UpdateBookingRequest struct {
	PatientName     *string    `json:"patient_name,omitempty"`
	Start           *time.Time `json:"start,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Status          *string    `json:"status,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	NationalID      *string    `json:"national_id,omitempty"`
	Email           *string    `json:"email,omitempty"`
	Phone           *string    `json:"phone,omitempty"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
}

type BookingResponse struct {
	ID              uuid.UUID  `json:"id"`
	ProviderID      uuid.UUID  `json:"provider_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	PatientName     string     `json:"patient_name"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	Email           *string    `json:"email,omitempty"`
	Phone           *string    `json:"phone,omitempty"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
}

func bookingResponse(b booking.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		ProviderID:      b.ProviderID,
		PatientID:       b.PatientID,
		PatientName:     b.PatientName,
		Start:           b.Start,
		End:             b.End(),
		DurationMinutes: b.DurationMinutes,
		Status:          string(b.Status),
		Notes:           b.Notes,
		Email:           b.Email,
		Phone:           b.Phone,
		BirthDate:       b.BirthDate,
	}
}

func bookingResponses(bookings []booking.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingResponse(b))
	}
	return out
}

type CreateBookingResponse struct {
	ID uuid.UUID `json:"id"`
}

type SuggestionsRequest struct {
	Urgency           string `json:"urgency"`
	PreferredHours    []int  `json:"preferred_hours,omitempty"`
	PreferredWeekdays []int  `json:"preferred_weekdays,omitempty"` // 0=Sunday .. 6=Saturday
	MaxWaitDays       int    `json:"max_wait_days,omitempty"`
	DurationMinutes   int    `json:"duration_minutes,omitempty"`
}

type SuggestionsResponse struct {
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

type ConflictCheckRequest struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Conflicts here are advisory warnings to present to the user, not a
// reason for the server to refuse anything.
type ConflictCheckResponse struct {
	Conflicts []uuid.UUID `json:"conflicts"`
	Warnings  []string    `json:"warnings"`
}

type CalendarResponse struct {
	Mode     string               `json:"mode"`
	Anchor   string               `json:"anchor"`
	From     time.Time            `json:"from"`
	To       time.Time            `json:"to"`
	Events   []calendarview.Event `json:"events"`
	Bookings []BookingResponse    `json:"bookings"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
