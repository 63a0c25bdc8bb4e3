package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

// Blocks reports whether a booking in this status occupies its time slot.
// Completed bookings still block so history cannot be silently overlapped.
func (s Status) Blocks() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a status change is allowed.
// Completed, cancelled and no-show are terminal.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusScheduled:
		return to == StatusConfirmed || to == StatusCancelled || to == StatusNoShow
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCancelled || to == StatusNoShow
	default:
		return false
	}
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Booking is a persisted appointment owned by one provider.
// Start is wall-clock local time in the provider's calendar.
type Booking struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	PatientID       uuid.UUID
	PatientName     string
	Start           time.Time
	DurationMinutes int
	Status          Status
	Notes           string
	NationalID      *string
	Email           *string
	Phone           *string
	BirthDate       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// End returns the exclusive end instant of the booking interval.
func (b Booking) End() time.Time {
	return b.Start.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// Draft carries the fields required to create a booking.
type Draft struct {
	ProviderID      uuid.UUID `validate:"required"`
	PatientID       uuid.UUID `validate:"required"`
	PatientName     string    `validate:"required"`
	Start           time.Time `validate:"required"`
	DurationMinutes int       `validate:"required,gt=0"`
	Notes           string
	NationalID      *string
	Email           *string   `validate:"omitempty,email"`
	Phone           *string
	BirthDate       *time.Time
}

// Update holds a partial mutation; nil fields are left untouched.
// The booking identifier itself is immutable.
type Update struct {
	PatientName     *string
	Start           *time.Time
	DurationMinutes *int
	Status          *Status
	Notes           *string
	NationalID      *string
	Email           *string
	Phone           *string
	BirthDate       *time.Time
}

func (u Update) apply(b *Booking) {
	if u.PatientName != nil {
		b.PatientName = *u.PatientName
	}
	if u.Start != nil {
		b.Start = *u.Start
	}
	if u.DurationMinutes != nil {
		b.DurationMinutes = *u.DurationMinutes
	}
	if u.Status != nil {
		b.Status = *u.Status
	}
	if u.Notes != nil {
		b.Notes = *u.Notes
	}
	if u.NationalID != nil {
		b.NationalID = u.NationalID
	}
	if u.Email != nil {
		b.Email = u.Email
	}
	if u.Phone != nil {
		b.Phone = u.Phone
	}
	if u.BirthDate != nil {
		b.BirthDate = u.BirthDate
	}
}
