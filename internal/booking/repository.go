package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound  = errors.New("provider not found")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInvalidTransition = errors.New("invalid booking status transition")
)

// Repository contains all DB interactions needed by the store adapter
// and the reminder worker.
type Repository interface {
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// FetchRange returns a provider's bookings with start in [from, to),
	// ordered by start time.
	FetchRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Booking, error)

	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	CreateBooking(ctx context.Context, b *Booking) error
	UpdateBooking(ctx context.Context, id uuid.UUID, u Update) (*Booking, error)
	DeleteBooking(ctx context.Context, id uuid.UUID) error

	// Reminder worker
	FindStartingBetween(ctx context.Context, from, to time.Time) ([]Booking, error)
}
