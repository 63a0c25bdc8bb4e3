// Package conflict decides whether a candidate time interval collides
// with a provider's existing bookings. Results are advisory; callers
// choose whether to block on them.
package conflict

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Vlad-Pos/MedFlow-sub004/internal/booking"
)

// Overlaps is the half-open interval test: [aStart, aEnd) and
// [bStart, bEnd) conflict iff each starts before the other ends.
// Back-to-back intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FindConflicting returns the bookings whose interval overlaps the
// candidate. Cancelled and no-show bookings never block a slot.
func FindConflicting(candidateStart, candidateEnd time.Time, existing []booking.Booking) []booking.Booking {
	blocked := make([]booking.Booking, 0)
	for _, b := range existing {
		if !b.Status.Blocks() {
			continue
		}
		if Overlaps(candidateStart, candidateEnd, b.Start, b.End()) {
			blocked = append(blocked, b)
		}
	}
	return blocked
}

// FindConflicts returns the identifiers of conflicting bookings.
// An empty slice means the candidate slot is clear.
func FindConflicts(candidateStart, candidateEnd time.Time, existing []booking.Booking) []uuid.UUID {
	blocked := FindConflicting(candidateStart, candidateEnd, existing)
	ids := make([]uuid.UUID, 0, len(blocked))
	for _, b := range blocked {
		ids = append(ids, b.ID)
	}
	return ids
}

// Describe renders a conflicting booking for human review.
func Describe(b booking.Booking) string {
	return fmt.Sprintf("overlaps %s booking %s (%s - %s)",
		b.Status, b.ID,
		b.Start.Format("2006-01-02 15:04"),
		b.End().Format("15:04"),
	)
}
