package calendarview

import (
	"time"

	"github.com/google/uuid"

	"github.com/Vlad-Pos/MedFlow-sub004/internal/booking"
)

// Event is the transient rendering projection of a Booking. It is rebuilt
// from the booking list on every fetch and never written back directly;
// edits go through the store against the underlying booking.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Start       string    `json:"start"` // "HH:MM"
	End         string    `json:"end"`   // "HH:MM"
	Color       string    `json:"color"`
	Weekday     int       `json:"weekday"` // ISO: Monday=1 .. Sunday=7
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Attendees   []string  `json:"attendees"`
	Organizer   string    `json:"organizer"`
}

var statusColors = map[booking.Status]string{
	booking.StatusScheduled: "blue",
	booking.StatusConfirmed: "green",
	booking.StatusCompleted: "gray",
	booking.StatusCancelled: "red",
	booking.StatusNoShow:    "orange",
}

// EventFromBooking derives the view model for one booking.
func EventFromBooking(b booking.Booking, providerName string) Event {
	color, ok := statusColors[b.Status]
	if !ok {
		color = "blue"
	}

	return Event{
		ID:          b.ID,
		Title:       b.PatientName,
		Start:       b.Start.Format("15:04"),
		End:         b.End().Format("15:04"),
		Color:       color,
		Weekday:     isoWeekday(b.Start),
		Description: b.Notes,
		Attendees:   []string{b.PatientName},
		Organizer:   providerName,
	}
}

// EventsFromBookings projects a fetched range into render order.
func EventsFromBookings(bookings []booking.Booking, providerName string) []Event {
	events := make([]Event, 0, len(bookings))
	for _, b := range bookings {
		events = append(events, EventFromBooking(b, providerName))
	}
	return events
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
