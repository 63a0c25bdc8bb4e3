// Package suggest proposes ranked open appointment slots for a provider,
// scored against patient preferences and clinical urgency.
package suggest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Vlad-Pos/MedFlow-sub004/internal/booking"
	"github.com/Vlad-Pos/MedFlow-sub004/internal/conflict"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// HorizonFor bounds how far into the future candidates are generated.
func HorizonFor(p Priority) time.Duration {
	switch p {
	case PriorityUrgent:
		return 24 * time.Hour
	case PriorityHigh:
		return 3 * 24 * time.Hour
	case PriorityMedium:
		return 7 * 24 * time.Hour
	default:
		return 14 * 24 * time.Hour
	}
}

// Weights are the tunable scoring policy. Preference and Urgency weigh
// the two reward terms relative to each other; ConflictPenalty is
// subtracted outright when the slot overlaps an active booking.
type Weights struct {
	Preference      float64
	Urgency         float64
	ConflictPenalty float64
}

func DefaultWeights() Weights {
	return Weights{
		Preference:      0.35,
		Urgency:         0.45,
		ConflictPenalty: 0.5,
	}
}

// Request describes what the caller wants suggested.
type Request struct {
	ProviderID        uuid.UUID
	PreferredHours    []int          // 0-23; empty means no hour preference
	PreferredWeekdays []time.Weekday // empty means no weekday preference
	MaxWaitDays       int            // 0 means horizon-bounded only
	Urgency           Priority
	DurationMinutes   int // 0 means the ranker default
}

// ConflictNote points at a booking a suggested slot would overlap.
type ConflictNote struct {
	BookingID   uuid.UUID `json:"booking_id"`
	Description string    `json:"description"`
}

// Suggestion is an ephemeral ranked proposal. It is never persisted; a
// caller accepts it by turning it into a booking draft.
type Suggestion struct {
	Start           time.Time      `json:"start"`
	DurationMinutes int            `json:"duration_minutes"`
	Priority        Priority       `json:"priority"`
	Confidence      float64        `json:"confidence"`
	PreferenceScore float64        `json:"preference_score"`
	UrgencyScore    float64        `json:"urgency_score"`
	ConflictPenalty float64        `json:"conflict_penalty"`
	Conflicts       []ConflictNote `json:"conflicts"`
	Reason          string         `json:"reason"`
}

// Ranker enumerates candidate slots over a provider's working-hours
// template and scores them.
type Ranker struct {
	weights          Weights
	workdayStartHour int
	workdayEndHour   int
	stepMinutes      int
	defaultDuration  int
	maxResults       int
	now              func() time.Time
}

type Option func(*Ranker)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

// WithMaxResults caps the returned list length.
func WithMaxResults(n int) Option {
	return func(r *Ranker) { r.maxResults = n }
}

func NewRanker(weights Weights, workdayStartHour, workdayEndHour, stepMinutes, defaultDuration int, opts ...Option) *Ranker {
	r := &Ranker{
		weights:          weights,
		workdayStartHour: workdayStartHour,
		workdayEndHour:   workdayEndHour,
		stepMinutes:      stepMinutes,
		defaultDuration:  defaultDuration,
		maxResults:       20,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank produces suggestions ordered by descending confidence, earliest
// first among equals. A fully booked horizon yields an empty slice; that
// is a normal result, not an error.
func (r *Ranker) Rank(req Request, existing []booking.Booking) []Suggestion {
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = r.defaultDuration
	}

	now := r.now()
	horizon := HorizonFor(req.Urgency)
	if req.MaxWaitDays > 0 {
		if wait := time.Duration(req.MaxWaitDays) * 24 * time.Hour; wait < horizon {
			horizon = wait
		}
	}
	deadline := now.Add(horizon)

	step := time.Duration(r.stepMinutes) * time.Minute
	suggestions := make([]Suggestion, 0)

	for t := r.alignToStep(now); t.Before(deadline); t = t.Add(step) {
		end := t.Add(time.Duration(duration) * time.Minute)
		if !r.withinWorkday(t, end) {
			continue
		}

		blocked := conflict.FindConflicting(t, end, existing)

		pref := r.preferenceScore(req, t)
		urg := urgencyScore(now, deadline, t)

		penalty := 0.0
		if len(blocked) > 0 {
			penalty = r.weights.ConflictPenalty
		}

		raw := 0.0
		if sum := r.weights.Preference + r.weights.Urgency; sum > 0 {
			raw = (r.weights.Preference*pref + r.weights.Urgency*urg) / sum
		}
		confidence := clamp01(raw - penalty)

		notes := make([]ConflictNote, 0, len(blocked))
		for _, b := range blocked {
			notes = append(notes, ConflictNote{BookingID: b.ID, Description: conflict.Describe(b)})
		}

		suggestions = append(suggestions, Suggestion{
			Start:           t,
			DurationMinutes: duration,
			Priority:        req.Urgency,
			Confidence:      confidence,
			PreferenceScore: pref,
			UrgencyScore:    urg,
			ConflictPenalty: penalty,
			Conflicts:       notes,
			Reason:          buildReason(req, t, urg, pref, len(blocked)),
		})
	}

	// A horizon where every candidate overlaps an active booking means the
	// provider is fully booked: there is nothing to offer, override-only
	// proposals included. Conflicted slots are only surfaced alongside at
	// least one clear one.
	anyClear := false
	for _, s := range suggestions {
		if len(s.Conflicts) == 0 {
			anyClear = true
			break
		}
	}
	if !anyClear {
		return []Suggestion{}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		// Equal confidence: soonest first, urgency beats convenience.
		return suggestions[i].Start.Before(suggestions[j].Start)
	})

	if r.maxResults > 0 && len(suggestions) > r.maxResults {
		suggestions = suggestions[:r.maxResults]
	}
	return suggestions
}

// alignToStep rounds now up to the next enumeration boundary.
func (r *Ranker) alignToStep(now time.Time) time.Time {
	step := time.Duration(r.stepMinutes) * time.Minute
	aligned := now.Truncate(step)
	if aligned.Before(now) {
		aligned = aligned.Add(step)
	}
	return aligned
}

func (r *Ranker) withinWorkday(start, end time.Time) bool {
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), r.workdayStartHour, 0, 0, 0, start.Location())
	dayEnd := time.Date(start.Year(), start.Month(), start.Day(), r.workdayEndHour, 0, 0, 0, start.Location())
	return !start.Before(dayStart) && !end.After(dayEnd)
}

// preferenceScore averages the hour and weekday fit. A dimension the
// caller left unconstrained counts as a full match.
func (r *Ranker) preferenceScore(req Request, t time.Time) float64 {
	hourScore := 1.0
	if len(req.PreferredHours) > 0 {
		hourScore = 0.0
		for _, h := range req.PreferredHours {
			if t.Hour() == h {
				hourScore = 1.0
				break
			}
		}
	}

	weekdayScore := 1.0
	if len(req.PreferredWeekdays) > 0 {
		weekdayScore = 0.0
		for _, wd := range req.PreferredWeekdays {
			if t.Weekday() == wd {
				weekdayScore = 1.0
				break
			}
		}
	}

	return (hourScore + weekdayScore) / 2
}

// urgencyScore decays linearly from 1 at "now" to 0 at the horizon.
func urgencyScore(now, deadline, t time.Time) float64 {
	total := deadline.Sub(now)
	if total <= 0 {
		return 0
	}
	return clamp01(1 - float64(t.Sub(now))/float64(total))
}

func buildReason(req Request, t time.Time, urg, pref float64, conflicts int) string {
	parts := make([]string, 0, 3)

	switch {
	case urg >= 0.75:
		parts = append(parts, fmt.Sprintf("available soon (%s)", t.Format("Mon 15:04")))
	case urg >= 0.4:
		parts = append(parts, fmt.Sprintf("within the %s horizon", req.Urgency))
	default:
		parts = append(parts, fmt.Sprintf("later in the %s horizon", req.Urgency))
	}

	if len(req.PreferredHours) > 0 || len(req.PreferredWeekdays) > 0 {
		if pref >= 1 {
			parts = append(parts, "matches preferred times")
		} else if pref > 0 {
			parts = append(parts, "partially matches preferred times")
		} else {
			parts = append(parts, "outside preferred times")
		}
	}

	if conflicts > 0 {
		parts = append(parts, fmt.Sprintf("overlaps %d existing booking(s), needs override", conflicts))
	} else {
		parts = append(parts, "no conflicts")
	}

	return strings.Join(parts, "; ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
