// Package calendarview holds the calendar navigation state machine and
// the transient event projection used for rendering.
package calendarview

import (
	"time"

	"github.com/Vlad-Pos/MedFlow-sub004/internal/timegrid"
)

type Mode string

const (
	ModeDay   Mode = "day"
	ModeWeek  Mode = "week"
	ModeMonth Mode = "month"
)

func ValidMode(m Mode) bool {
	return m == ModeDay || m == ModeWeek || m == ModeMonth
}

// State is the whole navigation state: one active view mode plus the
// anchor date the view is centered on. Anchor is always a valid calendar
// date at midnight.
type State struct {
	Mode   Mode
	Anchor time.Time
}

// Initial returns the starting state: week view anchored on today.
func Initial(now time.Time) State {
	return State{Mode: ModeWeek, Anchor: midnight(now)}
}

type ActionKind int

const (
	ActionSetView ActionKind = iota
	ActionGoToday
	ActionGoNext
	ActionGoPrevious
	ActionJumpTo
)

// Action is a navigation command fed to Reduce.
type Action struct {
	Kind ActionKind
	Mode Mode      // ActionSetView
	Date time.Time // ActionJumpTo
}

// Reduce is the pure transition function. now supplies the current date
// for ActionGoToday; everything else depends only on the prior state.
func Reduce(s State, a Action, now time.Time) State {
	switch a.Kind {
	case ActionSetView:
		if ValidMode(a.Mode) {
			s.Mode = a.Mode
		}
	case ActionGoToday:
		s.Anchor = midnight(now)
	case ActionGoNext:
		s.Anchor = step(s, 1)
	case ActionGoPrevious:
		s.Anchor = step(s, -1)
	case ActionJumpTo:
		s.Anchor = midnight(a.Date)
	}
	return s
}

// step advances the anchor by one view-mode unit in the given direction.
func step(s State, dir int) time.Time {
	switch s.Mode {
	case ModeDay:
		return s.Anchor.AddDate(0, 0, dir)
	case ModeWeek:
		return s.Anchor.AddDate(0, 0, 7*dir)
	default:
		return addMonthClamped(s.Anchor, dir)
	}
}

// addMonthClamped moves by whole calendar months, clamping the day of
// month so Jan 31 + 1 month lands on the last day of February rather than
// overflowing into March.
func addMonthClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, t.Location())
}

// VisibleRange is the half-open [From, To) window a state makes visible,
// the window the store adapter fetches bookings for.
func VisibleRange(s State, weekStart time.Weekday) (from, to time.Time) {
	switch s.Mode {
	case ModeDay:
		from = s.Anchor
		to = from.AddDate(0, 0, 1)
	case ModeWeek:
		week := timegrid.WeekDates(s.Anchor, weekStart)
		from = week[0]
		to = from.AddDate(0, 0, 7)
	default:
		cells := timegrid.MonthCells(s.Anchor, weekStart)
		from = cells[0]
		to = cells[len(cells)-1].AddDate(0, 0, 1)
	}
	return from, to
}

// RangeChanged reports whether moving between two states changes the
// visible window, i.e. whether a re-fetch is due.
func RangeChanged(prev, next State, weekStart time.Weekday) bool {
	prevFrom, prevTo := VisibleRange(prev, weekStart)
	nextFrom, nextTo := VisibleRange(next, weekStart)
	return !prevFrom.Equal(nextFrom) || !prevTo.Equal(nextTo)
}

// Controller is the long-lived wrapper around the reducer, one per open
// calendar view.
type Controller struct {
	state     State
	weekStart time.Weekday
	now       func() time.Time
}

type ControllerOption func(*Controller)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithWeekStart sets the first day of the week for week/month layouts.
func WithWeekStart(d time.Weekday) ControllerOption {
	return func(c *Controller) { c.weekStart = d }
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		weekStart: time.Monday,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state = Initial(c.now())
	return c
}

func (c *Controller) State() State { return c.state }

func (c *Controller) SetView(m Mode)        { c.dispatch(Action{Kind: ActionSetView, Mode: m}) }
func (c *Controller) GoToday()              { c.dispatch(Action{Kind: ActionGoToday}) }
func (c *Controller) GoNext()               { c.dispatch(Action{Kind: ActionGoNext}) }
func (c *Controller) GoPrevious()           { c.dispatch(Action{Kind: ActionGoPrevious}) }
func (c *Controller) JumpTo(date time.Time) { c.dispatch(Action{Kind: ActionJumpTo, Date: date}) }

// VisibleRange returns the current fetch window.
func (c *Controller) VisibleRange() (time.Time, time.Time) {
	return VisibleRange(c.state, c.weekStart)
}

// Dispatch applies an action and reports whether the visible window
// changed, which tells the caller a re-fetch is due.
func (c *Controller) Dispatch(a Action) bool {
	prev := c.state
	c.state = Reduce(c.state, a, c.now())
	return RangeChanged(prev, c.state, c.weekStart)
}

func (c *Controller) dispatch(a Action) { c.Dispatch(a) }

func midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
