package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ValidationError reports missing or invalid draft fields. It is surfaced
// to the caller for user-facing correction and never retried.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid booking fields: %v", e.Fields)
}

// WriteLocker serializes the backend write section per booking.
// Satisfied by the redis booking locker.
type WriteLocker interface {
	WithBookingLock(ctx context.Context, bookingID uuid.UUID, fn func(ctx context.Context) error) error
}

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
)

// pendingOp pairs an optimistically applied mutation with the rollback
// snapshot needed to revert it if the backend call fails.
type pendingOp struct {
	kind  opKind
	id    uuid.UUID
	prior *Booking // state before the op; nil for creates
	after *Booking // state after the op; nil for deletes
}

type viewKey struct {
	providerID uuid.UUID
	from, to   time.Time
}

// Store is the async boundary to the persistence collaborator. It owns
// the booking list for the currently visible range: fetches are versioned
// so a stale slow response never overwrites a newer view's data, and
// mutations are applied optimistically with rollback on backend failure.
type Store struct {
	repo     Repository
	locker   WriteLocker
	log      *zap.Logger
	timeout  time.Duration
	validate *validator.Validate

	mu      sync.Mutex
	seq     uint64 // last issued fetch sequence; latest wins
	view    viewKey
	visible []Booking
	pending map[uuid.UUID]pendingOp

	gateMu sync.Mutex
	gates  map[uuid.UUID]*sync.Mutex // per-booking edit queue
}

func NewStore(repo Repository, locker WriteLocker, log *zap.Logger, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{
		repo:     repo,
		locker:   locker,
		log:      log,
		timeout:  timeout,
		validate: validator.New(),
		pending:  make(map[uuid.UUID]pendingOp),
		gates:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// FetchRange loads the provider's bookings for [from, to) and installs
// them as the visible list. Re-entrant: when navigation outruns the
// backend, only the most recently requested range is ever installed; a
// stale response is discarded silently and the current list returned.
func (s *Store) FetchRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Booking, error) {
	s.mu.Lock()
	s.seq++
	mySeq := s.seq
	s.view = viewKey{providerID: providerID, from: from, to: to}
	s.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.repo.FetchRange(opCtx, providerID, from, to)

	s.mu.Lock()
	defer s.mu.Unlock()

	if mySeq != s.seq {
		s.log.Debug("discarding stale range fetch",
			zap.Uint64("seq", mySeq),
			zap.Uint64("latest", s.seq),
		)
		return s.snapshotLocked(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch range: %w", err)
	}

	s.visible = append([]Booking(nil), result...)
	s.replayPendingLocked()
	return s.snapshotLocked(), nil
}

// Visible returns a copy of the current visible booking list, optimistic
// edits included.
func (s *Store) Visible() []Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Create validates the draft, applies the new booking optimistically and
// persists it. On backend failure the optimistic entry is rolled back and
// the error returned for the caller to surface.
func (s *Store) Create(ctx context.Context, d Draft) (uuid.UUID, error) {
	if err := s.validateDraft(d); err != nil {
		return uuid.Nil, err
	}

	b := Booking{
		ID:              uuid.New(),
		ProviderID:      d.ProviderID,
		PatientID:       d.PatientID,
		PatientName:     d.PatientName,
		Start:           d.Start,
		DurationMinutes: d.DurationMinutes,
		Status:          StatusScheduled,
		Notes:           d.Notes,
		NationalID:      d.NationalID,
		Email:           d.Email,
		Phone:           d.Phone,
		BirthDate:       d.BirthDate,
	}

	gate := s.gate(b.ID)
	gate.Lock()
	defer gate.Unlock()

	s.applyOptimistic(pendingOp{kind: opCreate, id: b.ID, after: &b})

	err := s.backendWrite(ctx, b.ID, func(opCtx context.Context) error {
		return s.repo.CreateBooking(opCtx, &b)
	})
	if err != nil {
		s.rollback(b.ID)
		return uuid.Nil, fmt.Errorf("create booking: %w", err)
	}

	s.confirm(b.ID)
	return b.ID, nil
}

// Update applies a partial mutation. A second edit to the same booking
// while one is in flight queues behind it rather than racing it.
func (s *Store) Update(ctx context.Context, id uuid.UUID, u Update) error {
	if u.DurationMinutes != nil && *u.DurationMinutes <= 0 {
		return &ValidationError{Fields: []string{"DurationMinutes"}}
	}

	gate := s.gate(id)
	gate.Lock()
	defer gate.Unlock()

	prior := s.lookup(id)
	if prior != nil {
		if u.Status != nil && !CanTransition(prior.Status, *u.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prior.Status, *u.Status)
		}
		after := *prior
		u.apply(&after)
		s.applyOptimistic(pendingOp{kind: opUpdate, id: id, prior: prior, after: &after})
	}

	var updated *Booking
	err := s.backendWrite(ctx, id, func(opCtx context.Context) error {
		var inner error
		updated, inner = s.repo.UpdateBooking(opCtx, id, u)
		return inner
	})
	if err != nil {
		s.rollback(id)
		return fmt.Errorf("update booking: %w", err)
	}

	s.confirm(id)
	if updated != nil {
		s.install(*updated)
	}
	return nil
}

// Delete removes a booking, optimistically first.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	gate := s.gate(id)
	gate.Lock()
	defer gate.Unlock()

	if prior := s.lookup(id); prior != nil {
		s.applyOptimistic(pendingOp{kind: opDelete, id: id, prior: prior})
	}

	err := s.backendWrite(ctx, id, func(opCtx context.Context) error {
		return s.repo.DeleteBooking(opCtx, id)
	})
	if err != nil {
		s.rollback(id)
		return fmt.Errorf("delete booking: %w", err)
	}

	s.confirm(id)
	return nil
}

// backendWrite runs fn under the per-booking lock with the op timeout.
func (s *Store) backendWrite(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.locker == nil {
		return fn(opCtx)
	}
	return s.locker.WithBookingLock(opCtx, id, fn)
}

func (s *Store) validateDraft(d Draft) error {
	err := s.validate.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return &ValidationError{Fields: fields}
	}
	return err
}

// gate returns the serialization mutex for one booking.
func (s *Store) gate(id uuid.UUID) *sync.Mutex {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	g, ok := s.gates[id]
	if !ok {
		g = &sync.Mutex{}
		s.gates[id] = g
	}
	return g
}

func (s *Store) lookup(id uuid.UUID) *Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.visible {
		if s.visible[i].ID == id {
			b := s.visible[i]
			return &b
		}
	}
	return nil
}

func (s *Store) applyOptimistic(op pendingOp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[op.id] = op
	s.applyOpLocked(op)
}

// rollback reverts the optimistic effect of a failed op, restoring the
// last known-good entry.
func (s *Store) rollback(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.pending[id]
	if !ok {
		return
	}
	delete(s.pending, id)

	s.removeLocked(id)
	if op.prior != nil {
		s.insertLocked(*op.prior)
	}
	s.log.Warn("rolled back optimistic booking change", zap.String("booking_id", id.String()))
}

func (s *Store) confirm(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// install replaces a visible entry with the backend-confirmed row.
func (s *Store) install(b Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(b.ID)
	if s.inViewLocked(b) {
		s.insertLocked(b)
	}
}

// replayPendingLocked re-applies unconfirmed optimistic ops on top of a
// freshly installed fetch result so in-flight edits stay visible.
func (s *Store) replayPendingLocked() {
	for _, op := range s.pending {
		s.applyOpLocked(op)
	}
}

func (s *Store) applyOpLocked(op pendingOp) {
	s.removeLocked(op.id)
	if op.after != nil && s.inViewLocked(*op.after) {
		s.insertLocked(*op.after)
	}
}

func (s *Store) inViewLocked(b Booking) bool {
	v := s.view
	if v.providerID == uuid.Nil {
		return false
	}
	return b.ProviderID == v.providerID && !b.Start.Before(v.from) && b.Start.Before(v.to)
}

func (s *Store) removeLocked(id uuid.UUID) {
	for i := range s.visible {
		if s.visible[i].ID == id {
			s.visible = append(s.visible[:i], s.visible[i+1:]...)
			return
		}
	}
}

func (s *Store) insertLocked(b Booking) {
	i := sort.Search(len(s.visible), func(i int) bool {
		return s.visible[i].Start.After(b.Start)
	})
	s.visible = append(s.visible, Booking{})
	copy(s.visible[i+1:], s.visible[i:])
	s.visible[i] = b
}

func (s *Store) snapshotLocked() []Booking {
	return append([]Booking(nil), s.visible...)
}
