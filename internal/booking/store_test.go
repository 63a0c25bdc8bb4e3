package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// mockRepo is a map-backed Repository with injectable failures and a
// fetch hook for exercising slow responses.
type mockRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]Booking

	fetchHook func(from, to time.Time)
	fetchErr  error
	createErr error
	updateErr error
	deleteErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{bookings: make(map[uuid.UUID]Booking)}
}

func (m *mockRepo) seed(b Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
}

func (m *mockRepo) get(id uuid.UUID) (Booking, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	return b, ok
}

func (m *mockRepo) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return &Provider{ID: id, Name: "Dr. Mock"}, nil
}

func (m *mockRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return &Patient{ID: id, Name: "Mock Patient"}, nil
}

func (m *mockRepo) FetchRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Booking, error) {
	if m.fetchHook != nil {
		m.fetchHook(from, to)
	}
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Booking, 0)
	for _, b := range m.bookings {
		if b.ProviderID == providerID && !b.Start.Before(from) && b.Start.Before(to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *mockRepo) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (m *mockRepo) CreateBooking(ctx context.Context, b *Booking) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = *b
	return nil
}

func (m *mockRepo) UpdateBooking(ctx context.Context, id uuid.UUID, u Update) (*Booking, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if u.Status != nil && !CanTransition(b.Status, *u.Status) {
		return nil, ErrInvalidTransition
	}
	u.apply(&b)
	m.bookings[id] = b
	return &b, nil
}

func (m *mockRepo) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return ErrBookingNotFound
	}
	delete(m.bookings, id)
	return nil
}

func (m *mockRepo) FindStartingBetween(ctx context.Context, from, to time.Time) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Booking, 0)
	for _, b := range m.bookings {
		if b.Status.Blocks() && b.Status != StatusCompleted && !b.Start.Before(from) && b.Start.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// blockingLocker parks every backend write until released, so tests can
// overlap operations deterministically.
type blockingLocker struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingLocker() *blockingLocker {
	return &blockingLocker{
		entered: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
}

func (l *blockingLocker) WithBookingLock(ctx context.Context, bookingID uuid.UUID, fn func(ctx context.Context) error) error {
	l.entered <- struct{}{}
	<-l.release
	return fn(ctx)
}

var (
	testProvider = uuid.New()
	weekFrom     = time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	weekTo       = weekFrom.AddDate(0, 0, 7)
)

func testBooking(start time.Time) Booking {
	return Booking{
		ID:              uuid.New(),
		ProviderID:      testProvider,
		PatientID:       uuid.New(),
		PatientName:     "Alice Example",
		Start:           start,
		DurationMinutes: 30,
		Status:          StatusScheduled,
	}
}

func validDraft(start time.Time) Draft {
	return Draft{
		ProviderID:      testProvider,
		PatientID:       uuid.New(),
		PatientName:     "Bob Example",
		Start:           start,
		DurationMinutes: 30,
	}
}

func containsBooking(list []Booking, id uuid.UUID) bool {
	for _, b := range list {
		if b.ID == id {
			return true
		}
	}
	return false
}

func TestStoreFetchRangeInstallsSorted(t *testing.T) {
	repo := newMockRepo()
	later := testBooking(weekFrom.Add(30 * time.Hour))
	earlier := testBooking(weekFrom.Add(10 * time.Hour))
	repo.seed(later)
	repo.seed(earlier)
	repo.seed(testBooking(weekTo.Add(time.Hour))) // outside the window

	store := NewStore(repo, nil, zap.NewNop(), time.Second)
	got, err := store.FetchRange(context.Background(), testProvider, weekFrom, weekTo)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d bookings, want 2", len(got))
	}
	if got[0].ID != earlier.ID || got[1].ID != later.ID {
		t.Error("bookings not in start order")
	}
}

func TestStoreFetchRangeError(t *testing.T) {
	repo := newMockRepo()
	repo.fetchErr = errors.New("backend down")

	store := NewStore(repo, nil, zap.NewNop(), time.Second)
	if _, err := store.FetchRange(context.Background(), testProvider, weekFrom, weekTo); err == nil {
		t.Fatal("want error from failed fetch")
	}
}

// A slow fetch answered after a newer one must not clobber the newer
// view. The caller of the stale fetch just gets the current list.
func TestStoreStaleFetchDiscarded(t *testing.T) {
	repo := newMockRepo()
	weekOne := testBooking(weekFrom.Add(10 * time.Hour))
	weekTwo := testBooking(weekTo.Add(10 * time.Hour))
	repo.seed(weekOne)
	repo.seed(weekTwo)

	slowStarted := make(chan struct{})
	slowRelease := make(chan struct{})
	var once sync.Once
	repo.fetchHook = func(from, to time.Time) {
		if from.Equal(weekFrom) {
			once.Do(func() {
				close(slowStarted)
				<-slowRelease
			})
		}
	}

	store := NewStore(repo, nil, zap.NewNop(), 5*time.Second)

	staleResult := make(chan []Booking, 1)
	go func() {
		got, err := store.FetchRange(context.Background(), testProvider, weekFrom, weekTo)
		if err != nil {
			t.Errorf("stale FetchRange: %v", err)
		}
		staleResult <- got
	}()

	<-slowStarted
	fresh, err := store.FetchRange(context.Background(), testProvider, weekTo, weekTo.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("fresh FetchRange: %v", err)
	}
	if !containsBooking(fresh, weekTwo.ID) {
		t.Fatal("fresh fetch missing its booking")
	}

	close(slowRelease)
	stale := <-staleResult

	if containsBooking(stale, weekOne.ID) {
		t.Error("stale fetch installed its own result")
	}
	if !containsBooking(stale, weekTwo.ID) {
		t.Error("stale fetch did not return the current view")
	}
	if visible := store.Visible(); !containsBooking(visible, weekTwo.ID) || containsBooking(visible, weekOne.ID) {
		t.Error("visible list clobbered by the stale response")
	}
}

func TestStoreCreateValidation(t *testing.T) {
	store := NewStore(newMockRepo(), nil, zap.NewNop(), time.Second)

	_, err := store.Create(context.Background(), Draft{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	want := map[string]bool{"ProviderID": false, "PatientName": false, "DurationMinutes": false}
	for _, f := range verr.Fields {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("field %s missing from %v", f, verr.Fields)
		}
	}

	bad := validDraft(weekFrom.Add(10 * time.Hour))
	email := "not-an-email"
	bad.Email = &email
	if _, err := store.Create(context.Background(), bad); !errors.As(err, &verr) {
		t.Fatalf("bad email: got %v, want ValidationError", err)
	}
}

func TestStoreCreatePersistsAndShows(t *testing.T) {
	repo := newMockRepo()
	store := NewStore(repo, nil, zap.NewNop(), time.Second)
	if _, err := store.FetchRange(context.Background(), testProvider, weekFrom, weekTo); err != nil {
		t.Fatal(err)
	}

	id, err := store.Create(context.Background(), validDraft(weekFrom.Add(10*time.Hour)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, ok := repo.get(id); !ok {
		t.Error("booking not persisted")
	}
	if !containsBooking(store.Visible(), id) {
		t.Error("booking not in the visible list")
	}
	if got, _ := repo.get(id); got.Status != StatusScheduled {
		t.Errorf("new booking status %s, want scheduled", got.Status)
	}
}

func TestStoreCreateRollbackOnBackendFailure(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = errors.New("insert failed")
	store := NewStore(repo, nil, zap.NewNop(), time.Second)
	if _, err := store.FetchRange(context.Background(), testProvider, weekFrom, weekTo); err != nil {
		t.Fatal(err)
	}

	_, err := store.Create(context.Background(), validDraft(weekFrom.Add(10*time.Hour)))
	if err == nil {
		t.Fatal("want error from failed create")
	}
	if got := store.Visible(); len(got) != 0 {
		t.Errorf("optimistic booking survived rollback: %v", got)
	}
}

func TestStoreUpdateRollbackRestoresPrior(t *testing.T) {
	repo := newMockRepo()
	b := testBooking(weekFrom.Add(10 * time.Hour))
	repo.seed(b)
	repo.updateErr = errors.New("update failed")

	store := NewStore(repo, nil, zap.NewNop(), time.Second)
	if _, err := store.FetchRange(context.Background(), testProvider, weekFrom, weekTo); err != nil {
		t.Fatal(err)
	}

	name := "Renamed"
	if err := store.Update(context.Background(), b.ID, Update{PatientName: &name}); err == nil {
		t.Fatal("want error from failed update")
	}

	visible := store.Visible()
	if len(visible) != 1 {
		t.Fatalf("visible has %d entries, want 1", len(visible))
	}
	if visible[0].PatientName != b.PatientName {
		t.Errorf("rollback left name %q, want %q", visible[0].PatientName, b.PatientName)
	}
}

func TestStoreUpdateRejectsInvalidTransition(t *testing.T) {
	repo := newMockRepo()
	b := testBooking(weekFrom.Add(10 * time.Hour))
	b.Status = StatusCompleted
	repo.seed(b)

	store := NewStore(repo, nil, zap.NewNop(), time.Second)
	if _, err := store.FetchRange(context.Background(), testProvider, weekFrom, weekTo); err != nil {
		t.Fatal(err)
	}

	status := StatusScheduled
	err := store.Update(context.Background(), b.ID, Update{Status: &status})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
	if got, _ := repo.get(b.ID); got.Status != StatusCompleted {
		t.Error("backend row changed despite rejected transition")
	}
}

func TestStoreUpdateDurationValidation(t *testing.T) {
	store := NewStore(newMockRepo(), nil, zap.NewNop(), time.Second)

	zero := 0
	err := store.Update(context.Background(), uuid.New(), Update{DurationMinutes: &zero})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}

func TestStoreUpdateOutsideViewStillPersists(t *testing.T) {
	repo := newMockRepo()
	b := testBooking(weekFrom.Add(10 * time.Hour))
	repo.seed(b)

	// No fetch has happened; the booking is not in any visible list.
	store := NewStore(repo, nil, zap.NewNop(), time.Second)

	name := "Renamed"
	if err := store.Update(context.Background(), b.ID, Update{PatientName: &name}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got, _ := repo.get(b.ID); got.PatientName != "Renamed" {
		t.Errorf("backend name %q, want Renamed", got.PatientName)
	}
}

func TestStoreDelete(t *testing.T) {
	repo := newMockRepo()
	b := testBooking(weekFrom.Add(10 * time.Hour))
	repo.seed(b)

	store := NewStore(repo, nil, zap.NewNop(), time.Second)
	if _, err := store.FetchRange(context.Background(), testProvider, weekFrom, weekTo); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(context.Background(), b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if containsBooking(store.Visible(), b.ID) {
		t.Error("deleted booking still visible")
	}
	if _, ok := repo.get(b.ID); ok {
		t.Error("deleted booking still persisted")
	}
}

func TestStoreDeleteRollbackOnBackendFailure(t *testing.T) {
	repo := newMockRepo()
	b := testBooking(weekFrom.Add(10 * time.Hour))
	repo.seed(b)
	repo.deleteErr = errors.New("delete failed")

	store := NewStore(repo, nil, zap.NewNop(), time.Second)
	if _, err := store.FetchRange(context.Background(), testProvider, weekFrom, weekTo); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(context.Background(), b.ID); err == nil {
		t.Fatal("want error from failed delete")
	}
	if !containsBooking(store.Visible(), b.ID) {
		t.Error("booking not restored after failed delete")
	}
}

// An optimistic create still in flight must survive a completing fetch.
func TestStorePendingOpReplayedAcrossFetch(t *testing.T) {
	repo := newMockRepo()
	locker := newBlockingLocker()
	store := NewStore(repo, locker, zap.NewNop(), 5*time.Second)

	// Prime the view without going through the locker.
	store.mu.Lock()
	store.view = viewKey{providerID: testProvider, from: weekFrom, to: weekTo}
	store.mu.Unlock()

	done := make(chan error, 1)
	var id uuid.UUID
	go func() {
		var err error
		id, err = store.Create(context.Background(), validDraft(weekFrom.Add(10*time.Hour)))
		done <- err
	}()

	<-locker.entered // create is applied optimistically, write parked

	got, err := store.FetchRange(context.Background(), testProvider, weekFrom, weekTo)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("fetch during in-flight create returned %d bookings, want the optimistic 1", len(got))
	}

	close(locker.release)
	if err := <-done; err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := repo.get(id); !ok {
		t.Error("booking not persisted after release")
	}
}

// A second edit to the same booking waits for the first to finish.
func TestStoreSecondEditQueues(t *testing.T) {
	repo := newMockRepo()
	b := testBooking(weekFrom.Add(10 * time.Hour))
	repo.seed(b)
	locker := newBlockingLocker()

	store := NewStore(repo, locker, zap.NewNop(), 5*time.Second)

	first := make(chan error, 1)
	second := make(chan error, 1)
	nameA, nameB := "First Edit", "Second Edit"

	go func() { first <- store.Update(context.Background(), b.ID, Update{PatientName: &nameA}) }()
	<-locker.entered

	go func() { second <- store.Update(context.Background(), b.ID, Update{PatientName: &nameB}) }()

	select {
	case <-locker.entered:
		t.Fatal("second edit reached the backend while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	locker.release <- struct{}{}
	if err := <-first; err != nil {
		t.Fatalf("first update: %v", err)
	}

	<-locker.entered
	locker.release <- struct{}{}
	if err := <-second; err != nil {
		t.Fatalf("second update: %v", err)
	}

	if got, _ := repo.get(b.ID); got.PatientName != nameB {
		t.Errorf("final name %q, want %q", got.PatientName, nameB)
	}
}
