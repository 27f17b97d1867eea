package checkin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quickevent/backend/internal/credential"
	"github.com/quickevent/backend/internal/models"
)

// memStore is an in-memory stand-in for the pgx repositories. Insert holds
// the insert-once invariant under a mutex the way the database holds it
// under a unique constraint.
type memStore struct {
	mu            sync.Mutex
	registrations map[int64]*models.Registration
	events        map[int64]*models.Event
	checkIns      map[int64]*models.CheckIn
	nextID        int64
	failInsert    bool
}

func newMemStore() *memStore {
	return &memStore{
		registrations: make(map[int64]*models.Registration),
		events:        make(map[int64]*models.Event),
		checkIns:      make(map[int64]*models.CheckIn),
	}
}

func (s *memStore) GetByID(_ context.Context, id int64) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registrations[id], nil
}

func (s *memStore) GetByToken(_ context.Context, token string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reg := range s.registrations {
		if reg.QRToken == token {
			return reg, nil
		}
	}
	return nil, nil
}

func (s *memStore) eventByID(_ context.Context, id int64) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id], nil
}

func (s *memStore) Insert(_ context.Context, registrationID, eventID int64) (*models.CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return nil, errors.New("connection reset")
	}
	if existing, ok := s.checkIns[registrationID]; ok {
		return nil, &AlreadyCheckedInError{CheckedInAt: existing.CheckInTime}
	}
	s.nextID++
	ci := &models.CheckIn{
		ID:             s.nextID,
		RegistrationID: registrationID,
		EventID:        eventID,
		CheckInTime:    time.Now(),
	}
	s.checkIns[registrationID] = ci
	return ci, nil
}

type eventStoreFunc func(ctx context.Context, id int64) (*models.Event, error)

func (f eventStoreFunc) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	return f(ctx, id)
}

type notifyCall struct {
	organizerID, guestID string
	eventID              int64
	participantName      string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *fakeNotifier) NotifyCheckIn(organizerID, guestID string, eventID int64, participantName string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{organizerID, guestID, eventID, participantName})
}

func (n *fakeNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type fixture struct {
	store       *memStore
	notifier    *fakeNotifier
	credentials *credential.Service
	coordinator *Coordinator
	organizerID uuid.UUID
	guestID     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	notifier := &fakeNotifier{}
	creds := credential.NewService("test-secret")
	f := &fixture{
		store:       store,
		notifier:    notifier,
		credentials: creds,
		organizerID: uuid.New(),
		guestID:     uuid.New(),
	}
	f.coordinator = NewCoordinator(creds, store, eventStoreFunc(store.eventByID), store, notifier, zap.NewNop())
	return f
}

// seed creates an event owned by the fixture organizer and a registration
// with a freshly issued credential.
func (f *fixture) seed(eventID, registrationID int64) *models.Registration {
	f.store.events[eventID] = &models.Event{ID: eventID, Title: "Go Conference", OrganizerID: f.organizerID}
	reg := &models.Registration{
		ID:       registrationID,
		EventID:  eventID,
		UserID:   f.guestID,
		FullName: "Alice Nguyen",
		Email:    "alice@example.com",
		QRToken:  f.credentials.Issue(registrationID, eventID),
	}
	f.store.registrations[registrationID] = reg
	return reg
}

func TestCheckInSuccess(t *testing.T) {
	f := newFixture(t)
	reg := f.seed(7, 42)

	result, err := f.coordinator.CheckIn(context.Background(), reg.QRToken, f.organizerID)
	require.NoError(t, err)
	assert.Equal(t, CodeOK, result.Code)
	require.NotNil(t, result.CheckIn)
	assert.Equal(t, int64(42), result.CheckIn.RegistrationID)
	assert.Equal(t, int64(7), result.CheckIn.EventID)
	require.NotNil(t, result.Participant)
	assert.Equal(t, "Alice Nguyen", result.Participant.FullName)
	assert.Equal(t, "Go Conference", result.Participant.EventTitle)

	require.Eventually(t, func() bool { return f.notifier.callCount() == 1 }, time.Second, 5*time.Millisecond)
	f.notifier.mu.Lock()
	call := f.notifier.calls[0]
	f.notifier.mu.Unlock()
	assert.Equal(t, f.organizerID.String(), call.organizerID)
	assert.Equal(t, f.guestID.String(), call.guestID)
	assert.Equal(t, int64(7), call.eventID)
	assert.Equal(t, "Alice Nguyen", call.participantName)
}

func TestConcurrentScansExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	reg := f.seed(7, 42)
	const scans = 20

	results := make([]*Result, scans)
	var wg sync.WaitGroup
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.coordinator.CheckIn(context.Background(), reg.QRToken, f.organizerID)
			require.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	var winners, losers int
	var winnerTime time.Time
	for _, r := range results {
		switch r.Code {
		case CodeOK:
			winners++
			winnerTime = r.CheckIn.CheckInTime
		case CodeAlreadyCheckedIn:
			losers++
		default:
			t.Fatalf("unexpected code %q", r.Code)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, scans-1, losers)
	for _, r := range results {
		if r.Code == CodeAlreadyCheckedIn {
			assert.Equal(t, winnerTime, r.CheckedInAt, "losers must report the winner's admission time")
		}
	}
}

func TestRescanReportsOriginalTime(t *testing.T) {
	f := newFixture(t)
	reg := f.seed(7, 42)

	first, err := f.coordinator.CheckIn(context.Background(), reg.QRToken, f.organizerID)
	require.NoError(t, err)
	require.Equal(t, CodeOK, first.Code)

	second, err := f.coordinator.CheckIn(context.Background(), reg.QRToken, f.organizerID)
	require.NoError(t, err)
	assert.Equal(t, CodeAlreadyCheckedIn, second.Code)
	assert.Equal(t, first.CheckIn.CheckInTime, second.CheckedInAt)
	require.NotNil(t, second.Participant)
	assert.Equal(t, "Alice Nguyen", second.Participant.FullName)
}

func TestCancelledRegistrationNeverChecksIn(t *testing.T) {
	f := newFixture(t)
	reg := f.seed(7, 42)
	now := time.Now()
	reg.CancelledAt = &now

	result, err := f.coordinator.CheckIn(context.Background(), reg.QRToken, f.organizerID)
	require.NoError(t, err)
	assert.Equal(t, CodeRegistrationCancelled, result.Code)
	assert.Empty(t, f.store.checkIns)
}

func TestCredentialMismatchBeatsNotFound(t *testing.T) {
	f := newFixture(t)
	f.seed(7, 42)

	// A credential signed for event 8 while registration 42 belongs to event 7:
	// cross-event reuse must be reported as a mismatch, never as not-found.
	forged := f.credentials.Issue(42, 8)
	result, err := f.coordinator.CheckIn(context.Background(), forged, f.organizerID)
	require.NoError(t, err)
	assert.Equal(t, CodeCredentialMismatch, result.Code)
}

func TestWrongOrganizerIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	reg := f.seed(7, 42)

	result, err := f.coordinator.CheckIn(context.Background(), reg.QRToken, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, CodeUnauthorized, result.Code)
	assert.Empty(t, f.store.checkIns)
}

func TestUnsignedTokenFallsBackToStoredToken(t *testing.T) {
	f := newFixture(t)
	reg := f.seed(7, 42)
	reg.QRToken = "opaque-pre-signing-token"

	result, err := f.coordinator.CheckIn(context.Background(), "opaque-pre-signing-token", f.organizerID)
	require.NoError(t, err)
	assert.Equal(t, CodeOK, result.Code)
	assert.Equal(t, int64(42), result.CheckIn.RegistrationID)
}

func TestUnknownTokenIsInvalid(t *testing.T) {
	f := newFixture(t)
	f.seed(7, 42)

	result, err := f.coordinator.CheckIn(context.Background(), "no-such-token", f.organizerID)
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidCredential, result.Code)
}

func TestValidCredentialForDeletedRegistrationIsNotFound(t *testing.T) {
	f := newFixture(t)
	reg := f.seed(7, 42)
	token := reg.QRToken
	delete(f.store.registrations, 42)

	result, err := f.coordinator.CheckIn(context.Background(), token, f.organizerID)
	require.NoError(t, err)
	assert.Equal(t, CodeRegistrationNotFound, result.Code)
}

func TestStorageFailureSurfacesAsError(t *testing.T) {
	f := newFixture(t)
	reg := f.seed(7, 42)
	f.store.failInsert = true

	result, err := f.coordinator.CheckIn(context.Background(), reg.QRToken, f.organizerID)
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestNotifierAbsenceDoesNotFailCheckIn(t *testing.T) {
	f := newFixture(t)
	reg := f.seed(7, 42)
	f.coordinator = NewCoordinator(f.credentials, f.store, eventStoreFunc(f.store.eventByID), f.store, nil, zap.NewNop())

	result, err := f.coordinator.CheckIn(context.Background(), reg.QRToken, f.organizerID)
	require.NoError(t, err)
	assert.Equal(t, CodeOK, result.Code)
}
