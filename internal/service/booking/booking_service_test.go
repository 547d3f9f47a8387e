package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/slotbot/internal/clock"
	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/Domenick1991/slotbot/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking, event domain.BookingEvent) error {
	args := m.Called(ctx, booking, event)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListActiveByRequester(ctx context.Context, requesterID int64, dates []string) ([]domain.Booking, error) {
	args := m.Called(ctx, requesterID, dates)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListActiveByDates(ctx context.Context, dates []string) ([]domain.Booking, error) {
	args := m.Called(ctx, dates)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) CountOverlapping(ctx context.Context, date string, interval domain.Interval, excludeID int64) (int, error) {
	args := m.Called(ctx, date, interval, excludeID)
	return args.Int(0), args.Error(1)
}

func (m *MockBookingRepository) ApplyTransition(ctx context.Context, id int64, tr domain.Transition) (*domain.Booking, error) {
	args := m.Called(ctx, id, tr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) MarkReminderSent(ctx context.Context, id int64, event domain.BookingEvent) (bool, error) {
	args := m.Called(ctx, id, event)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) MarkGroupNotified(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) Scan(ctx context.Context, filter repository.ScanFilter) ([]domain.Booking, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListByRequester(ctx context.Context, requesterID int64, limit int) ([]domain.Booking, error) {
	args := m.Called(ctx, requesterID, limit)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListRecent(ctx context.Context, limit int) ([]domain.Booking, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListEvents(ctx context.Context, bookingID int64) ([]domain.BookingEvent, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).([]domain.BookingEvent), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyReminder(ctx context.Context, booking domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockNotifier) NotifyCancelled(ctx context.Context, booking domain.Booking, scope domain.RecipientScope) error {
	args := m.Called(ctx, booking, scope)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) AcquireSlotLock(ctx context.Context, date string, start domain.TimeOfDay, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, date, start, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) ReleaseSlotLock(ctx context.Context, date string, start domain.TimeOfDay) error {
	args := m.Called(ctx, date, start)
	return args.Error(0)
}

func (m *MockCache) InvalidateSchedule(ctx context.Context, date string) error {
	args := m.Called(ctx, date)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value any) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

var msk = time.FixedZone("MSK", 3*60*60)

func fixedClock(hour, minute int) *clock.Clock {
	now := time.Date(2025, 6, 1, hour, minute, 0, 0, msk)
	return clock.NewFixed(msk, func() time.Time { return now })
}

func defaultSettings() Settings {
	return Settings{
		MaxDuration:     2 * time.Hour,
		ReminderLead:    5 * time.Minute,
		Grace:           5 * time.Minute,
		SlotLockTTL:     10 * time.Second,
		AdminIDs:        []int64{1},
		GroupRetryAfter: time.Minute,
	}
}

func TestCreateBooking_Success(t *testing.T) {
	repo := new(MockBookingRepository)
	cache := new(MockCache)
	producer := new(MockProducer)
	svc := NewBookingService(repo, fixedClock(9, 0), new(MockNotifier), defaultSettings(),
		WithCache(cache), WithProducer(producer, "booking-events"))

	ctx := context.Background()
	start := domain.MustTimeOfDay("10:00")
	cache.On("AcquireSlotLock", ctx, "2025-06-01", start, 10*time.Second).Return(true, nil)
	cache.On("ReleaseSlotLock", mock.Anything, "2025-06-01", start).Return(nil)
	cache.On("InvalidateSchedule", ctx, "2025-06-01").Return(nil)
	repo.On("CountOverlapping", ctx, "2025-06-01", domain.Interval{Start: start, End: domain.MustTimeOfDay("11:00")}, int64(0)).Return(0, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Booking"), mock.AnythingOfType("domain.BookingEvent")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Booking).ID = 7
		}).Return(nil)
	producer.On("Publish", ctx, "booking-events", "7", mock.Anything).Return(nil)

	b, err := svc.CreateBooking(ctx, CreateBookingInput{
		RequesterID: 42, RequesterName: "alice", Date: "2025-06-01", Start: "10:00", End: "11:00",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), b.ID)
	assert.Equal(t, domain.BookingStatusPending, b.Status)
	assert.Equal(t, time.Hour, b.Duration())

	event := repo.Calls[1].Arguments.Get(2).(domain.BookingEvent)
	assert.Equal(t, domain.EventCreated, event.Kind)
	assert.Equal(t, domain.ActorUser, event.ActorRole)
	assert.Equal(t, int64(42), *event.ActorID)

	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
	producer.AssertExpectations(t)
}

func TestCreateBooking_InvalidFormatSkipsStore(t *testing.T) {
	repo := new(MockBookingRepository)
	svc := NewBookingService(repo, fixedClock(9, 0), new(MockNotifier), defaultSettings())

	_, err := svc.CreateBooking(context.Background(), CreateBookingInput{Date: "01.06.2025", Start: "10:00", End: "11:00"})
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)

	_, err = svc.CreateBooking(context.Background(), CreateBookingInput{Date: "2025-06-01", Start: "10", End: "11:00"})
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)

	repo.AssertNotCalled(t, "CountOverlapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBooking_RejectsPastAndOffGrid(t *testing.T) {
	repo := new(MockBookingRepository)
	svc := NewBookingService(repo, fixedClock(13, 55), new(MockNotifier), defaultSettings())
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, CreateBookingInput{Date: "2025-06-01", Start: "13:30", End: "14:00"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "start time is in the past", verr.Reason)

	_, err = svc.CreateBooking(ctx, CreateBookingInput{Date: "2025-06-01", Start: "14:15", End: "15:00"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "times must be on 30-minute boundaries", verr.Reason)

	_, err = svc.CreateBooking(ctx, CreateBookingInput{Date: "2025-06-01", Start: "24:00", End: "24:00"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

// The menu offers only boundaries strictly after now, so a start equal to now is past too.
func TestCreateBooking_StartAtNowIsPast(t *testing.T) {
	repo := new(MockBookingRepository)
	svc := NewBookingService(repo, fixedClock(14, 0), new(MockNotifier), defaultSettings())

	_, err := svc.CreateBooking(context.Background(), CreateBookingInput{
		RequesterID: 1, Date: "2025-06-01", Start: "14:00", End: "15:00",
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "start time is in the past", verr.Reason)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

// A booking of 14:00-16:30 requested at 13:55 exceeds the two hour limit.
func TestCreateBooking_OverMaxDuration(t *testing.T) {
	repo := new(MockBookingRepository)
	svc := NewBookingService(repo, fixedClock(13, 55), new(MockNotifier), defaultSettings())

	_, err := svc.CreateBooking(context.Background(), CreateBookingInput{
		RequesterID: 1, Date: "2025-06-01", Start: "14:00", End: "16:30",
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "maximum booking duration is 2 h", verr.Reason)
	repo.AssertNotCalled(t, "CountOverlapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBooking_SlotLocked(t *testing.T) {
	repo := new(MockBookingRepository)
	cache := new(MockCache)
	svc := NewBookingService(repo, fixedClock(9, 0), new(MockNotifier), defaultSettings(), WithCache(cache))
	ctx := context.Background()

	cache.On("AcquireSlotLock", ctx, "2025-06-01", domain.MustTimeOfDay("10:00"), 10*time.Second).Return(false, nil)

	_, err := svc.CreateBooking(ctx, CreateBookingInput{RequesterID: 1, Date: "2025-06-01", Start: "10:00", End: "11:00"})

	assert.ErrorIs(t, err, domain.ErrValidationFailed)
	assert.EqualError(t, err, "slot already taken")
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBooking_LockErrorFallsBackToStore(t *testing.T) {
	repo := new(MockBookingRepository)
	cache := new(MockCache)
	svc := NewBookingService(repo, fixedClock(9, 0), new(MockNotifier), defaultSettings(), WithCache(cache))
	ctx := context.Background()

	cache.On("AcquireSlotLock", ctx, "2025-06-01", domain.MustTimeOfDay("10:00"), 10*time.Second).Return(false, errors.New("redis down"))
	cache.On("InvalidateSchedule", ctx, "2025-06-01").Return(errors.New("redis down"))
	repo.On("CountOverlapping", ctx, "2025-06-01", mock.Anything, int64(0)).Return(0, nil)
	repo.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.CreateBooking(ctx, CreateBookingInput{RequesterID: 1, Date: "2025-06-01", Start: "10:00", End: "11:00"})

	assert.NoError(t, err)
	cache.AssertNotCalled(t, "ReleaseSlotLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmBooking_IllegalFromCancelled(t *testing.T) {
	repo := new(MockBookingRepository)
	svc := NewBookingService(repo, fixedClock(9, 0), new(MockNotifier), defaultSettings())
	ctx := context.Background()

	current := &domain.Booking{ID: 5, RequesterID: 42, Date: "2025-06-01", Status: domain.BookingStatusCancelledTimeout}
	repo.On("GetByID", ctx, int64(5)).Return(current, nil)
	repo.On("ApplyTransition", ctx, int64(5), mock.AnythingOfType("domain.Transition")).
		Return(current, &domain.TransitionError{BookingID: 5, Current: current.Status, Target: domain.BookingStatusConfirmed})

	_, err := svc.ConfirmBooking(ctx, 5, domain.UserActor(42))

	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.BookingStatusCancelledTimeout, terr.Current)
}

func TestConfirmBooking_ForbiddenForOtherUser(t *testing.T) {
	repo := new(MockBookingRepository)
	svc := NewBookingService(repo, fixedClock(9, 0), new(MockNotifier), defaultSettings())
	ctx := context.Background()

	repo.On("GetByID", ctx, int64(5)).Return(&domain.Booking{ID: 5, RequesterID: 42, Status: domain.BookingStatusPending}, nil)

	_, err := svc.ConfirmBooking(ctx, 5, domain.UserActor(99))

	assert.ErrorIs(t, err, domain.ErrForbidden)
	repo.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelBooking_AdminFanOut(t *testing.T) {
	repo := new(MockBookingRepository)
	notifier := new(MockNotifier)
	svc := NewBookingService(repo, fixedClock(9, 0), notifier, defaultSettings())
	ctx := context.Background()

	current := &domain.Booking{ID: 5, RequesterID: 42, Date: "2025-06-01", Status: domain.BookingStatusConfirmed}
	cancelled := &domain.Booking{ID: 5, RequesterID: 42, Date: "2025-06-01", Status: domain.BookingStatusCancelledByAdmin, CancelledBy: "admin"}
	repo.On("GetByID", ctx, int64(5)).Return(current, nil)
	repo.On("ApplyTransition", ctx, int64(5), mock.MatchedBy(func(tr domain.Transition) bool {
		return tr.To == domain.BookingStatusCancelledByAdmin && tr.Event.Kind == domain.EventCancelledAdmin &&
			tr.CancelledBy == "admin" && tr.CancelReason == "maintenance"
	})).Return(cancelled, nil)
	notifier.On("NotifyCancelled", ctx, *cancelled, domain.RecipientRequester).Return(nil)
	notifier.On("NotifyCancelled", ctx, *cancelled, domain.RecipientGroup).Return(nil)
	repo.On("MarkGroupNotified", ctx, int64(5)).Return(true, nil)

	b, err := svc.CancelBooking(ctx, 5, domain.AdminActor(1), "maintenance")

	require.NoError(t, err)
	assert.True(t, b.GroupNotified)
	notifier.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestCancelBooking_AdminRoleRequiresListedID(t *testing.T) {
	repo := new(MockBookingRepository)
	svc := NewBookingService(repo, fixedClock(9, 0), new(MockNotifier), defaultSettings())
	ctx := context.Background()

	repo.On("GetByID", ctx, int64(5)).Return(&domain.Booking{ID: 5, RequesterID: 42, Date: "2025-06-01", Status: domain.BookingStatusPending}, nil)

	_, err := svc.CancelBooking(ctx, 5, domain.AdminActor(999), "mine now")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.ConfirmBooking(ctx, 5, domain.AdminActor(999))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	repo.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelBooking_GroupNoticeFailureLeavesFlag(t *testing.T) {
	repo := new(MockBookingRepository)
	notifier := new(MockNotifier)
	svc := NewBookingService(repo, fixedClock(9, 0), notifier, defaultSettings())
	ctx := context.Background()

	current := &domain.Booking{ID: 5, RequesterID: 42, Date: "2025-06-01", Status: domain.BookingStatusPending}
	cancelled := &domain.Booking{ID: 5, RequesterID: 42, Date: "2025-06-01", Status: domain.BookingStatusCancelledByUser, CancelledBy: "user"}
	repo.On("GetByID", ctx, int64(5)).Return(current, nil)
	repo.On("ApplyTransition", ctx, int64(5), mock.Anything).Return(cancelled, nil)
	notifier.On("NotifyCancelled", ctx, *cancelled, domain.RecipientRequester).Return(errors.New("chat blocked"))
	notifier.On("NotifyCancelled", ctx, *cancelled, domain.RecipientGroup).Return(errors.New("chat unavailable"))

	b, err := svc.CancelBooking(ctx, 5, domain.UserActor(42), "")

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelledByUser, b.Status)
	assert.False(t, b.GroupNotified)
	repo.AssertNotCalled(t, "MarkGroupNotified", mock.Anything, mock.Anything)
}

func TestSendReminder_OnlyAfterDelivery(t *testing.T) {
	repo := new(MockBookingRepository)
	notifier := new(MockNotifier)
	svc := NewBookingService(repo, fixedClock(13, 56), notifier, defaultSettings())
	ctx := context.Background()

	b := &domain.Booking{ID: 3, Date: "2025-06-01", Start: domain.MustTimeOfDay("14:00"), End: domain.MustTimeOfDay("15:00"), Status: domain.BookingStatusPending}
	repo.On("GetByID", ctx, int64(3)).Return(b, nil)
	notifier.On("NotifyReminder", ctx, *b).Return(errors.New("timeout")).Once()

	sent, err := svc.SendReminder(ctx, 3)

	assert.False(t, sent)
	assert.ErrorIs(t, err, domain.ErrNotificationFailed)
	repo.AssertNotCalled(t, "MarkReminderSent", mock.Anything, mock.Anything, mock.Anything)

	notifier.On("NotifyReminder", ctx, *b).Return(nil).Once()
	repo.On("MarkReminderSent", ctx, int64(3), mock.MatchedBy(func(e domain.BookingEvent) bool {
		return e.Kind == domain.EventRemindSent && e.ActorRole == domain.ActorSystem
	})).Return(true, nil)

	sent, err = svc.SendReminder(ctx, 3)

	assert.True(t, sent)
	assert.NoError(t, err)
}

func TestDuePredicates(t *testing.T) {
	svc := NewBookingService(new(MockBookingRepository), fixedClock(14, 5), new(MockNotifier), defaultSettings())
	pending := domain.Booking{Date: "2025-06-01", Start: domain.MustTimeOfDay("14:00"), End: domain.MustTimeOfDay("15:00"), Status: domain.BookingStatusPending}

	assert.False(t, svc.ReminderDue(pending), "start already passed")
	assert.False(t, svc.TimeoutDue(pending), "never reminded")

	pending.ReminderSent = true
	assert.True(t, svc.TimeoutDue(pending))

	soon := pending
	soon.ReminderSent = false
	soon.Start = domain.MustTimeOfDay("14:10")
	assert.True(t, svc.ReminderDue(soon))
	soon.Start = domain.MustTimeOfDay("14:30")
	assert.False(t, svc.ReminderDue(soon))

	confirmed := domain.Booking{Date: "2025-06-01", Start: domain.MustTimeOfDay("13:00"), End: domain.MustTimeOfDay("14:00"), Status: domain.BookingStatusConfirmed}
	assert.True(t, svc.CompletionDue(confirmed))
	confirmed.End = domain.MustTimeOfDay("14:30")
	assert.False(t, svc.CompletionDue(confirmed))
}

func TestHistoryLimits(t *testing.T) {
	repo := new(MockBookingRepository)
	svc := NewBookingService(repo, fixedClock(9, 0), new(MockNotifier), defaultSettings())
	ctx := context.Background()

	repo.On("ListByRequester", ctx, int64(42), 20).Return([]domain.Booking{{ID: 1}}, nil)
	repo.On("ListRecent", ctx, 50).Return([]domain.Booking{}, nil)

	got, err := svc.UserHistory(ctx, 42, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.RecentHistory(ctx, 50)
	assert.NoError(t, err)
}

type recordingNotifier struct {
	mu        sync.Mutex
	reminders []int64
	requester []int64
	group     []int64
	failGroup bool
}

func (n *recordingNotifier) NotifyReminder(_ context.Context, b domain.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, b.ID)
	return nil
}

func (n *recordingNotifier) NotifyCancelled(_ context.Context, b domain.Booking, scope domain.RecipientScope) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if scope == domain.RecipientGroup {
		if n.failGroup {
			return errors.New("group chat unavailable")
		}
		n.group = append(n.group, b.ID)
		return nil
	}
	n.requester = append(n.requester, b.ID)
	return nil
}

type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func setupStoreService(t *testing.T, start time.Time) (*BookingService, *repository.SQLiteBookingRepository, *recordingNotifier, *movableClock) {
	t.Helper()
	repo, err := repository.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	mc := &movableClock{now: start}
	notifier := &recordingNotifier{}
	svc := NewBookingService(repo, clock.NewFixed(msk, mc.Now), notifier, defaultSettings())
	return svc, repo, notifier, mc
}

// Two requests for 10:00-11:00 shown the same menu: only the first commits.
func TestConcurrentRequestsSameSlot(t *testing.T) {
	svc, repo, _, _ := setupStoreService(t, time.Date(2025, 6, 1, 8, 0, 0, 0, msk))
	ctx := context.Background()

	menuA, err := svc.RequestBookingMenu(ctx, 1, "2025-06-01")
	require.NoError(t, err)
	menuB, err := svc.RequestBookingMenu(ctx, 2, "2025-06-01")
	require.NoError(t, err)
	assert.Contains(t, menuA.StartSlots, domain.MustTimeOfDay("10:00"))
	assert.Equal(t, menuA.StartSlots, menuB.StartSlots)

	_, err = svc.ChooseEnd(ctx, CreateBookingInput{RequesterID: 1, Date: "2025-06-01", Start: "10:00", End: "11:00"})
	require.NoError(t, err)

	_, err = svc.ChooseEnd(ctx, CreateBookingInput{RequesterID: 2, Date: "2025-06-01", Start: "10:00", End: "11:00"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "slot already taken", verr.Reason)

	active, err := repo.ListActiveByDates(ctx, []string{"2025-06-01"})
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestConcurrentCreatesOnlyOneWins(t *testing.T) {
	svc, repo, _, _ := setupStoreService(t, time.Date(2025, 6, 1, 8, 0, 0, 0, msk))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateBooking(ctx, CreateBookingInput{
				RequesterID: int64(i + 1), Date: "2025-06-01", Start: "10:00", End: "11:00",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrValidationFailed)
	}
	assert.Equal(t, 1, ok)

	active, err := repo.ListActiveByDates(ctx, []string{"2025-06-01"})
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestMenuAlreadyBooked(t *testing.T) {
	svc, _, _, _ := setupStoreService(t, time.Date(2025, 6, 1, 8, 0, 0, 0, msk))
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, CreateBookingInput{RequesterID: 1, Date: "2025-06-02", Start: "10:00", End: "11:00"})
	require.NoError(t, err)

	menu, err := svc.RequestBookingMenu(ctx, 1, "2025-06-02")
	require.NoError(t, err)
	assert.True(t, menu.AlreadyBooked())
	assert.Empty(t, menu.StartSlots)

	other, err := svc.RequestBookingMenu(ctx, 2, "2025-06-02")
	require.NoError(t, err)
	assert.False(t, other.AlreadyBooked())
	assert.Len(t, other.StartSlots, 47)
	assert.Equal(t, 2*time.Hour, other.MaxDuration)
	assert.NotContains(t, other.StartSlots, domain.MustTimeOfDay("10:00"))

	ends, err := svc.ChooseStart(ctx, "2025-06-02", "09:00")
	require.NoError(t, err)
	assert.Equal(t, []domain.TimeOfDay{domain.MustTimeOfDay("09:30"), domain.MustTimeOfDay("10:00")}, ends.EndSlots)

	_, err = svc.RequestBookingMenu(ctx, 1, "2025-05-31")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

// A pending booking unconfirmed five minutes after start is cancelled by the
// system and announced once to the requester and once to the group.
func TestTimeoutCancellationFlow(t *testing.T) {
	svc, repo, notifier, mc := setupStoreService(t, time.Date(2025, 6, 1, 13, 0, 0, 0, msk))
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, CreateBookingInput{RequesterID: 7, Date: "2025-06-01", Start: "14:00", End: "15:00"})
	require.NoError(t, err)

	mc.Set(time.Date(2025, 6, 1, 13, 56, 0, 0, msk))
	sent, err := svc.SendReminder(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, sent)
	sent, err = svc.SendReminder(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, []int64{b.ID}, notifier.reminders)

	mc.Set(time.Date(2025, 6, 1, 14, 4, 0, 0, msk))
	expired, err := svc.ExpireUnconfirmed(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, expired)

	mc.Set(time.Date(2025, 6, 1, 14, 5, 0, 0, msk))
	expired, err = svc.ExpireUnconfirmed(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, expired)
	expired, err = svc.ExpireUnconfirmed(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, expired)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelledTimeout, got.Status)
	assert.Equal(t, "system", got.CancelledBy)
	assert.True(t, got.GroupNotified)
	assert.Equal(t, []int64{b.ID}, notifier.requester)
	assert.Equal(t, []int64{b.ID}, notifier.group)

	events, err := svc.ListEvents(ctx, b.ID)
	require.NoError(t, err)
	kinds := make([]domain.EventKind, 0, len(events))
	for i, e := range events {
		kinds = append(kinds, e.Kind)
		if i > 0 {
			assert.True(t, e.At.After(events[i-1].At))
		}
	}
	assert.Equal(t, []domain.EventKind{domain.EventCreated, domain.EventRemindSent, domain.EventCancelledTimeout}, kinds)

	_, err = svc.ConfirmBooking(ctx, b.ID, domain.UserActor(7))
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.BookingStatusCancelledTimeout, terr.Current)
}

func TestRetryGroupNotice(t *testing.T) {
	svc, repo, notifier, mc := setupStoreService(t, time.Date(2025, 6, 1, 8, 0, 0, 0, msk))
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, CreateBookingInput{RequesterID: 7, Date: "2025-06-01", Start: "10:00", End: "11:00"})
	require.NoError(t, err)

	notifier.failGroup = true
	cancelled, err := svc.CancelBooking(ctx, b.ID, domain.UserActor(7), "changed plans")
	require.NoError(t, err)
	assert.False(t, cancelled.GroupNotified)

	notifier.failGroup = false
	done, err := svc.RetryGroupNotice(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, done, "a fresh cancellation is left to the cancelling call")
	assert.Empty(t, notifier.group)

	mc.Set(time.Date(2025, 6, 1, 8, 1, 0, 0, msk))
	done, err = svc.RetryGroupNotice(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, done)
	done, err = svc.RetryGroupNotice(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, done)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.GroupNotified)
	assert.Equal(t, []int64{b.ID}, notifier.group)
}

// A confirmed booking past its end completes without any notice.
func TestCompleteBookingIsSilent(t *testing.T) {
	svc, repo, notifier, mc := setupStoreService(t, time.Date(2025, 6, 1, 8, 0, 0, 0, msk))
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, CreateBookingInput{RequesterID: 7, Date: "2025-06-01", Start: "10:00", End: "11:00"})
	require.NoError(t, err)
	_, err = svc.ConfirmBooking(ctx, b.ID, domain.UserActor(7))
	require.NoError(t, err)

	mc.Set(time.Date(2025, 6, 1, 10, 59, 0, 0, msk))
	done, err := svc.CompleteBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, done)

	mc.Set(time.Date(2025, 6, 1, 11, 0, 0, 0, msk))
	done, err = svc.CompleteBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, done)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Empty(t, notifier.requester)
	assert.Empty(t, notifier.group)
	assert.Empty(t, notifier.reminders)
}
