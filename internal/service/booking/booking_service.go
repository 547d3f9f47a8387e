package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/Domenick1991/slotbot/internal/kafka"
	"github.com/Domenick1991/slotbot/internal/repository"
	"github.com/Domenick1991/slotbot/internal/slots"
)

const (
	cancelledBySystem = "system"
	cancelledByUser   = "user"
	cancelledByAdmin  = "admin"
)

type BookingUseCase interface {
	RequestBookingMenu(ctx context.Context, requesterID int64, date string) (*Menu, error)
	ChooseStart(ctx context.Context, date, start string) (*EndMenu, error)
	ChooseEnd(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	ConfirmBooking(ctx context.Context, id int64, actor domain.Actor) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id int64, actor domain.Actor, reason string) (*domain.Booking, error)
	SendReminder(ctx context.Context, id int64) (bool, error)
	ExpireUnconfirmed(ctx context.Context, id int64) (bool, error)
	CompleteBooking(ctx context.Context, id int64) (bool, error)
	RetryGroupNotice(ctx context.Context, id int64) (bool, error)
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	ListEvents(ctx context.Context, id int64) ([]domain.BookingEvent, error)
	UserHistory(ctx context.Context, requesterID int64, limit int) ([]domain.Booking, error)
	RecentHistory(ctx context.Context, limit int) ([]domain.Booking, error)
}

type Clock interface {
	Now() time.Time
	Today() string
	DateAfter(days int) string
	MinuteOfDay() int
	At(date string, t domain.TimeOfDay) time.Time
	MinutesUntil(t time.Time) int
}

// Notifier delivers booking notices. Errors only drive the reminder and
// group-notified flags; they never undo a transition.
type Notifier interface {
	NotifyReminder(ctx context.Context, booking domain.Booking) error
	NotifyCancelled(ctx context.Context, booking domain.Booking, scope domain.RecipientScope) error
}

type Cache interface {
	AcquireSlotLock(ctx context.Context, date string, start domain.TimeOfDay, ttl time.Duration) (bool, error)
	ReleaseSlotLock(ctx context.Context, date string, start domain.TimeOfDay) error
	InvalidateSchedule(ctx context.Context, date string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// BusySource lists the active bookings of a date for menus. It may serve a cached copy.
type BusySource interface {
	ActiveBookings(ctx context.Context, date string) ([]domain.Booking, error)
}

type Settings struct {
	MaxDuration  time.Duration
	ReminderLead time.Duration
	Grace        time.Duration
	SlotLockTTL  time.Duration
	// AdminIDs are the only user ids allowed to act with the admin role.
	AdminIDs []int64
	// GroupRetryAfter is how old a cancellation must be before
	// RetryGroupNotice announces it, leaving the cancelling call time to
	// send its own group notice.
	GroupRetryAfter time.Duration
}

type BookingService struct {
	bookings   repository.BookingRepository
	arbiter    *Arbiter
	calculator *slots.Calculator
	clock      Clock
	notifier   Notifier
	cache      Cache
	busy       BusySource
	producer   Producer
	eventTopic string
	settings   Settings
	logger     *slog.Logger
}

type CreateBookingInput struct {
	RequesterID   int64  `json:"requester_id"`
	RequesterName string `json:"requester_name"`
	Date          string `json:"date"`
	Start         string `json:"start"`
	End           string `json:"end"`
}

type BookingServiceOption func(*BookingService)

func WithCache(cache Cache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithBusySource(src BusySource) BookingServiceOption {
	return func(s *BookingService) {
		s.busy = src
	}
}

func WithProducer(producer Producer, topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.eventTopic = topic
	}
}

func WithLogger(logger *slog.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = logger
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	clock Clock,
	notifier Notifier,
	settings Settings,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:   bookings,
		arbiter:    NewArbiter(bookings, settings.MaxDuration),
		calculator: slots.NewCalculator(clock, settings.MaxDuration),
		clock:      clock,
		notifier:   notifier,
		settings:   settings,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.busy == nil {
		service.busy = storeBusySource{bookings}
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	date, err := domain.ParseDate(input.Date)
	if err != nil {
		return nil, err
	}
	start, err := domain.ParseTimeOfDay(input.Start)
	if err != nil {
		return nil, err
	}
	end, err := domain.ParseTimeOfDay(input.End)
	if err != nil {
		return nil, err
	}
	if start >= domain.EndOfDay {
		return nil, domain.NewValidationError("start time must be before 24:00")
	}
	if !start.OnBoundary() || !end.OnBoundary() {
		return nil, domain.NewValidationError("times must be on 30-minute boundaries")
	}
	now := s.clock.Now()
	if !s.clock.At(date, start).After(now) {
		return nil, domain.NewValidationError("start time is in the past")
	}

	if s.cache != nil && s.settings.SlotLockTTL > 0 {
		ok, err := s.cache.AcquireSlotLock(ctx, date, start, s.settings.SlotLockTTL)
		switch {
		case err != nil:
			s.logger.Warn("slot lock unavailable, relying on store checks", "date", date, "start", start, "error", err)
		case !ok:
			return nil, domain.NewValidationError(reasonSlotTaken)
		default:
			defer func() {
				if err := s.cache.ReleaseSlotLock(context.WithoutCancel(ctx), date, start); err != nil {
					s.logger.Warn("failed to release slot lock", "date", date, "start", start, "error", err)
				}
			}()
		}
	}

	ok, reason, err := s.arbiter.ValidateSlot(ctx, date, start, end, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NewValidationError(reason)
	}

	booking := &domain.Booking{
		RequesterID:   input.RequesterID,
		RequesterName: input.RequesterName,
		Date:          date,
		Start:         start,
		End:           end,
		Status:        domain.BookingStatusPending,
		CreatedAt:     now,
	}
	event := domain.NewEvent(domain.EventCreated, domain.UserActor(input.RequesterID), "", now)
	if err := s.bookings.Create(ctx, booking, event); err != nil {
		return nil, err
	}

	s.logger.Info("booking created", "booking_id", booking.ID, "requester_id", booking.RequesterID,
		"date", booking.Date, "start", booking.Start, "end", booking.End)
	s.afterChange(ctx, "booking_created", booking, domain.UserActor(input.RequesterID))
	return booking, nil
}

func (s *BookingService) ConfirmBooking(ctx context.Context, id int64, actor domain.Actor) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(current, actor); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	updated, err := s.bookings.ApplyTransition(ctx, id, domain.Transition{
		From:  []domain.BookingStatus{domain.BookingStatusPending},
		To:    domain.BookingStatusConfirmed,
		At:    now,
		Event: domain.NewEvent(domain.EventConfirmed, actor, "", now),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking confirmed", "booking_id", id)
	s.afterChange(ctx, "booking_confirmed", updated, actor)
	return updated, nil
}

// CancelBooking cancels a pending or confirmed booking on behalf of its
// requester or an admin, then announces the freed slot.
func (s *BookingService) CancelBooking(ctx context.Context, id int64, actor domain.Actor, reason string) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(current, actor); err != nil {
		return nil, err
	}

	target, kind, by := domain.BookingStatusCancelledByUser, domain.EventCancelledUser, cancelledByUser
	if actor.Role == domain.ActorAdmin {
		target, kind, by = domain.BookingStatusCancelledByAdmin, domain.EventCancelledAdmin, cancelledByAdmin
	}

	now := s.clock.Now()
	updated, err := s.bookings.ApplyTransition(ctx, id, domain.Transition{
		From:         domain.ActiveStatuses,
		To:           target,
		At:           now,
		CancelledBy:  by,
		CancelReason: reason,
		Event:        domain.NewEvent(kind, actor, reason, now),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled", "booking_id", id, "by", by)
	s.announceCancellation(ctx, updated)
	s.afterChange(ctx, "booking_cancelled", updated, actor)
	return updated, nil
}

// SendReminder delivers the confirmation reminder of a pending booking whose
// start is within the reminder lead. The flag is set only after delivery.
func (s *BookingService) SendReminder(ctx context.Context, id int64) (bool, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !s.ReminderDue(*b) {
		return false, nil
	}

	if err := s.notifier.NotifyReminder(ctx, *b); err != nil {
		return false, fmt.Errorf("%w: reminder for booking %d: %w", domain.ErrNotificationFailed, id, err)
	}
	marked, err := s.bookings.MarkReminderSent(ctx, id, domain.NewEvent(domain.EventRemindSent, domain.SystemActor(), "", s.clock.Now()))
	if err != nil {
		return false, err
	}
	if marked {
		s.logger.Info("reminder sent", "booking_id", id)
	}
	return marked, nil
}

// ExpireUnconfirmed cancels a reminded booking that is still pending once the
// grace period after its start has passed.
func (s *BookingService) ExpireUnconfirmed(ctx context.Context, id int64) (bool, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !s.TimeoutDue(*b) {
		return false, nil
	}

	now := s.clock.Now()
	reason := fmt.Sprintf("not confirmed within %d minutes after start", int(s.settings.Grace/time.Minute))
	updated, err := s.bookings.ApplyTransition(ctx, id, domain.Transition{
		From:         []domain.BookingStatus{domain.BookingStatusPending},
		To:           domain.BookingStatusCancelledTimeout,
		At:           now,
		CancelledBy:  cancelledBySystem,
		CancelReason: reason,
		Event:        domain.NewEvent(domain.EventCancelledTimeout, domain.SystemActor(), reason, now),
	})
	if errors.Is(err, domain.ErrIllegalTransition) {
		s.logger.Info("booking moved before timeout", "booking_id", id, "error", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.logger.Info("booking cancelled by timeout", "booking_id", id)
	s.announceCancellation(ctx, updated)
	s.afterChange(ctx, "booking_expired", updated, domain.SystemActor())
	return true, nil
}

// CompleteBooking closes a confirmed booking whose end has passed. No notice is sent.
func (s *BookingService) CompleteBooking(ctx context.Context, id int64) (bool, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !s.CompletionDue(*b) {
		return false, nil
	}

	now := s.clock.Now()
	updated, err := s.bookings.ApplyTransition(ctx, id, domain.Transition{
		From:  []domain.BookingStatus{domain.BookingStatusConfirmed},
		To:    domain.BookingStatusCompleted,
		At:    now,
		Event: domain.NewEvent(domain.EventCompleted, domain.SystemActor(), "", now),
	})
	if errors.Is(err, domain.ErrIllegalTransition) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.logger.Info("booking completed", "booking_id", id)
	s.afterChange(ctx, "booking_completed", updated, domain.SystemActor())
	return true, nil
}

// RetryGroupNotice completes a cancellation announcement whose group half failed earlier.
func (s *BookingService) RetryGroupNotice(ctx context.Context, id int64) (bool, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !b.Status.IsCancelled() || b.GroupNotified {
		return false, nil
	}
	if b.CancelledAt != nil && s.clock.Now().Sub(*b.CancelledAt) < s.settings.GroupRetryAfter {
		return false, nil
	}

	if err := s.notifier.NotifyCancelled(ctx, *b, domain.RecipientGroup); err != nil {
		return false, fmt.Errorf("%w: group notice for booking %d: %w", domain.ErrNotificationFailed, id, err)
	}
	return s.bookings.MarkGroupNotified(ctx, id)
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *BookingService) ListEvents(ctx context.Context, id int64) ([]domain.BookingEvent, error) {
	if _, err := s.bookings.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.bookings.ListEvents(ctx, id)
}

func (s *BookingService) UserHistory(ctx context.Context, requesterID int64, limit int) ([]domain.Booking, error) {
	return s.bookings.ListByRequester(ctx, requesterID, normalizeLimit(limit))
}

func (s *BookingService) RecentHistory(ctx context.Context, limit int) ([]domain.Booking, error) {
	return s.bookings.ListRecent(ctx, normalizeLimit(limit))
}

// ReminderDue: pending, not yet reminded, start within [now, now+lead].
func (s *BookingService) ReminderDue(b domain.Booking) bool {
	if b.Status != domain.BookingStatusPending || b.ReminderSent {
		return false
	}
	left := s.clock.MinutesUntil(s.clock.At(b.Date, b.Start))
	return left >= 0 && left <= int(s.settings.ReminderLead/time.Minute)
}

// TimeoutDue: reminded, still pending, grace after start elapsed.
func (s *BookingService) TimeoutDue(b domain.Booking) bool {
	if b.Status != domain.BookingStatusPending || !b.ReminderSent {
		return false
	}
	sinceStart := -s.clock.MinutesUntil(s.clock.At(b.Date, b.Start))
	return sinceStart >= int(s.settings.Grace/time.Minute)
}

func (s *BookingService) CompletionDue(b domain.Booking) bool {
	if b.Status != domain.BookingStatusConfirmed {
		return false
	}
	return !s.clock.Now().Before(s.clock.At(b.Date, b.End))
}

// announceCancellation tells the requester and the group. The group flag is
// set only when the group notice went out, so a retry can finish the job.
func (s *BookingService) announceCancellation(ctx context.Context, b *domain.Booking) {
	if err := s.notifier.NotifyCancelled(ctx, *b, domain.RecipientRequester); err != nil {
		s.logger.Warn("failed to notify requester of cancellation", "booking_id", b.ID, "error", err)
	}
	if b.GroupNotified {
		return
	}
	if err := s.notifier.NotifyCancelled(ctx, *b, domain.RecipientGroup); err != nil {
		s.logger.Warn("failed to notify group of cancellation", "booking_id", b.ID, "error", err)
		return
	}
	marked, err := s.bookings.MarkGroupNotified(ctx, b.ID)
	if err != nil {
		s.logger.Error("failed to mark group notified", "booking_id", b.ID, "error", err)
		return
	}
	b.GroupNotified = marked || b.GroupNotified
}

func (s *BookingService) afterChange(ctx context.Context, eventType string, b *domain.Booking, actor domain.Actor) {
	if s.cache != nil {
		if err := s.cache.InvalidateSchedule(ctx, b.Date); err != nil {
			s.logger.Warn("failed to invalidate schedule cache", "date", b.Date, "error", err)
		}
	}
	if err := s.publish(ctx, eventType, b, actor); err != nil {
		s.logger.Warn("failed to publish lifecycle event", "type", eventType, "booking_id", b.ID, "error", err)
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, b *domain.Booking, actor domain.Actor) error {
	if s.producer == nil || s.eventTopic == "" {
		return nil
	}
	event := kafka.LifecycleEvent{
		Type:        eventType,
		BookingID:   b.ID,
		RequesterID: b.RequesterID,
		Date:        b.Date,
		Start:       b.Start.String(),
		End:         b.End.String(),
		Status:      string(b.Status),
		Actor:       string(actor.Role),
		Reason:      b.CancelReason,
		At:          s.clock.Now(),
	}
	return s.producer.Publish(ctx, s.eventTopic, strconv.FormatInt(b.ID, 10), event)
}

// authorize lets admins act on any booking and users only on their own.
func (s *BookingService) authorize(b *domain.Booking, actor domain.Actor) error {
	switch actor.Role {
	case domain.ActorSystem:
		return nil
	case domain.ActorAdmin:
		if actor.ID != nil && slices.Contains(s.settings.AdminIDs, *actor.ID) {
			return nil
		}
		return fmt.Errorf("%w: user is not an admin", domain.ErrForbidden)
	case domain.ActorUser:
		if actor.ID != nil && *actor.ID == b.RequesterID {
			return nil
		}
	}
	return fmt.Errorf("%w: booking %d belongs to another user", domain.ErrForbidden, b.ID)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

type storeBusySource struct {
	bookings repository.BookingRepository
}

func (s storeBusySource) ActiveBookings(ctx context.Context, date string) ([]domain.Booking, error) {
	return s.bookings.ListActiveByDates(ctx, []string{date})
}

var _ BookingUseCase = (*BookingService)(nil)
