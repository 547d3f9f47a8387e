// Package scheduler polls the store on a fixed tick and drives the
// time-based booking transitions.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/Domenick1991/slotbot/internal/repository"
)

type Scanner interface {
	Scan(ctx context.Context, filter repository.ScanFilter) ([]domain.Booking, error)
}

// Lifecycle is implemented by the booking service. Each call re-reads the
// booking and reports whether it acted.
type Lifecycle interface {
	SendReminder(ctx context.Context, id int64) (bool, error)
	ExpireUnconfirmed(ctx context.Context, id int64) (bool, error)
	CompleteBooking(ctx context.Context, id int64) (bool, error)
	RetryGroupNotice(ctx context.Context, id int64) (bool, error)
}

type Dates interface {
	Today() string
	DateAfter(days int) string
}

type Scheduler struct {
	store     Scanner
	lifecycle Lifecycle
	dates     Dates
	interval  time.Duration
	logger    *slog.Logger
}

// Report counts what one tick did.
type Report struct {
	Reminded      int
	Expired       int
	Completed     int
	GroupNotified int
	Errors        int
}

func New(store Scanner, lifecycle Lifecycle, dates Dates, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: store, lifecycle: lifecycle, dates: dates, interval: interval, logger: logger}
}

// Run ticks until ctx is done. The first tick runs immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval)
	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs the reminder, timeout and completion passes. A failing pass
// never prevents the others.
func (s *Scheduler) Tick(ctx context.Context) Report {
	var r Report
	r.Reminded = s.reminderPass(ctx, &r)
	r.Expired = s.timeoutPass(ctx, &r)
	r.Completed = s.completionPass(ctx, &r)

	if r.Reminded+r.Expired+r.Completed+r.GroupNotified+r.Errors > 0 {
		s.logger.Info("scheduler tick", "reminded", r.Reminded, "expired", r.Expired,
			"completed", r.Completed, "group_notified", r.GroupNotified, "errors", r.Errors)
	}
	return r
}

func (s *Scheduler) reminderPass(ctx context.Context, r *Report) int {
	// A start just after midnight is reminded the evening before.
	return s.pass(ctx, r, "reminder", repository.ScanFilter{
		Statuses:     []domain.BookingStatus{domain.BookingStatusPending},
		ReminderSent: repository.Bool(false),
		FromDate:     s.dates.Today(),
		ToDate:       s.dates.DateAfter(1),
	}, s.lifecycle.SendReminder)
}

func (s *Scheduler) timeoutPass(ctx context.Context, r *Report) int {
	expired := s.pass(ctx, r, "timeout", repository.ScanFilter{
		Statuses:     []domain.BookingStatus{domain.BookingStatusPending},
		ReminderSent: repository.Bool(true),
		ToDate:       s.dates.Today(),
	}, s.lifecycle.ExpireUnconfirmed)

	// Cancellations younger than GroupRetryAfter are skipped by RetryGroupNotice,
	// so a retry rarely races the cancelling call's own group notice.
	r.GroupNotified += s.pass(ctx, r, "group notice retry", repository.ScanFilter{
		Statuses:      domain.CancelledStatuses,
		GroupNotified: repository.Bool(false),
		FromDate:      s.dates.DateAfter(-1),
	}, s.lifecycle.RetryGroupNotice)
	return expired
}

func (s *Scheduler) completionPass(ctx context.Context, r *Report) int {
	return s.pass(ctx, r, "completion", repository.ScanFilter{
		Statuses: []domain.BookingStatus{domain.BookingStatusConfirmed},
		ToDate:   s.dates.Today(),
	}, s.lifecycle.CompleteBooking)
}

func (s *Scheduler) pass(ctx context.Context, r *Report, name string, filter repository.ScanFilter, act func(context.Context, int64) (bool, error)) int {
	bookings, err := s.store.Scan(ctx, filter)
	if err != nil {
		r.Errors++
		s.logger.Error("scan failed", "pass", name, "error", err)
		return 0
	}

	done := 0
	for _, b := range bookings {
		if ctx.Err() != nil {
			return done
		}
		ok, err := act(ctx, b.ID)
		if err != nil {
			r.Errors++
			level := slog.LevelError
			if errors.Is(err, domain.ErrNotificationFailed) {
				level = slog.LevelWarn
			}
			s.logger.Log(ctx, level, "booking action failed", "pass", name, "booking_id", b.ID,
				"date", b.Date, "start", b.Start, "error", err)
			continue
		}
		if ok {
			done++
		}
	}
	return done
}
