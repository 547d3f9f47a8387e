package repository

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
)

const (
	reasonDuplicateActive = "you already have an active booking on this date"
	reasonSlotTaken       = "slot already taken"
)

type BookingRepository interface {
	// Create inserts a pending booking with its created event. It rejects a
	// second active booking for the same requester and date, and an interval
	// that overlaps an active booking, both checked inside the write transaction.
	Create(ctx context.Context, booking *domain.Booking, event domain.BookingEvent) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	ListActiveByRequester(ctx context.Context, requesterID int64, dates []string) ([]domain.Booking, error)
	ListActiveByDates(ctx context.Context, dates []string) ([]domain.Booking, error)
	CountOverlapping(ctx context.Context, date string, interval domain.Interval, excludeID int64) (int, error)
	// ApplyTransition re-reads the booking, checks its status against tr.From and
	// writes the new status together with tr.Event.
	ApplyTransition(ctx context.Context, id int64, tr domain.Transition) (*domain.Booking, error)
	// MarkReminderSent flips the flag of a pending booking once and records the
	// remind_sent event. It reports false when the flag was already set.
	MarkReminderSent(ctx context.Context, id int64, event domain.BookingEvent) (bool, error)
	MarkGroupNotified(ctx context.Context, id int64) (bool, error)
	Scan(ctx context.Context, filter ScanFilter) ([]domain.Booking, error)
	ListByRequester(ctx context.Context, requesterID int64, limit int) ([]domain.Booking, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Booking, error)
	ListEvents(ctx context.Context, bookingID int64) ([]domain.BookingEvent, error)
}

// ScanFilter selects bookings for scheduler passes. Zero fields do not filter.
type ScanFilter struct {
	Statuses      []domain.BookingStatus
	ReminderSent  *bool
	GroupNotified *bool
	FromDate      string
	ToDate        string
}

func Bool(v bool) *bool {
	return &v
}

const bookingColumns = `id, requester_id, requester_name, booking_date, start_minute, end_minute, status,
	created_at, confirmed_at, cancelled_at, completed_at, cancelled_by, cancel_reason, reminder_sent, group_notified`

func activeStatusList() []string {
	return statusStrings(domain.ActiveStatuses)
}

func statusStrings(statuses []domain.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// buildScan renders the WHERE clause of a scan using ph to produce placeholders.
func buildScan(f ScanFilter, ph func(n int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, strings.Replace(expr, "?", ph(len(args)), 1))
	}

	if len(f.Statuses) > 0 {
		in := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			args = append(args, string(s))
			in = append(in, ph(len(args)))
		}
		conds = append(conds, "status IN ("+strings.Join(in, ", ")+")")
	}
	if f.ReminderSent != nil {
		add("reminder_sent = ?", *f.ReminderSent)
	}
	if f.GroupNotified != nil {
		add("group_notified = ?", *f.GroupNotified)
	}
	if f.FromDate != "" {
		add("booking_date >= ?", f.FromDate)
	}
	if f.ToDate != "" {
		add("booking_date <= ?", f.ToDate)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query + " ORDER BY booking_date, start_minute, id", args
}

func applyTransition(b *domain.Booking, tr domain.Transition) error {
	if !slices.Contains(tr.From, b.Status) {
		return &domain.TransitionError{BookingID: b.ID, Current: b.Status, Target: tr.To}
	}
	at := tr.At
	b.Status = tr.To
	switch {
	case tr.To == domain.BookingStatusConfirmed:
		b.ConfirmedAt = &at
	case tr.To == domain.BookingStatusCompleted:
		b.CompletedAt = &at
	case tr.To.IsCancelled():
		b.CancelledAt = &at
		b.CancelledBy = tr.CancelledBy
		b.CancelReason = tr.CancelReason
	}
	return nil
}

// nextEventAt keeps event timestamps strictly increasing per booking.
func nextEventAt(last *time.Time, at time.Time) time.Time {
	at = at.Truncate(time.Microsecond)
	if last != nil && !at.After(*last) {
		return last.Add(time.Microsecond)
	}
	return at
}

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
