package repository

import (
	"testing"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestNewBookingRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewBookingRepository(pool)
	assert.NotNil(t, repo)
}

func TestBuildScan_PostgresPlaceholders(t *testing.T) {
	query, args := buildScan(ScanFilter{
		Statuses:     []domain.BookingStatus{domain.BookingStatusPending},
		ReminderSent: Bool(false),
		ToDate:       "2025-06-01",
	}, func(n int) string { return "$" + string(rune('0'+n)) })

	assert.Contains(t, query, "status IN ($1)")
	assert.Contains(t, query, "reminder_sent = $2")
	assert.Contains(t, query, "booking_date <= $3")
	assert.Contains(t, query, "ORDER BY booking_date, start_minute, id")
	assert.Equal(t, []any{"pending", false, "2025-06-01"}, args)
}

func TestBuildScan_NoFilter(t *testing.T) {
	query, args := buildScan(ScanFilter{}, func(int) string { return "?" })

	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

func TestApplyTransition(t *testing.T) {
	at := time.Date(2025, 6, 1, 14, 5, 0, 0, time.UTC)
	b := &domain.Booking{ID: 3, Status: domain.BookingStatusPending}

	err := applyTransition(b, domain.Transition{
		From:         []domain.BookingStatus{domain.BookingStatusPending},
		To:           domain.BookingStatusCancelledTimeout,
		At:           at,
		CancelledBy:  "system",
		CancelReason: "not confirmed",
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelledTimeout, b.Status)
	assert.Equal(t, "system", b.CancelledBy)
	assert.Equal(t, at, *b.CancelledAt)

	err = applyTransition(b, domain.Transition{
		From: []domain.BookingStatus{domain.BookingStatusPending},
		To:   domain.BookingStatusConfirmed,
	})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Nil(t, b.ConfirmedAt)
}

func TestNextEventAt(t *testing.T) {
	last := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	assert.Equal(t, last.Add(time.Microsecond), nextEventAt(&last, last))
	assert.Equal(t, last.Add(time.Microsecond), nextEventAt(&last, last.Add(-time.Second)))
	assert.Equal(t, last.Add(time.Second), nextEventAt(&last, last.Add(time.Second)))
	assert.Equal(t, last, nextEventAt(nil, last.Add(300*time.Nanosecond)))
}
