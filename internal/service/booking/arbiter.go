package booking

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
)

const (
	reasonEndBeforeStart = "end time must be after start time"
	reasonSlotTaken      = "slot already taken"
)

// ConflictCounter is the part of the store the arbiter reads. It must be the
// durable store, never a cache.
type ConflictCounter interface {
	CountOverlapping(ctx context.Context, date string, interval domain.Interval, excludeID int64) (int, error)
}

// Arbiter is the single gate a slot passes before a booking is written.
type Arbiter struct {
	store       ConflictCounter
	maxDuration time.Duration
}

func NewArbiter(store ConflictCounter, maxDuration time.Duration) *Arbiter {
	return &Arbiter{store: store, maxDuration: maxDuration}
}

// HasConflict reports whether an active booking on date other than excludeID
// overlaps [start, end). Pass 0 to exclude nothing.
func (a *Arbiter) HasConflict(ctx context.Context, date string, start, end domain.TimeOfDay, excludeID int64) (bool, error) {
	n, err := a.store.CountOverlapping(ctx, date, domain.Interval{Start: start, End: end}, excludeID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ValidateSlot runs the ordered checks and stops at the first failure. A
// non-empty reason is meant for the requester.
func (a *Arbiter) ValidateSlot(ctx context.Context, date string, start, end domain.TimeOfDay, excludeID int64) (bool, string, error) {
	if end <= start {
		return false, reasonEndBeforeStart, nil
	}
	if (domain.Interval{Start: start, End: end}).Duration() > a.maxDuration {
		return false, MaxDurationReason(a.maxDuration), nil
	}

	conflict, err := a.HasConflict(ctx, date, start, end, excludeID)
	if err != nil {
		return false, "", err
	}
	if conflict {
		return false, reasonSlotTaken, nil
	}
	return true, "", nil
}

func MaxDurationReason(max time.Duration) string {
	return fmt.Sprintf("maximum booking duration is %s h", strconv.FormatFloat(max.Hours(), 'f', -1, 64))
}
