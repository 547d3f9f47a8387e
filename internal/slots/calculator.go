// Package slots enumerates the start and end times a booking menu may offer.
// The busy set it works from may be stale; the final word belongs to the
// arbiter at commit time.
package slots

import (
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
)

const slotsPerDay = int(domain.EndOfDay) / domain.SlotStep

type Clock interface {
	Today() string
	MinuteOfDay() int
}

type Calculator struct {
	clock       Clock
	maxDuration time.Duration
}

func NewCalculator(clock Clock, maxDuration time.Duration) *Calculator {
	return &Calculator{clock: clock, maxDuration: maxDuration}
}

func (c *Calculator) MaxDuration() time.Duration {
	return c.maxDuration
}

// NextBoundary returns the first 30-minute boundary strictly after minute.
func NextBoundary(minute int) domain.TimeOfDay {
	return domain.TimeOfDay((minute/domain.SlotStep + 1) * domain.SlotStep)
}

// AvailableStartSlots lists the boundaries of date that are not in the past and
// do not coincide with the start of a busy interval.
func (c *Calculator) AvailableStartSlots(date string, busy []domain.Interval) []domain.TimeOfDay {
	first := domain.TimeOfDay(0)
	if date == c.clock.Today() {
		first = NextBoundary(c.clock.MinuteOfDay())
	}

	taken := make(map[domain.TimeOfDay]struct{}, len(busy))
	for _, b := range busy {
		taken[b.Start] = struct{}{}
	}

	out := make([]domain.TimeOfDay, 0, slotsPerDay)
	for t := first; t < domain.EndOfDay; t += domain.SlotStep {
		if _, ok := taken[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

// AvailableEndSlots lists end times after start up to the maximum duration.
// Enumeration stops at the first candidate that overlaps a busy interval, so
// no duration past a conflict is offered even if a later end would be free.
func (c *Calculator) AvailableEndSlots(date string, start domain.TimeOfDay, busy []domain.Interval) []domain.TimeOfDay {
	limit := start.Add(c.maxDuration)
	if limit > domain.EndOfDay {
		limit = domain.EndOfDay
	}

	var out []domain.TimeOfDay
	for end := start + domain.SlotStep; end <= limit; end += domain.SlotStep {
		if overlapsAny(domain.Interval{Start: start, End: end}, busy) {
			break
		}
		out = append(out, end)
	}
	return out
}

func overlapsAny(candidate domain.Interval, busy []domain.Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
