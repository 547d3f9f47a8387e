// Package clock resolves wall-clock time in the single civil zone all
// scheduling is expressed in.
package clock

import (
	"fmt"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
)

type Clock struct {
	loc *time.Location
	now func() time.Time
}

func New(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewFixed returns a clock whose current instant is provided by now. Used by tests and replays.
func NewFixed(loc *time.Location, now func() time.Time) *Clock {
	return &Clock{loc: loc, now: now}
}

func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

func (c *Clock) Today() string {
	return c.Now().Format(domain.DateLayout)
}

// DateAfter returns the civil date n days after today.
func (c *Clock) DateAfter(days int) string {
	return c.Now().AddDate(0, 0, days).Format(domain.DateLayout)
}

// ToInstant parses a YYYY-MM-DD date and HH:MM time into an instant in the configured zone.
func (c *Clock) ToInstant(date, timeOfDay string) (time.Time, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	t, err := domain.ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return c.At(d, t), nil
}

// At assumes date was already validated.
func (c *Clock) At(date string, t domain.TimeOfDay) time.Time {
	day, err := time.ParseInLocation(domain.DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, int(t), 0, 0, c.loc)
}

// MinutesUntil is negative for instants in the past and truncates toward zero.
func (c *Clock) MinutesUntil(t time.Time) int {
	return int(t.Sub(c.Now()) / time.Minute)
}

// MinuteOfDay is the current time of day, in minutes.
func (c *Clock) MinuteOfDay() int {
	now := c.Now()
	return now.Hour()*60 + now.Minute()
}
