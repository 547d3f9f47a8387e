package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	// SlotStep is the booking granularity.
	SlotStep = 30
	// EndOfDay is 24:00, valid only as an interval end.
	EndOfDay TimeOfDay = 24 * 60

	DateLayout = "2006-01-02"
)

var (
	timeOfDayPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
	datePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// TimeOfDay is a civil clock time counted in minutes since midnight.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if !timeOfDayPattern.MatchString(s) {
		return 0, fmt.Errorf("%w: time %q, expected HH:MM", ErrInvalidFormat, s)
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	if m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: time %q out of range", ErrInvalidFormat, s)
	}
	return TimeOfDay(h*60 + m), nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) OnBoundary() bool {
	return int(t)%SlotStep == 0
}

func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

// ParseDate validates a YYYY-MM-DD civil date and returns it unchanged.
func ParseDate(s string) (string, error) {
	if !datePattern.MatchString(s) {
		return "", fmt.Errorf("%w: date %q, expected YYYY-MM-DD", ErrInvalidFormat, s)
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("%w: date %q: %v", ErrInvalidFormat, s, err)
	}
	return s, nil
}

// Interval is a half-open [Start, End) range within a single day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (i Interval) Duration() time.Duration {
	return time.Duration(i.End-i.Start) * time.Minute
}

func (i Interval) Overlaps(o Interval) bool {
	return !(i.End <= o.Start || i.Start >= o.End)
}

func Intervals(bookings []Booking) []Interval {
	out := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.Interval())
	}
	return out
}
