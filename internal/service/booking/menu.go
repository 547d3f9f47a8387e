package booking

import (
	"context"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
)

// Menu is what a requester is offered after picking a date.
type Menu struct {
	Date string
	// Existing holds the requester's active bookings on Date. When it is not
	// empty no start slots are offered.
	Existing    []domain.Booking
	StartSlots  []domain.TimeOfDay
	MaxDuration time.Duration
}

func (m *Menu) AlreadyBooked() bool {
	return len(m.Existing) > 0
}

type EndMenu struct {
	Date     string
	Start    domain.TimeOfDay
	EndSlots []domain.TimeOfDay
}

// BookableDates are the dates the conversation offers: today and tomorrow.
func (s *BookingService) BookableDates() []string {
	return []string{s.clock.Today(), s.clock.DateAfter(1)}
}

func (s *BookingService) RequestBookingMenu(ctx context.Context, requesterID int64, date string) (*Menu, error) {
	date, err := domain.ParseDate(date)
	if err != nil {
		return nil, err
	}
	if date < s.clock.Today() {
		return nil, domain.NewValidationError("date is in the past")
	}

	menu := &Menu{Date: date, MaxDuration: s.calculator.MaxDuration()}
	existing, err := s.bookings.ListActiveByRequester(ctx, requesterID, []string{date})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		menu.Existing = existing
		return menu, nil
	}

	busy, err := s.busy.ActiveBookings(ctx, date)
	if err != nil {
		return nil, err
	}
	menu.StartSlots = s.calculator.AvailableStartSlots(date, domain.Intervals(busy))
	return menu, nil
}

func (s *BookingService) ChooseStart(ctx context.Context, date, start string) (*EndMenu, error) {
	date, err := domain.ParseDate(date)
	if err != nil {
		return nil, err
	}
	t, err := domain.ParseTimeOfDay(start)
	if err != nil {
		return nil, err
	}
	if t >= domain.EndOfDay || !t.OnBoundary() {
		return nil, domain.NewValidationError("times must be on 30-minute boundaries")
	}

	busy, err := s.busy.ActiveBookings(ctx, date)
	if err != nil {
		return nil, err
	}
	return &EndMenu{
		Date:     date,
		Start:    t,
		EndSlots: s.calculator.AvailableEndSlots(date, t, domain.Intervals(busy)),
	}, nil
}

// ChooseEnd commits the selection. The arbiter re-checks the slot against the
// store, so a menu rendered from stale data cannot produce a double booking.
func (s *BookingService) ChooseEnd(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	return s.CreateBooking(ctx, input)
}
