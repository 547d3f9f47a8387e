package schedule

import (
	"context"
	"log/slog"

	"github.com/Domenick1991/slotbot/internal/domain"
)

type ScheduleUseCase interface {
	ActiveBookings(ctx context.Context, date string) ([]domain.Booking, error)
	Schedule(ctx context.Context, dates []string) ([]Day, error)
	Upcoming(ctx context.Context) ([]Day, error)
}

type ActiveLister interface {
	ListActiveByDates(ctx context.Context, dates []string) ([]domain.Booking, error)
}

type ScheduleCache interface {
	GetSchedule(ctx context.Context, date string) ([]domain.Booking, error)
	SetSchedule(ctx context.Context, date string, bookings []domain.Booking) error
}

type Dates interface {
	Today() string
	DateAfter(days int) string
}

// Day lists the active bookings of one date ordered by start.
type Day struct {
	Date     string
	Bookings []domain.Booking
}

type ScheduleService struct {
	repo   ActiveLister
	cache  ScheduleCache
	dates  Dates
	logger *slog.Logger
}

// NewScheduleService accepts a nil cache.
func NewScheduleService(repo ActiveLister, cache ScheduleCache, dates Dates, logger *slog.Logger) *ScheduleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleService{repo: repo, cache: cache, dates: dates, logger: logger}
}

// ActiveBookings may return a copy up to the cache TTL old. Callers that
// commit must re-check against the store.
func (s *ScheduleService) ActiveBookings(ctx context.Context, date string) ([]domain.Booking, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSchedule(ctx, date)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil {
			s.logger.Warn("schedule cache read failed", "date", date, "error", err)
		}
	}

	bookings, err := s.repo.ListActiveByDates(ctx, []string{date})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetSchedule(ctx, date, bookings); err != nil {
			s.logger.Warn("schedule cache write failed", "date", date, "error", err)
		}
	}
	return bookings, nil
}

func (s *ScheduleService) Schedule(ctx context.Context, dates []string) ([]Day, error) {
	days := make([]Day, 0, len(dates))
	for _, date := range dates {
		date, err := domain.ParseDate(date)
		if err != nil {
			return nil, err
		}
		bookings, err := s.ActiveBookings(ctx, date)
		if err != nil {
			return nil, err
		}
		days = append(days, Day{Date: date, Bookings: bookings})
	}
	return days, nil
}

// Upcoming is the schedule of today and tomorrow.
func (s *ScheduleService) Upcoming(ctx context.Context) ([]Day, error) {
	return s.Schedule(ctx, []string{s.dates.Today(), s.dates.DateAfter(1)})
}

var _ ScheduleUseCase = (*ScheduleService)(nil)
