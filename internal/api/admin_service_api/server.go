package admin_service_api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/Domenick1991/slotbot/internal/service/booking"
	"github.com/Domenick1991/slotbot/internal/service/schedule"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Server exposes admin commands over gRPC.
type Server struct {
	bookings booking.BookingUseCase
	schedule schedule.ScheduleUseCase
	logger   *slog.Logger
}

func NewServer(bookings booking.BookingUseCase, schedule schedule.ScheduleUseCase, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{bookings: bookings, schedule: schedule, logger: logger}
}

func (s *Server) CancelBooking(ctx context.Context, req *CancelRequest) (*Booking, error) {
	if req.BookingID <= 0 || req.AdminID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "booking_id and admin_id are required")
	}
	b, err := s.bookings.CancelBooking(ctx, req.BookingID, domain.AdminActor(req.AdminID), req.Reason)
	if err != nil {
		return nil, s.toStatus(err)
	}
	s.logger.Info("booking cancelled by admin", "booking_id", b.ID, "admin_id", req.AdminID)
	return toPBBooking(b), nil
}

func (s *Server) GetBooking(ctx context.Context, req *BookingRequest) (*Booking, error) {
	b, err := s.bookings.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toPBBooking(b), nil
}

func (s *Server) ListEvents(ctx context.Context, req *BookingRequest) (*EventsReply, error) {
	events, err := s.bookings.ListEvents(ctx, req.BookingID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	out := &EventsReply{Events: make([]Event, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, Event{
			ID:        e.ID,
			Kind:      string(e.Kind),
			ActorRole: string(e.ActorRole),
			ActorID:   e.ActorID,
			Note:      e.Note,
			At:        timestamppb.New(e.At),
		})
	}
	return out, nil
}

func (s *Server) ListSchedule(ctx context.Context, req *ScheduleRequest) (*ScheduleReply, error) {
	var (
		days []schedule.Day
		err  error
	)
	if len(req.Dates) > 0 {
		days, err = s.schedule.Schedule(ctx, req.Dates)
	} else {
		days, err = s.schedule.Upcoming(ctx)
	}
	if err != nil {
		return nil, s.toStatus(err)
	}
	out := &ScheduleReply{Days: make([]Day, 0, len(days))}
	for _, d := range days {
		out.Days = append(out.Days, Day{Date: d.Date, Bookings: toPBBookings(d.Bookings)})
	}
	return out, nil
}

func (s *Server) History(ctx context.Context, req *HistoryRequest) (*BookingsReply, error) {
	var (
		list []domain.Booking
		err  error
	)
	if req.RequesterID != 0 {
		list, err = s.bookings.UserHistory(ctx, req.RequesterID, int(req.Limit))
	} else {
		list, err = s.bookings.RecentHistory(ctx, int(req.Limit))
	}
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &BookingsReply{Bookings: toPBBookings(list)}, nil
}

func (s *Server) toStatus(err error) error {
	var (
		verr *domain.ValidationError
		terr *domain.TransitionError
	)
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Reason)
	case errors.As(err, &terr):
		return status.Errorf(codes.FailedPrecondition, "booking is %s", terr.Current)
	case errors.Is(err, domain.ErrInvalidFormat):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		s.logger.Error("admin call failed", "error", err)
		return status.Error(codes.Unavailable, "service temporarily unavailable, please try again later")
	default:
		s.logger.Error("admin call failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func toPBBookings(list []domain.Booking) []Booking {
	out := make([]Booking, 0, len(list))
	for i := range list {
		out = append(out, *toPBBooking(&list[i]))
	}
	return out
}

func toPBBooking(b *domain.Booking) *Booking {
	if b == nil {
		return nil
	}
	return &Booking{
		ID:            b.ID,
		RequesterID:   b.RequesterID,
		RequesterName: b.RequesterName,
		Date:          b.Date,
		Start:         b.Start.String(),
		End:           b.End.String(),
		Status:        string(b.Status),
		CreatedAt:     timestamppb.New(b.CreatedAt),
		ConfirmedAt:   toTimestamp(b.ConfirmedAt),
		CancelledAt:   toTimestamp(b.CancelledAt),
		CompletedAt:   toTimestamp(b.CompletedAt),
		CancelledBy:   b.CancelledBy,
		CancelReason:  b.CancelReason,
		ReminderSent:  b.ReminderSent,
		GroupNotified: b.GroupNotified,
	}
}

func toTimestamp(t *time.Time) *timestamppb.Timestamp {
	if t == nil {
		return nil
	}
	return timestamppb.New(*t)
}

var _ BookingAdminServer = (*Server)(nil)
