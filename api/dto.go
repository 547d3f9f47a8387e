package api

import (
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
)

type bookingResponse struct {
	ID              int64   `json:"id"`
	RequesterID     int64   `json:"requester_id"`
	RequesterName   string  `json:"requester_name,omitempty"`
	Date            string  `json:"date"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	DurationMinutes int     `json:"duration_minutes"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	ConfirmedAt     *string `json:"confirmed_at,omitempty"`
	CancelledAt     *string `json:"cancelled_at,omitempty"`
	CompletedAt     *string `json:"completed_at,omitempty"`
	CancelledBy     string  `json:"cancelled_by,omitempty"`
	CancelReason    string  `json:"cancel_reason,omitempty"`
	ReminderSent    bool    `json:"reminder_sent"`
	GroupNotified   bool    `json:"group_notified"`
}

type eventResponse struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	ActorRole string `json:"actor_role"`
	ActorID   *int64 `json:"actor_id,omitempty"`
	Note      string `json:"note,omitempty"`
	At        string `json:"at"`
}

// Stores hand back times in different zones, so responses always carry UTC.
func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:              b.ID,
		RequesterID:     b.RequesterID,
		RequesterName:   b.RequesterName,
		Date:            b.Date,
		Start:           b.Start.String(),
		End:             b.End.String(),
		DurationMinutes: int(b.Duration() / time.Minute),
		Status:          string(b.Status),
		CreatedAt:       b.CreatedAt.UTC().Format(time.RFC3339),
		ConfirmedAt:     formatOptional(b.ConfirmedAt),
		CancelledAt:     formatOptional(b.CancelledAt),
		CompletedAt:     formatOptional(b.CompletedAt),
		CancelledBy:     b.CancelledBy,
		CancelReason:    b.CancelReason,
		ReminderSent:    b.ReminderSent,
		GroupNotified:   b.GroupNotified,
	}
}

func toBookingResponses(bookings []domain.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	return out
}

func toEventResponses(events []domain.BookingEvent) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			ID:        e.ID,
			Kind:      string(e.Kind),
			ActorRole: string(e.ActorRole),
			ActorID:   e.ActorID,
			Note:      e.Note,
			At:        e.At.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

func formatSlots(slots []domain.TimeOfDay) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
