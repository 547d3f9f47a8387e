// Package notify turns booking notices into chat messages. The engine only
// queues them; delivery happens in the worker.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/google/uuid"
)

type Kind string

const (
	KindReminder  Kind = "reminder"
	KindCancelled Kind = "cancelled"
)

type Message struct {
	ID            string                `json:"id"`
	Kind          Kind                  `json:"kind"`
	Scope         domain.RecipientScope `json:"scope"`
	ChatID        int64                 `json:"chat_id"`
	BookingID     int64                 `json:"booking_id"`
	RequesterName string                `json:"requester_name"`
	Date          string                `json:"date"`
	Start         string                `json:"start"`
	End           string                `json:"end"`
	CancelledBy   string                `json:"cancelled_by,omitempty"`
	Reason        string                `json:"reason,omitempty"`
	LeadMinutes   int                   `json:"lead_minutes,omitempty"`
	GraceMinutes  int                   `json:"grace_minutes,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

func newMessage(kind Kind, scope domain.RecipientScope, chatID int64, b domain.Booking, now time.Time) Message {
	return Message{
		ID:            uuid.NewString(),
		Kind:          kind,
		Scope:         scope,
		ChatID:        chatID,
		BookingID:     b.ID,
		RequesterName: b.RequesterName,
		Date:          b.Date,
		Start:         b.Start.String(),
		End:           b.End.String(),
		CancelledBy:   b.CancelledBy,
		Reason:        b.CancelReason,
		CreatedAt:     now,
	}
}

// Render produces the chat text of m.
func Render(m Message) string {
	var sb strings.Builder
	slot := fmt.Sprintf("%s | %s-%s", m.Date, m.Start, m.End)

	switch {
	case m.Kind == KindReminder:
		fmt.Fprintf(&sb, "Your booking starts in %d minutes!\n\n%s\n\n", m.LeadMinutes, slot)
		fmt.Fprintf(&sb, "Confirm it, otherwise it is cancelled %d minutes after the start.\n", m.GraceMinutes)
		fmt.Fprintf(&sb, "/confirm %d", m.BookingID)

	case m.Scope == domain.RecipientGroup:
		title := "Booking cancelled"
		if m.CancelledBy == "admin" {
			title = "Booking cancelled by an admin"
		}
		fmt.Fprintf(&sb, "%s\n\n%s\n\n%s\n\nThe slot is free, book it now!", title, groupReason(m), slot)

	default:
		fmt.Fprintf(&sb, "Booking cancelled\n\n%s\n\n%s\n\nThe slot is free again. Send \"book\" to make a new booking.", requesterReason(m), slot)
	}
	return sb.String()
}

func requesterReason(m Message) string {
	switch m.CancelledBy {
	case "system":
		return "You did not confirm the booking in time."
	case "user":
		return "You cancelled the booking."
	case "admin":
		return "The booking was cancelled by an admin."
	}
	return "The booking was cancelled."
}

func groupReason(m Message) string {
	name := m.RequesterName
	if name == "" {
		name = "A member"
	}
	switch m.CancelledBy {
	case "system":
		return name + " did not confirm the booking in time."
	case "user":
		return name + " cancelled their booking."
	case "admin":
		return "The booking of " + name + " was cancelled."
	}
	return "A booking was cancelled."
}
