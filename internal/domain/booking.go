package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending          BookingStatus = "pending"
	BookingStatusConfirmed        BookingStatus = "confirmed"
	BookingStatusCompleted        BookingStatus = "completed"
	BookingStatusCancelledTimeout BookingStatus = "cancelled_timeout"
	BookingStatusCancelledByUser  BookingStatus = "cancelled_by_user"
	BookingStatusCancelledByAdmin BookingStatus = "cancelled_by_admin"
)

// ActiveStatuses are the statuses that hold a slot.
var ActiveStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

// CancelledStatuses are the terminal statuses that announce a freed slot.
var CancelledStatuses = []BookingStatus{
	BookingStatusCancelledTimeout,
	BookingStatusCancelledByUser,
	BookingStatusCancelledByAdmin,
}

func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

func (s BookingStatus) IsCancelled() bool {
	switch s {
	case BookingStatusCancelledTimeout, BookingStatusCancelledByUser, BookingStatusCancelledByAdmin:
		return true
	}
	return false
}

type EventKind string

const (
	EventCreated          EventKind = "created"
	EventConfirmed        EventKind = "confirmed"
	EventRemindSent       EventKind = "remind_sent"
	EventCancelledUser    EventKind = "cancelled_user"
	EventCancelledAdmin   EventKind = "cancelled_admin"
	EventCancelledTimeout EventKind = "cancelled_timeout"
	EventCompleted        EventKind = "completed"
)

type ActorRole string

const (
	ActorSystem ActorRole = "system"
	ActorUser   ActorRole = "user"
	ActorAdmin  ActorRole = "admin"
)

// Actor is the party performing a transition. ID is nil for the system.
type Actor struct {
	Role ActorRole
	ID   *int64
}

func SystemActor() Actor {
	return Actor{Role: ActorSystem}
}

func UserActor(id int64) Actor {
	return Actor{Role: ActorUser, ID: &id}
}

func AdminActor(id int64) Actor {
	return Actor{Role: ActorAdmin, ID: &id}
}

type Booking struct {
	ID            int64
	RequesterID   int64
	RequesterName string
	Date          string
	Start         TimeOfDay
	End           TimeOfDay
	Status        BookingStatus
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
	CancelledAt   *time.Time
	CompletedAt   *time.Time
	CancelledBy   string
	CancelReason  string
	ReminderSent  bool
	GroupNotified bool
}

func (b Booking) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

func (b Booking) Duration() time.Duration {
	return b.Interval().Duration()
}

type BookingEvent struct {
	ID        int64
	BookingID int64
	Kind      EventKind
	ActorRole ActorRole
	ActorID   *int64
	Note      string
	At        time.Time
}

func NewEvent(kind EventKind, actor Actor, note string, at time.Time) BookingEvent {
	return BookingEvent{
		Kind:      kind,
		ActorRole: actor.Role,
		ActorID:   actor.ID,
		Note:      note,
		At:        at,
	}
}

// Transition describes a status change together with the event recorded for it.
type Transition struct {
	From         []BookingStatus
	To           BookingStatus
	At           time.Time
	CancelledBy  string
	CancelReason string
	Event        BookingEvent
}

type RecipientScope string

const (
	RecipientRequester RecipientScope = "requester"
	RecipientGroup     RecipientScope = "group"
)
