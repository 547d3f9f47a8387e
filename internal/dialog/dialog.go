// Package dialog runs the booking conversation: date, then start time, then
// end time. Each conversation's progress is an explicit State kept in a
// SessionStore, so no request sees another's choices.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/Domenick1991/slotbot/internal/service/booking"
)

var (
	ErrNoConversation = errors.New("no booking conversation in progress")
	ErrUnexpectedStep = errors.New("unexpected conversation step")
)

type Step string

const (
	StepDate  Step = "date"
	StepStart Step = "start"
	StepEnd   Step = "end"
	StepDone  Step = "done"
)

type State struct {
	ConversationID string    `json:"conversation_id"`
	RequesterID    int64     `json:"requester_id"`
	RequesterName  string    `json:"requester_name"`
	Step           Step      `json:"step"`
	Date           string    `json:"date,omitempty"`
	Start          string    `json:"start,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Reply is what the chat layer shows after a step.
type Reply struct {
	Step       Step             `json:"step"`
	Date       string           `json:"date,omitempty"`
	Start      string           `json:"start,omitempty"`
	Dates      []string         `json:"dates,omitempty"`
	StartSlots []string         `json:"start_slots,omitempty"`
	EndSlots   []string         `json:"end_slots,omitempty"`
	Existing   []domain.Booking `json:"existing,omitempty"`
	Booking    *domain.Booking  `json:"booking,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

type Engine interface {
	BookableDates() []string
	RequestBookingMenu(ctx context.Context, requesterID int64, date string) (*booking.Menu, error)
	ChooseStart(ctx context.Context, date, start string) (*booking.EndMenu, error)
	ChooseEnd(ctx context.Context, input booking.CreateBookingInput) (*domain.Booking, error)
}

type Conversation struct {
	engine Engine
	store  SessionStore
	now    func() time.Time
}

func NewConversation(engine Engine, store SessionStore) *Conversation {
	return &Conversation{engine: engine, store: store, now: time.Now}
}

// Start opens or restarts a conversation and offers the bookable dates.
func (c *Conversation) Start(ctx context.Context, conversationID string, requesterID int64, requesterName string) (*Reply, error) {
	state := &State{
		ConversationID: conversationID,
		RequesterID:    requesterID,
		RequesterName:  requesterName,
		Step:           StepDate,
	}
	if err := c.save(ctx, state); err != nil {
		return nil, err
	}
	return &Reply{Step: StepDate, Dates: c.engine.BookableDates()}, nil
}

func (c *Conversation) ChooseDate(ctx context.Context, conversationID, date string) (*Reply, error) {
	state, err := c.load(ctx, conversationID, StepDate, StepStart, StepEnd)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(c.engine.BookableDates(), date) {
		return nil, domain.NewValidationError("only today and tomorrow can be booked")
	}

	menu, err := c.engine.RequestBookingMenu(ctx, state.RequesterID, date)
	if err != nil {
		return nil, err
	}
	if menu.AlreadyBooked() {
		if err := c.store.Delete(ctx, conversationID); err != nil {
			return nil, err
		}
		return &Reply{
			Step:     StepDone,
			Date:     date,
			Existing: menu.Existing,
			Reason:   "you already have an active booking on this date",
		}, nil
	}
	if len(menu.StartSlots) == 0 {
		return &Reply{Step: StepDate, Dates: c.engine.BookableDates(), Reason: "no free slots on this date"}, nil
	}

	state.Step, state.Date, state.Start = StepStart, date, ""
	if err := c.save(ctx, state); err != nil {
		return nil, err
	}
	return &Reply{Step: StepStart, Date: date, StartSlots: formatSlots(menu.StartSlots)}, nil
}

func (c *Conversation) ChooseStart(ctx context.Context, conversationID, start string) (*Reply, error) {
	state, err := c.load(ctx, conversationID, StepStart, StepEnd)
	if err != nil {
		return nil, err
	}

	endMenu, err := c.engine.ChooseStart(ctx, state.Date, start)
	if err != nil {
		return nil, err
	}
	if len(endMenu.EndSlots) == 0 {
		return c.backToStart(ctx, state, "this start time is no longer free")
	}

	state.Step, state.Start = StepEnd, start
	if err := c.save(ctx, state); err != nil {
		return nil, err
	}
	return &Reply{Step: StepEnd, Date: state.Date, Start: start, EndSlots: formatSlots(endMenu.EndSlots)}, nil
}

// ChooseEnd commits the booking. A slot rejected at commit time sends the
// conversation back to start selection with a fresh menu.
func (c *Conversation) ChooseEnd(ctx context.Context, conversationID, end string) (*Reply, error) {
	state, err := c.load(ctx, conversationID, StepEnd)
	if err != nil {
		return nil, err
	}

	b, err := c.engine.ChooseEnd(ctx, booking.CreateBookingInput{
		RequesterID:   state.RequesterID,
		RequesterName: state.RequesterName,
		Date:          state.Date,
		Start:         state.Start,
		End:           end,
	})
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return c.backToStart(ctx, state, verr.Reason)
	}
	if err != nil {
		return nil, err
	}

	if err := c.store.Delete(ctx, conversationID); err != nil {
		return nil, err
	}
	return &Reply{Step: StepDone, Date: b.Date, Start: b.Start.String(), Booking: b}, nil
}

func (c *Conversation) Cancel(ctx context.Context, conversationID string) error {
	return c.store.Delete(ctx, conversationID)
}

func (c *Conversation) backToStart(ctx context.Context, state *State, reason string) (*Reply, error) {
	menu, err := c.engine.RequestBookingMenu(ctx, state.RequesterID, state.Date)
	if err != nil {
		return nil, err
	}
	if menu.AlreadyBooked() || len(menu.StartSlots) == 0 {
		state.Step, state.Date, state.Start = StepDate, "", ""
		if err := c.save(ctx, state); err != nil {
			return nil, err
		}
		return &Reply{Step: StepDate, Dates: c.engine.BookableDates(), Existing: menu.Existing, Reason: reason}, nil
	}

	state.Step, state.Start = StepStart, ""
	if err := c.save(ctx, state); err != nil {
		return nil, err
	}
	return &Reply{Step: StepStart, Date: state.Date, StartSlots: formatSlots(menu.StartSlots), Reason: reason}, nil
}

func (c *Conversation) load(ctx context.Context, conversationID string, allowed ...Step) (*State, error) {
	state, ok, err := c.store.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoConversation
	}
	if !slices.Contains(allowed, state.Step) {
		return nil, fmt.Errorf("%w: at %s", ErrUnexpectedStep, state.Step)
	}
	return state, nil
}

func (c *Conversation) save(ctx context.Context, state *State) error {
	state.UpdatedAt = c.now()
	return c.store.Save(ctx, state)
}

func formatSlots(slots []domain.TimeOfDay) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}
