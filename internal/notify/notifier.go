package notify

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Domenick1991/slotbot/internal/domain"
)

type Publisher interface {
	PublishWithRetry(ctx context.Context, topic, key string, value any, maxRetries int) error
}

// publishAttempts bounds how long a scheduler pass waits on an unreachable broker.
const publishAttempts = 3

type Options struct {
	GroupChatID  int64
	ReminderLead time.Duration
	Grace        time.Duration
	Now          func() time.Time
}

// KafkaNotifier queues notices on a topic. A successful publish counts as delivery.
type KafkaNotifier struct {
	publisher Publisher
	topic     string
	opts      Options
}

func NewKafkaNotifier(publisher Publisher, topic string, opts Options) *KafkaNotifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &KafkaNotifier{publisher: publisher, topic: topic, opts: opts}
}

func (n *KafkaNotifier) NotifyReminder(ctx context.Context, b domain.Booking) error {
	return n.send(ctx, reminderMessage(b, n.opts))
}

func (n *KafkaNotifier) NotifyCancelled(ctx context.Context, b domain.Booking, scope domain.RecipientScope) error {
	msg, err := cancelledMessage(b, scope, n.opts)
	if err != nil {
		return err
	}
	return n.send(ctx, msg)
}

func (n *KafkaNotifier) send(ctx context.Context, msg Message) error {
	return n.publisher.PublishWithRetry(ctx, n.topic, strconv.FormatInt(msg.BookingID, 10), msg, publishAttempts)
}

// DirectNotifier renders and sends notices in-process, for deployments without Kafka.
type DirectNotifier struct {
	sender Sender
	opts   Options
}

func NewDirectNotifier(sender Sender, opts Options) *DirectNotifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DirectNotifier{sender: sender, opts: opts}
}

func (n *DirectNotifier) NotifyReminder(ctx context.Context, b domain.Booking) error {
	msg := reminderMessage(b, n.opts)
	return n.sender.Send(ctx, msg.ChatID, Render(msg))
}

func (n *DirectNotifier) NotifyCancelled(ctx context.Context, b domain.Booking, scope domain.RecipientScope) error {
	msg, err := cancelledMessage(b, scope, n.opts)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, msg.ChatID, Render(msg))
}

func reminderMessage(b domain.Booking, opts Options) Message {
	msg := newMessage(KindReminder, domain.RecipientRequester, b.RequesterID, b, opts.Now())
	msg.LeadMinutes = int(opts.ReminderLead / time.Minute)
	msg.GraceMinutes = int(opts.Grace / time.Minute)
	return msg
}

func cancelledMessage(b domain.Booking, scope domain.RecipientScope, opts Options) (Message, error) {
	chatID := b.RequesterID
	if scope == domain.RecipientGroup {
		if opts.GroupChatID == 0 {
			return Message{}, errors.New("group chat is not configured")
		}
		chatID = opts.GroupChatID
	}
	return newMessage(KindCancelled, scope, chatID, b, opts.Now()), nil
}
