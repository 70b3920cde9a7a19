// Package notify delivers escalation messages to people.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Channel is the medium a notification is sent through.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPhone Channel = "phone"
	ChannelChat  Channel = "chat"
)

// Message is one notification. Channel-specific formatting is left to the
// delivery collaborator.
type Message struct {
	Actor   string    `json:"actor"`
	Channel Channel   `json:"channel"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	JobID   string    `json:"job_id,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// Notifier sends messages to actors.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier backed by slog.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: slog.Default().With("component", "notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.log.Info("Notification",
		"actor", msg.Actor,
		"channel", msg.Channel,
		"subject", msg.Subject,
		"job", msg.JobID,
	)
	return nil
}

// Multi sends every message to all notifiers and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
