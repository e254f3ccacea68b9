// Package mailer hands outgoing mail to whatever delivers it.
package mailer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Skotchmaster/auth_service/internal/logging"
)

type Message struct {
	ID      string `json:"id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

type publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// KafkaDispatcher writes messages to an outbox topic read by the mail sender.
type KafkaDispatcher struct {
	Producer publisher
	Topic    string
}

func NewKafkaDispatcher(p publisher, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{Producer: p, Topic: topic}
}

func (d *KafkaDispatcher) Send(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return d.Producer.PublishEvent(ctx, d.Topic, msg.To, msg)
}

// LogDispatcher only logs recipients and subjects. Used when no broker is
// configured.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d LogDispatcher) Send(ctx context.Context, msg Message) error {
	l := d.Logger
	if l == nil {
		l = logging.FromContext(ctx)
	}
	l.Info("mail_dispatched", "to", msg.To, "subject", msg.Subject)
	return nil
}
