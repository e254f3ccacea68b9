// Package events carries security and account events out of the service.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	UserRegistered  = "user_registered"
	UserVerified    = "user_verified"
	LoginSucceeded  = "login_succeeded"
	LoginFailed     = "login_failed"
	TokenRefreshed  = "token_refreshed"
	RefreshRejected = "refresh_rejected"
	LoggedOut       = "logged_out"
	PasswordReset   = "password_reset"
	PasswordChanged = "password_changed"
	ProfileUpdated  = "profile_updated"
	AccountDeleted  = "account_deleted"
)

type Event struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	UserID string            `json:"user_id,omitempty"`
	Email  string            `json:"email,omitempty"`
	At     time.Time         `json:"at"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// New stamps an event with an id and the current time.
func New(typ, userID, email string) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   typ,
		UserID: userID,
		Email:  email,
		At:     time.Now().UTC(),
	}
}

// With returns a copy of e with an extra attribute.
func (e Event) With(key, value string) Event {
	attrs := make(map[string]string, len(e.Attrs)+1)
	for k, v := range e.Attrs {
		attrs[k] = v
	}
	attrs[key] = value
	e.Attrs = attrs
	return e
}

// Key is the partition key: the user when known, else the email.
func (e Event) Key() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.Email
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type producer interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type KafkaPublisher struct {
	Producer producer
	Topic    string
}

func NewKafkaPublisher(p producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{Producer: p, Topic: topic}
}

func (k *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	return k.Producer.PublishEvent(ctx, k.Topic, e.Key(), e)
}

// Multi publishes to every sink and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
