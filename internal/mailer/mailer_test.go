package mailer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/logging"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	got   []Message
	err   error
	block chan struct{}
}

func (r *recordingDispatcher) Send(_ context.Context, msg Message) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, msg)
	return r.err
}

func (r *recordingDispatcher) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.got...)
}

type fakePublisher struct {
	topic, key string
	event      any
}

func (f *fakePublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	f.topic, f.key, f.event = topic, key, event
	return nil
}

func TestKafkaDispatcher_PublishesToOutbox(t *testing.T) {
	p := &fakePublisher{}
	d := NewKafkaDispatcher(p, "mail_outbox")

	err := d.Send(context.Background(), Message{To: "a@x.io", Subject: "s", Body: "b"})
	require.NoError(t, err)

	assert.Equal(t, "mail_outbox", p.topic)
	assert.Equal(t, "a@x.io", p.key)
	msg, ok := p.event.(Message)
	require.True(t, ok)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "b", msg.Body)
}

func TestLogDispatcher_OmitsBody(t *testing.T) {
	var buf bytes.Buffer
	d := LogDispatcher{Logger: logging.NewWithWriter(&buf, "info")}

	require.NoError(t, d.Send(context.Background(), Message{To: "a@x.io", Subject: "Reset", Body: "Your OTP is: 123456"}))
	assert.Contains(t, buf.String(), "a@x.io")
	assert.NotContains(t, buf.String(), "123456")
}

func TestAsync_DeliversAndDrainsOnClose(t *testing.T) {
	next := &recordingDispatcher{}
	a := NewAsync(next, 8, 2, nil, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, a.Send(context.Background(), Message{To: "a@x.io"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))
	assert.Len(t, next.messages(), 5)

	assert.ErrorIs(t, a.Send(context.Background(), Message{}), ErrClosed)
	require.NoError(t, a.Close(ctx))
}

func TestAsync_FullQueueDoesNotBlock(t *testing.T) {
	next := &recordingDispatcher{block: make(chan struct{})}
	a := NewAsync(next, 1, 1, nil, nil)

	// one message is held by the worker, one fills the queue
	var full error
	for i := 0; i < 3 && full == nil; i++ {
		full = a.Send(context.Background(), Message{To: "a@x.io"})
	}
	assert.ErrorIs(t, full, ErrQueueFull)

	close(next.block)
	require.NoError(t, a.Close(context.Background()))
}

func TestAsync_FailuresAreLogged(t *testing.T) {
	var buf bytes.Buffer
	next := &recordingDispatcher{err: errors.New("smtp down")}
	a := NewAsync(next, 1, 1, slog.New(slog.NewJSONHandler(&buf, nil)), nil)

	require.NoError(t, a.Send(context.Background(), Message{To: "a@x.io"}))
	require.NoError(t, a.Close(context.Background()))
	assert.Contains(t, buf.String(), "mail_dispatch_failed")
}
