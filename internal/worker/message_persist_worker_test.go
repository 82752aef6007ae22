package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwery/internal/model"
)

type fakeStore struct {
	created []model.Message
	err     error
}

func (s *fakeStore) Create(_ context.Context, m *model.Message) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, *m)
	return nil
}

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked++; return nil }
func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}
func (a *fakeAck) Reject(uint64, bool) error { return nil }

func delivery(t *testing.T, ack *fakeAck, msg any, redelivered bool) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, Redelivered: redelivered}
}

func TestHandlePersistsAndAcks(t *testing.T) {
	store := &fakeStore{}
	w := NewMessagePersistWorker(nil, store, "q", zerolog.Nop())
	ack := &fakeAck{}

	w.handle(context.Background(), delivery(t, ack, model.Message{ID: "01H", ConversationID: "c1", Role: model.RoleUser, Content: "hi"}, false))

	require.Len(t, store.created, 1)
	assert.Equal(t, "01H", store.created[0].ID)
	assert.Equal(t, 1, ack.acked)
	assert.Zero(t, ack.nacked)
}

func TestHandleDropsUndecodable(t *testing.T) {
	w := NewMessagePersistWorker(nil, &fakeStore{}, "q", zerolog.Nop())
	ack := &fakeAck{}

	w.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{")})

	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestHandleRequeuesOnceOnStoreError(t *testing.T) {
	w := NewMessagePersistWorker(nil, &fakeStore{err: errors.New("db down")}, "q", zerolog.Nop())

	first := &fakeAck{}
	w.handle(context.Background(), delivery(t, first, model.Message{ID: "01H"}, false))
	assert.True(t, first.requeue)

	second := &fakeAck{}
	w.handle(context.Background(), delivery(t, second, model.Message{ID: "01H"}, true))
	assert.False(t, second.requeue)
}
