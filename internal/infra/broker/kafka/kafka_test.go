package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcancel/internal/app/commands"
	bookinghandlers "rentcancel/internal/app/handlers/booking"
)

type recordingBus struct {
	dispatched []commands.Command
	err        error
}

func (b *recordingBus) Dispatch(_ context.Context, cmd commands.Command) (any, error) {
	b.dispatched = append(b.dispatched, cmd)
	return nil, b.err
}

type mapInbox struct{ ids map[string]bool }

func (m *mapInbox) Seen(_ context.Context, id string) (bool, error) {
	if m.ids[id] {
		return true, nil
	}
	m.ids[id] = true
	return false, nil
}

func (m *mapInbox) Forget(_ context.Context, id string) error {
	delete(m.ids, id)
	return nil
}

func message(t *testing.T, id, typ, bookingID string) *sarama.ConsumerMessage {
	t.Helper()
	value, err := json.Marshal(map[string]any{
		"id":   id,
		"type": typ,
		"data": map[string]any{"BookingID": bookingID},
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "booking.events.v1", Value: value}
}

func TestDeferredRefundDispatchesOncePerEvent(t *testing.T) {
	bus := &recordingBus{}
	h := &DeferredRefundHandler{Bus: bus, Inbox: &mapInbox{ids: map[string]bool{}}}
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, message(t, "evt-1", refundDeferredType, "bk-1")))
	require.NoError(t, h.Handle(ctx, message(t, "evt-1", refundDeferredType, "bk-1")))
	require.Len(t, bus.dispatched, 1)
	assert.Equal(t, bookinghandlers.SettleDeferredRefundCommand{BookingID: "bk-1"}, bus.dispatched[0])
}

func TestDeferredRefundIgnoresOtherEvents(t *testing.T) {
	bus := &recordingBus{}
	h := &DeferredRefundHandler{Bus: bus}
	require.NoError(t, h.Handle(context.Background(), message(t, "evt-2", "booking.cancelled.v1", "bk-1")))
	assert.Empty(t, bus.dispatched)
}

func TestDeferredRefundFailureCanBeRetried(t *testing.T) {
	bus := &recordingBus{err: errors.New("provider down")}
	inbox := &mapInbox{ids: map[string]bool{}}
	h := &DeferredRefundHandler{Bus: bus, Inbox: inbox}

	assert.Error(t, h.Handle(context.Background(), message(t, "evt-3", refundDeferredType, "bk-1")))
	assert.False(t, inbox.ids["evt-3"])

	bus.err = nil
	require.NoError(t, h.Handle(context.Background(), message(t, "evt-3", refundDeferredType, "bk-1")))
	assert.Len(t, bus.dispatched, 2)
}

type stickyInbox struct{ mapInbox }

func (s *stickyInbox) Forget(context.Context, string) error {
	return errors.New("inbox unavailable")
}

func TestDeferredRefundLogsForgetFailure(t *testing.T) {
	var buf bytes.Buffer
	bus := &recordingBus{err: errors.New("provider down")}
	h := &DeferredRefundHandler{
		Bus:    bus,
		Inbox:  &stickyInbox{mapInbox{ids: map[string]bool{}}},
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	}

	err := h.Handle(context.Background(), message(t, "evt-1", refundDeferredType, "bk-1"))
	assert.ErrorIs(t, err, bus.err)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "inbox forget failed")
	assert.Contains(t, buf.String(), "inbox unavailable")
}

func TestDeferredRefundRejectsGarbage(t *testing.T) {
	h := &DeferredRefundHandler{Bus: &recordingBus{}}
	assert.Error(t, h.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte("not json")}))
	assert.Error(t, h.Handle(context.Background(), message(t, "evt-4", refundDeferredType, "")))
}

func TestProducerPublishesWithHeaders(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "booking.events.v1" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "bk-1" {
			return errors.New("unexpected key " + string(key))
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != "content-type" {
			return errors.New("missing content-type header")
		}
		return nil
	})
	p := newWithSync(sync)
	require.NoError(t, p.Publish(context.Background(), "booking.events.v1", "bk-1", []byte(`{}`), map[string]string{"content-type": "application/cloudevents+json"}))
	require.NoError(t, p.Close())
}
