package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentcancel/internal/app/outbox"
)

type fakeSource struct {
	queue  []*Message
	sent   []string
	failed map[string]string
}

func (f *fakeSource) Claim(context.Context, string) (*Message, error) {
	if len(f.queue) == 0 {
		return nil, nil
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeSource) MarkSent(_ context.Context, id string) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeSource) MarkFailed(_ context.Context, id string, _ time.Time, msg string) error {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[id] = msg
	return nil
}

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	out []published
	err error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.out = append(p.out, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func TestWorkerPublishesCloudEvent(t *testing.T) {
	src := &fakeSource{queue: []*Message{{Record: appoutbox.EventRecord{
		ID: "evt-1", Name: "booking.cancelled", Aggregate: "bk-1",
		Payload:    []byte(`{"BookingID":"bk-1"}`),
		OccurredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}}}}
	prod := &fakeProducer{}
	w := &Worker{Source: src, Producer: prod, TopicPrefix: "dev."}

	require.NoError(t, w.drain(context.Background()))
	require.Len(t, prod.out, 1)
	msg := prod.out[0]
	assert.Equal(t, "dev.booking.events.v1", msg.topic)
	assert.Equal(t, "bk-1", msg.key)
	assert.Equal(t, "application/cloudevents+json", msg.headers["content-type"])

	var evt map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &evt))
	assert.Equal(t, "evt-1", evt["id"])
	assert.Equal(t, "booking.cancelled.v1", evt["type"])
	assert.Equal(t, []string{"evt-1"}, src.sent)
}

func TestWorkerMarksFailure(t *testing.T) {
	src := &fakeSource{queue: []*Message{{Record: appoutbox.EventRecord{ID: "evt-1", Name: "booking.cancelled", Payload: []byte(`{}`)}}}}
	w := &Worker{Source: src, Producer: &fakeProducer{err: errors.New("broker down")}}

	processed, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, "broker down", src.failed["evt-1"])
	assert.Empty(t, src.sent)
}

func TestWorkerRequiresDependencies(t *testing.T) {
	assert.ErrorIs(t, (&Worker{}).Run(context.Background()), ErrWorkerNotConfigured)
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "booking.events.v1", TopicFor("", "booking.refund_deferred"))
	assert.Equal(t, "p.listing.events.v1", TopicFor("p.", "listing.policy_changed"))
}
