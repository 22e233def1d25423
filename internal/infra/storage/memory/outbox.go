package memory

import (
	"context"
	"time"

	appoutbox "rentcancel/internal/app/outbox"
	"rentcancel/internal/app/uow"
	infraoutbox "rentcancel/internal/infra/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

type outboxEntry struct {
	record    appoutbox.EventRecord
	state     string
	attempts  int
	nextTry   time.Time
	lastError string
}

// Outbox stages records in the memory unit found in ctx. They reach the
// Store, and so the publisher, only when that unit commits.
type Outbox struct {
	store *Store
}

func NewOutbox(store *Store) *Outbox {
	return &Outbox{store: store}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if mu, ok := unit.(*Unit); ok && mu.store == o.store {
			return mu.stageEvent(record)
		}
	}
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	o.store.outbox = append(o.store.outbox, &outboxEntry{record: record, state: stateNew})
	return nil
}

func (o *Outbox) Flush(context.Context) error {
	return nil
}

// Claim hands the oldest due record to the publishing worker.
func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	now := time.Now().UTC()
	for _, e := range o.store.outbox {
		if (e.state == stateNew || e.state == stateFailed) && !e.nextTry.After(now) {
			e.state = stateClaimed
			return &infraoutbox.Message{Record: e.record, Attempts: e.attempts}, nil
		}
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	return o.update(id, func(e *outboxEntry) {
		e.state = stateSent
	})
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return o.update(id, func(e *outboxEntry) {
		e.state = stateFailed
		e.attempts++
		e.nextTry = next
		e.lastError = errMsg
	})
}

func (o *Outbox) update(id string, fn func(*outboxEntry)) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	for _, e := range o.store.outbox {
		if e.record.ID == id {
			fn(e)
			return nil
		}
	}
	return nil
}

var _ appoutbox.Outbox = (*Outbox)(nil)
var _ infraoutbox.Source = (*Outbox)(nil)
