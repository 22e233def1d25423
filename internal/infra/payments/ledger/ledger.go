// Package ledger records every refund the provider confirmed, keyed by
// idempotency key, in a local BoltDB file. A key found in the ledger is
// answered from it without contacting the provider again.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	bolt "github.com/boltdb/bolt"

	"rentcancel/internal/app/policies"
)

const bucketName = "refunds"

type Entry struct {
	Key       string    `json:"key"`
	BookingID string    `json:"booking_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

type Ledger struct {
	Logger *slog.Logger

	db    *bolt.DB
	next  policies.PaymentsPort
	locks sync.Map
	now   func() time.Time
}

// Open creates or opens the ledger file and wraps next.
func Open(path string, next policies.PaymentsPort) (*Ledger, error) {
	if next == nil {
		return nil, fmt.Errorf("ledger: payments provider required")
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, next: next, now: time.Now}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) Refund(ctx context.Context, instr policies.RefundInstruction) (policies.RefundReceipt, error) {
	if instr.IdempotencyKey == "" {
		return policies.RefundReceipt{}, fmt.Errorf("%w: idempotency key required", policies.ErrRefundRejected)
	}
	unlock := l.lock(instr.IdempotencyKey)
	defer unlock()

	entry, found, err := l.Get(instr.IdempotencyKey)
	if err != nil {
		return policies.RefundReceipt{}, err
	}
	if found {
		if entry.Amount != instr.Amount.Amount || entry.Currency != instr.Amount.Currency {
			return policies.RefundReceipt{}, fmt.Errorf("%w: key %s already refunded %d %s", policies.ErrRefundKeyConflict, entry.Key, entry.Amount, entry.Currency)
		}
		return policies.RefundReceipt{Reference: entry.Reference, Replayed: true}, nil
	}

	receipt, err := l.next.Refund(ctx, instr)
	if err != nil {
		return policies.RefundReceipt{}, err
	}
	entry = Entry{
		Key:       instr.IdempotencyKey,
		BookingID: instr.BookingID,
		Amount:    instr.Amount.Amount,
		Currency:  instr.Amount.Currency,
		Reference: receipt.Reference,
		At:        l.now().UTC(),
	}
	// the provider already moved the money, so a failed write is not an error
	if err := l.put(entry); err != nil && l.Logger != nil {
		l.Logger.ErrorContext(ctx, "refund ledger write failed", "key", entry.Key, "reference", entry.Reference, "error", err)
	}
	return receipt, nil
}

func (l *Ledger) Get(key string) (Entry, bool, error) {
	var entry Entry
	found := false
	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &entry)
	})
	return entry, found, err
}

// Entries lists the ledger in key order.
func (l *Ledger) Entries() ([]Entry, error) {
	out := []Entry{}
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

func (l *Ledger) put(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(entry.Key), data)
	})
}

func (l *Ledger) lock(key string) func() {
	v, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

var _ policies.PaymentsPort = (*Ledger)(nil)
