package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcancel/internal/app/commands"
	"rentcancel/internal/app/outbox"
	"rentcancel/internal/app/uow"
	domainbooking "rentcancel/internal/domain/booking"
	domainlistings "rentcancel/internal/domain/listings"
)

type chargeResult struct {
	Amount int64 `json:"amount"`
}

type chargeCommand struct {
	Key_   string
	Amount int64
	Fail   error
}

func (c chargeCommand) Key() string            { return "test.charge" }
func (c chargeCommand) IdempotencyKey() string { return c.Key_ }
func (c chargeCommand) ResultPrototype() any   { return &chargeResult{} }
func (c chargeCommand) Validate() error {
	if c.Amount < 0 {
		return errNegative
	}
	return nil
}

var errNegative = errors.New("negative amount")

type countingBus struct {
	calls int
}

func (b *countingBus) Dispatch(_ context.Context, cmd commands.Command) (any, error) {
	b.calls++
	c := cmd.(chargeCommand)
	if c.Fail != nil {
		return nil, c.Fail
	}
	return &chargeResult{Amount: c.Amount}, nil
}

type mapStore struct {
	mu    sync.Mutex
	items map[string]IdempotencyRecord
}

func (s *mapStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	base := &countingBus{}
	store := &mapStore{items: map[string]IdempotencyRecord{}}
	bus := ChainCommands(base, Idempotency(store, nil))

	first, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, chargeCommand{Key_: "k1", Amount: 10})
	require.NoError(t, err)
	second, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, chargeCommand{Key_: "k1", Amount: 99})
	require.NoError(t, err)

	assert.Equal(t, 1, base.calls)
	assert.Equal(t, first.Amount, second.Amount)
	_, stored := store.items["test.charge:k1"]
	assert.True(t, stored)
}

func TestIdempotencyDoesNotCacheFailures(t *testing.T) {
	base := &countingBus{}
	store := &mapStore{items: map[string]IdempotencyRecord{}}
	bus := ChainCommands(base, Idempotency(store, nil))
	boom := errors.New("provider down")

	_, err := bus.Dispatch(context.Background(), chargeCommand{Key_: "k1", Amount: 10, Fail: boom})
	assert.ErrorIs(t, err, boom)

	res, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, chargeCommand{Key_: "k1", Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Amount)
	assert.Equal(t, 2, base.calls)
}

func TestIdempotencySkipsEmptyKey(t *testing.T) {
	base := &countingBus{}
	store := &mapStore{items: map[string]IdempotencyRecord{}}
	bus := ChainCommands(base, Idempotency(store, nil))
	for i := 0; i < 2; i++ {
		_, err := bus.Dispatch(context.Background(), chargeCommand{Amount: 1})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, base.calls)
	assert.Empty(t, store.items)
}

func TestValidationStopsBeforeHandler(t *testing.T) {
	base := &countingBus{}
	bus := ChainCommands(base, Validation(), Logging(nil))
	_, err := bus.Dispatch(context.Background(), chargeCommand{Amount: -1})
	assert.ErrorIs(t, err, errNegative)
	assert.Zero(t, base.calls)
}

type fakeUnit struct {
	commits   int
	rollbacks int
}

func (u *fakeUnit) Listings() domainlistings.ListingRepository { return nil }
func (u *fakeUnit) Booking() domainbooking.Repository          { return nil }
func (u *fakeUnit) Commit(context.Context) error               { u.commits++; return nil }
func (u *fakeUnit) Rollback(context.Context) error             { u.rollbacks++; return nil }

type fakeFactory struct{ unit *fakeUnit }

func (f fakeFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	return f.unit, nil
}

type unitProbe struct{ sawUnit bool }

func (p *unitProbe) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	_, p.sawUnit = uow.FromContext(ctx)
	if c := cmd.(chargeCommand); c.Fail != nil {
		return nil, c.Fail
	}
	return &chargeResult{}, nil
}

func TestTransactionCommitsOrRollsBack(t *testing.T) {
	unit := &fakeUnit{}
	probe := &unitProbe{}
	bus := ChainCommands(probe, Transaction(fakeFactory{unit: unit}, nil))

	_, err := bus.Dispatch(context.Background(), chargeCommand{})
	require.NoError(t, err)
	assert.True(t, probe.sawUnit)
	assert.Equal(t, 1, unit.commits)
	assert.Equal(t, 0, unit.rollbacks)

	_, err = bus.Dispatch(context.Background(), chargeCommand{Fail: errors.New("nope")})
	assert.Error(t, err)
	assert.Equal(t, 1, unit.commits)
	assert.Equal(t, 1, unit.rollbacks)
}

type flushCounter struct{ flushed int }

func (f *flushCounter) Add(context.Context, outbox.EventRecord) error { return nil }
func (f *flushCounter) Flush(context.Context) error                   { f.flushed++; return nil }

func TestOutboxFlushOnlyOnSuccess(t *testing.T) {
	box := &flushCounter{}
	bus := ChainCommands(&countingBus{}, OutboxFlush(box))
	_, err := bus.Dispatch(context.Background(), chargeCommand{Fail: errors.New("nope")})
	assert.Error(t, err)
	assert.Zero(t, box.flushed)

	_, err = bus.Dispatch(context.Background(), chargeCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, box.flushed)
}
