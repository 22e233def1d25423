package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcancel/internal/app/policies"
	"rentcancel/internal/domain/shared/money"
)

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Refund(_ context.Context, instr policies.RefundInstruction) (policies.RefundReceipt, error) {
	p.calls++
	if p.err != nil {
		return policies.RefundReceipt{}, p.err
	}
	return policies.RefundReceipt{Reference: "ref-" + instr.IdempotencyKey}, nil
}

func openLedger(t *testing.T, next policies.PaymentsPort) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path, next)
	require.NoError(t, err)
	return l, path
}

func instr(amount int64) policies.RefundInstruction {
	return policies.RefundInstruction{BookingID: "bk-1", Amount: money.Must(amount, "EUR"), IdempotencyKey: "bk-1"}
}

func TestLedgerReplaysKnownKey(t *testing.T) {
	provider := &countingProvider{}
	l, _ := openLedger(t, provider)
	defer l.Close()
	ctx := context.Background()

	first, err := l.Refund(ctx, instr(120))
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := l.Refund(ctx, instr(120))
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Reference, second.Reference)
	assert.Equal(t, 1, provider.calls)

	_, err = l.Refund(ctx, instr(999))
	assert.ErrorIs(t, err, policies.ErrRefundRejected)
	assert.ErrorIs(t, err, policies.ErrRefundKeyConflict)
	assert.Equal(t, 1, provider.calls)
}

func TestLedgerSurvivesReopen(t *testing.T) {
	provider := &countingProvider{}
	l, path := openLedger(t, provider)
	_, err := l.Refund(context.Background(), instr(50))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	reopened, err := Open(path, provider)
	require.NoError(t, err)
	defer reopened.Close()
	entry, found, err := reopened.Get("bk-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(50), entry.Amount)
	assert.Equal(t, "EUR", entry.Currency)

	entries, err := reopened.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLedgerDoesNotRecordFailures(t *testing.T) {
	provider := &countingProvider{err: errors.New("timeout")}
	l, _ := openLedger(t, provider)
	defer l.Close()

	_, err := l.Refund(context.Background(), instr(70))
	assert.Error(t, err)
	_, found, err := l.Get("bk-1")
	require.NoError(t, err)
	assert.False(t, found)

	provider.err = nil
	receipt, err := l.Refund(context.Background(), instr(70))
	require.NoError(t, err)
	assert.False(t, receipt.Replayed)
	assert.Equal(t, 2, provider.calls)
}

func TestLedgerRequiresKey(t *testing.T) {
	l, _ := openLedger(t, &countingProvider{})
	defer l.Close()
	in := instr(10)
	in.IdempotencyKey = ""
	_, err := l.Refund(context.Background(), in)
	assert.ErrorIs(t, err, policies.ErrRefundRejected)
}
