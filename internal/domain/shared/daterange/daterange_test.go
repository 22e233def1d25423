package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesOrder(t *testing.T) {
	start := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	_, err := New(start, start)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = New(time.Time{}, start)
	assert.ErrorIs(t, err, ErrInvalidRange)

	dr, err := New(start, start.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, dr.Nights())
}

func TestNightsCountsPartialDays(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	dr, err := New(start, start.Add(26*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, dr.Nights())
}
