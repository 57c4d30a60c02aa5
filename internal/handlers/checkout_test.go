package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountToPaise(t *testing.T) {
	cases := []struct {
		amount float64
		paise  int64
	}{
		{19.99, 1999},
		{499.90, 49990},
		{1099.99, 109999},
		{0.01, 1},
		{1000, 100000},
		{0, 0},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.paise, amountToPaise(tc.amount), "%.2f", tc.amount)
	}
}

func TestOrderNumberFromID(t *testing.T) {
	first := orderNumberFromID(uuid.New())
	second := orderNumberFromID(uuid.New())

	require.Len(t, first, 13)
	assert.Equal(t, byte('#'), first[0])
	assert.NotEqual(t, first, second)

	// Deterministic for the same order id.
	id := uuid.New()
	assert.Equal(t, orderNumberFromID(id), orderNumberFromID(id))
}
