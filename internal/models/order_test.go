package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionOrderStatus(t *testing.T) {
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusPending, OrderStatusRefunded, false},

		{OrderStatusPaid, OrderStatusProcessing, true},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusPaid, OrderStatusRefunded, true},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusPaid, OrderStatusFailed, false},

		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusRefunded, true},
		{OrderStatusProcessing, OrderStatusPaid, false},

		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusRefunded, true},
		{OrderStatusShipped, OrderStatusProcessing, false},

		// Terminal statuses never move.
		{OrderStatusDelivered, OrderStatusRefunded, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusRefunded, OrderStatusPaid, false},
		{OrderStatusFailed, OrderStatusPending, false},

		{"unknown", OrderStatusPaid, false},
		{OrderStatusPending, "unknown", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransitionOrderStatus(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}
