package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentLifecycle(t *testing.T) {
	tests := []struct {
		status    string
		open      bool
		completed bool
	}{
		{PaymentStatusPending, true, false},
		{PaymentStatusProcessing, true, false},
		{PaymentStatusCompleted, false, true},
		{PaymentStatusFailed, false, false},
		{PaymentStatusCancelled, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			payment := Payment{PaymentStatus: tt.status}
			assert.Equal(t, tt.open, payment.Open())
			assert.Equal(t, tt.completed, payment.IsCompleted())
		})
	}
}
