package notify

import (
	"context"
	"testing"
	"time"

	"github.com/farellandr/duesledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentCompletedNotifications(t *testing.T) {
	payment := &models.Payment{
		ID:              uuid.New(),
		OrganizationID:  uuid.New(),
		MemberID:        uuid.New(),
		Amount:          decimal.RequireFromString("150.5"),
		Currency:        "SLE",
		ReferenceNumber: "ORD-9",
	}
	member := &models.Member{ID: payment.MemberID, FullName: "Sam Member"}

	got := PaymentCompleted(payment, member)
	require.Len(t, got, 2)

	assert.Equal(t, models.AudienceMember, got[0].Audience)
	require.NotNil(t, got[0].MemberID)
	assert.Equal(t, member.ID, *got[0].MemberID)
	assert.Contains(t, got[0].Message, "SLE 150.50")
	assert.Contains(t, got[0].Message, "ORD-9")

	assert.Equal(t, models.AudienceAdmin, got[1].Audience)
	assert.Nil(t, got[1].MemberID)
	assert.Contains(t, got[1].Message, "Sam Member")

	for _, n := range got {
		assert.Equal(t, models.NotificationPaymentCompleted, n.Type)
		assert.Equal(t, payment.ID, n.PaymentID)
		assert.Equal(t, payment.OrganizationID, n.OrganizationID)
	}
}

func TestNopReporter(t *testing.T) {
	assert.NoError(t, NopReporter{}.RefreshReport(context.Background(), ReportRefresh{}))
}

func TestAMQPReporterRefusesWithoutConnection(t *testing.T) {
	r := NewAMQPReporter(AMQPConfig{URL: "amqp://localhost:1", Exchange: "payments.events"}, nil)
	assert.False(t, r.IsConnected())
	assert.Error(t, r.RefreshReport(context.Background(), ReportRefresh{}))
}

func TestAMQPReporterFailsFastWhileDialing(t *testing.T) {
	r := NewAMQPReporter(AMQPConfig{
		URL:        "amqp://127.0.0.1:1",
		Exchange:   "payments.events",
		RetryCount: 3,
		RetryDelay: 200 * time.Millisecond,
	}, nil)

	done := make(chan error, 1)
	go func() { done <- r.Connect() }()

	require.Eventually(t, func() bool {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.reconnecting
	}, time.Second, time.Millisecond)

	start := time.Now()
	err := r.RefreshReport(context.Background(), ReportRefresh{})
	assert.ErrorIs(t, err, errReconnecting)
	assert.ErrorIs(t, r.Connect(), errReconnecting)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	assert.Error(t, <-done)
	assert.False(t, r.IsConnected())
}
