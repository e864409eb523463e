package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockAPI struct {
	GetPaymentFunc         func(ctx context.Context, id string) (*Payment, error)
	GetCheckoutSessionFunc func(ctx context.Context, id string) (*CheckoutSession, error)
}

func (m *MockAPI) GetPayment(ctx context.Context, id string) (*Payment, error) {
	return m.GetPaymentFunc(ctx, id)
}

func (m *MockAPI) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	return m.GetCheckoutSessionFunc(ctx, id)
}

func paymentWithStatus(status string) *MockAPI {
	return &MockAPI{GetPaymentFunc: func(ctx context.Context, id string) (*Payment, error) {
		return &Payment{ID: id, Status: status}, nil
	}}
}

func TestVerifyOutcomes(t *testing.T) {
	tests := []struct {
		name string
		api  API
		id   string
		want Outcome
	}{
		{"completed", paymentWithStatus("completed"), "pay_1", Confirmed},
		{"paid", paymentWithStatus("paid"), "pay_1", Confirmed},
		{"success", paymentWithStatus("success"), "pay_1", Confirmed},
		{"pending contradicts", paymentWithStatus("pending"), "pay_1", Contradicted},
		{"failed contradicts", paymentWithStatus("failed"), "pay_1", Contradicted},
		{"no client", nil, "pay_1", Unavailable},
		{"no id", paymentWithStatus("completed"), "", Unavailable},
		{"empty status", paymentWithStatus(""), "pay_1", Unavailable},
		{"transport failure", &MockAPI{GetPaymentFunc: func(ctx context.Context, id string) (*Payment, error) {
			return nil, errs.New("processor.get", errs.ErrUnavailable, "connection refused")
		}}, "pay_1", Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Verify(context.Background(), tt.api, tt.id)
			assert.Equal(t, tt.want, got.Outcome)
		})
	}
}

func TestContradictionNamesObservedStatus(t *testing.T) {
	v := Verify(context.Background(), paymentWithStatus("pending"), "pay_1")

	err := v.Err("11111111-1111-1111-1111-111111111111")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrVerificationContradiction))
	assert.Contains(t, err.Error(), `"pending"`)
}

func TestOnlyContradictionIsAnError(t *testing.T) {
	assert.NoError(t, Verify(context.Background(), nil, "pay_1").Err("x"))
	assert.NoError(t, Verify(context.Background(), paymentWithStatus("paid"), "pay_1").Err("x"))
}
