package processor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, AccessToken: "tok_test", SpaceID: "spc_1", Timeout: time.Second})
}

func TestGetPaymentSendsCredentialsAndUnwrapsResult(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_1", r.URL.Path)
		assert.Equal(t, "Bearer tok_test", r.Header.Get("Authorization"))
		assert.Equal(t, "spc_1", r.Header.Get("Monime-Space-Id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"result":{"id":"pay_1","status":"PAID","order":{"number":"ORD-77"}}}`))
	})

	payment, err := client.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", payment.ID)
	assert.Equal(t, "paid", payment.Status)
	assert.Equal(t, "ORD-77", payment.OrderNumber)
}

func TestGetCheckoutSession(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout-sessions/cos_1", r.URL.Path)
		w.Write([]byte(`{"id":"cos_1","status":"completed","paymentId":"pay_9","orderNumber":"ORD-1"}`))
	})

	session, err := client.GetCheckoutSession(context.Background(), "cos_1")
	require.NoError(t, err)
	assert.Equal(t, "cos_1", session.ID)
	assert.Equal(t, "completed", session.Status)
	assert.Equal(t, "pay_9", session.PaymentID)
	assert.Equal(t, "ORD-1", session.OrderNumber)
}

func TestGetPaymentErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"not found", http.StatusNotFound, `{}`, errs.ErrNotFound},
		{"server error", http.StatusBadGateway, `{}`, errs.ErrUnavailable},
		{"unreadable body", http.StatusOK, `<html>`, errs.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.GetPayment(context.Background(), "pay_1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind))
		})
	}
}

func TestGetPaymentTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(Config{BaseURL: srv.URL, AccessToken: "tok", Timeout: 20 * time.Millisecond})

	_, err := client.GetPayment(context.Background(), "pay_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnavailable))
}
