package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/farellandr/duesledger/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidAPI() *MockAPI {
	return &MockAPI{GetPaymentFunc: func(ctx context.Context, id string) (*processor.Payment, error) {
		return &processor.Payment{ID: id, Status: "paid"}, nil
	}}
}

func TestWebhookCompletesSignedDelivery(t *testing.T) {
	env := setup(t, paidAPI(), webhookSecret)
	body := webhookBody(env)
	signer := helpers.NewWebhookVerifier(webhookSecret, 0)

	w := env.do(t, http.MethodPost, "/v1/webhooks/monime", body, map[string]string{
		"x-monime-signature": signer.SignTimestamped(body, time.Now()),
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, true, out["received"])
	assert.Equal(t, "checkout.session.completed", out["eventType"])
	assert.Equal(t, models.PaymentStatusCompleted, env.paymentStatus(t))

	var logs []models.WebhookLog
	require.NoError(t, env.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Verified)
	assert.Equal(t, "checkout.session.completed", logs[0].EventType)
}

func TestWebhookAcceptsBareHexSignatureHeader(t *testing.T) {
	env := setup(t, paidAPI(), webhookSecret)
	body := webhookBody(env)
	signer := helpers.NewWebhookVerifier(webhookSecret, 0)

	w := env.do(t, http.MethodPost, "/v1/webhooks/monime", body, map[string]string{
		"x-signature": signer.Sign(body),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestWebhookRejectsBadSignatureButAuditsIt(t *testing.T) {
	env := setup(t, paidAPI(), webhookSecret)

	w := env.do(t, http.MethodPost, "/v1/webhooks/monime", webhookBody(env), map[string]string{
		"x-monime-signature": "t=1700000000,v1=deadbeef",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
	assert.Equal(t, models.PaymentStatusPending, env.paymentStatus(t))

	var logs []models.WebhookLog
	require.NoError(t, env.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Verified)
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	env := setup(t, nil, "")

	w := env.do(t, http.MethodPost, "/v1/webhooks/monime", `{"event":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON payload.", decode(t, w)["error"])
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	env := setup(t, paidAPI(), webhookSecret)
	body := `{"data":{"note":"` + strings.Repeat("x", maxWebhookBody) + `"}}`
	signer := helpers.NewWebhookVerifier(webhookSecret, 0)

	w := env.do(t, http.MethodPost, "/v1/webhooks/monime", body, map[string]string{
		"x-monime-signature": signer.SignTimestamped(body, time.Now()),
	})

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "Payload too large.", decode(t, w)["error"])
	assert.Equal(t, models.PaymentStatusPending, env.paymentStatus(t))
}

func TestWebhookRelaxedModeWithoutSecret(t *testing.T) {
	env := setup(t, nil, "")

	w := env.do(t, http.MethodPost, "/v1/webhooks/monime", webhookBody(env), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.PaymentStatusCompleted, env.paymentStatus(t))
}

func TestWebhookContradictionIsRejected(t *testing.T) {
	api := &MockAPI{GetPaymentFunc: func(ctx context.Context, id string) (*processor.Payment, error) {
		return &processor.Payment{ID: id, Status: "pending"}, nil
	}}
	env := setup(t, api, "")

	w := env.do(t, http.MethodPost, "/v1/webhooks/monime", webhookBody(env), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "pending")
	assert.Equal(t, models.PaymentStatusPending, env.paymentStatus(t))
}

func TestWebhookUnresolvableCompletionIsRejected(t *testing.T) {
	env := setup(t, nil, "")

	w := env.do(t, http.MethodPost, "/v1/webhooks/monime", `{"type":"payment.completed","data":{"id":"pay_nobody"}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookPreflight(t *testing.T) {
	env := setup(t, nil, "")

	w := env.do(t, http.MethodOptions, "/v1/webhooks/monime", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	env := setup(t, nil, "")

	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
