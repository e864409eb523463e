package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/farellandr/duesledger/internal/middleware"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/farellandr/duesledger/internal/processor"
	"github.com/farellandr/duesledger/internal/receipts"
	"github.com/farellandr/duesledger/internal/reconcile"
	"github.com/farellandr/duesledger/internal/store"
	"github.com/farellandr/duesledger/internal/store/storetest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	webhookSecret = "whsec_test"
	jwtSecret     = "jwt-test-secret"
	serviceKey    = "svc-key"
)

type MockAPI struct {
	GetPaymentFunc         func(ctx context.Context, id string) (*processor.Payment, error)
	GetCheckoutSessionFunc func(ctx context.Context, id string) (*processor.CheckoutSession, error)
}

func (m *MockAPI) GetPayment(ctx context.Context, id string) (*processor.Payment, error) {
	if m.GetPaymentFunc == nil {
		return nil, errs.New("mock", errs.ErrUnavailable, "unreachable")
	}
	return m.GetPaymentFunc(ctx, id)
}

func (m *MockAPI) GetCheckoutSession(ctx context.Context, id string) (*processor.CheckoutSession, error) {
	if m.GetCheckoutSessionFunc == nil {
		return nil, errs.New("mock", errs.ErrUnavailable, "unreachable")
	}
	return m.GetCheckoutSessionFunc(ctx, id)
}

type memoryObjects struct{}

func (memoryObjects) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	return "https://files.example.com/" + key, nil
}

func (memoryObjects) Delete(ctx context.Context, key string) error { return nil }

type stubRenderer struct{}

func (stubRenderer) Render(doc receipts.Document) ([]byte, error) {
	return []byte("%PDF"), nil
}

type testEnv struct {
	db      *gorm.DB
	fixture *storetest.Fixture
	router  *gin.Engine
	handler *Handler
}

func setup(t *testing.T, api processor.API, secret string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := storetest.NewDB(t)
	fixture := storetest.Seed(t, db)

	deps := reconcile.Deps{
		API:           api,
		Objects:       memoryObjects{},
		Renderer:      stubRenderer{},
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		SigningSecret: "receipt-secret",
	}
	h := New(deps, helpers.NewWebhookVerifier(secret, 0))

	keyHash, err := bcrypt.GenerateFromPassword([]byte(serviceKey), bcrypt.MinCost)
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.DatabaseMiddleware(db))
	r.GET("/healthz", Health)
	v1 := r.Group("/v1")
	v1.POST("/webhooks/monime", middleware.CORSMiddleware(), h.MonimeWebhook)
	v1.OPTIONS("/webhooks/monime", middleware.CORSMiddleware())
	v1.POST("/receipts/generate", middleware.ServiceKeyMiddleware(string(keyHash)), h.GenerateReceipt)
	v1.POST("/receipts/verify", middleware.JWTAuthMiddleware(jwtSecret), h.VerifyReceipt)
	v1.POST("/payments/sync", middleware.JWTAuthMiddleware(jwtSecret), h.SyncPayment)

	return &testEnv{db: db, fixture: fixture, router: r, handler: h}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) token(t *testing.T, user models.User) string {
	t.Helper()
	token, err := helpers.GenerateToken(jwtSecret, user.ID, user.Role.Name, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (e *testEnv) paymentStatus(t *testing.T) string {
	t.Helper()
	payment, err := store.New(e.db).GetPayment(e.fixture.Payment.ID)
	require.NoError(t, err)
	return payment.PaymentStatus
}

func (e *testEnv) completeFixturePayment(t *testing.T) {
	t.Helper()
	_, err := store.New(e.db).MarkCompleted(e.fixture.Payment.ID, store.Completion{ReferenceNumber: "ORD-1"})
	require.NoError(t, err)
}

func webhookBody(e *testEnv) string {
	return fmt.Sprintf(`{"event":{"name":"checkout_session.completed"},"data":{"id":"pay_1","metadata":{"payment_id":"%s"},"status":"completed"}}`, e.fixture.Payment.ID)
}
