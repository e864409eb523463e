package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/farellandr/duesledger/internal/events"
	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/farellandr/duesledger/internal/middleware"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/farellandr/duesledger/internal/store"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

const maxWebhookBody = 1 << 20

type WebhookResponse struct {
	Success   bool   `json:"success"`
	Received  bool   `json:"received"`
	EventType string `json:"eventType"`
}

// MonimeWebhook accepts processor notifications. Any failure is answered with 400 so
// the processor records the delivery as rejected.
func (h *Handler) MonimeWebhook(c *gin.Context) {
	logger := middleware.RequestLoggerFrom(c, h.Logger)

	db, ok := requestDB(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Failed to read request body.")
		return
	}
	if len(body) > maxWebhookBody {
		logger.Warn("webhook body too large", "limit", maxWebhookBody)
		helpers.RespondWithError(c, http.StatusRequestEntityTooLarge, "Payload too large.")
		return
	}

	signature := c.GetHeader("x-monime-signature")
	if signature == "" {
		signature = c.GetHeader("x-signature")
	}

	var verifyErr error
	if h.Verifier.Enabled() {
		verifyErr = h.Verifier.Verify(string(body), signature)
	} else {
		logger.Warn("webhook secret not configured, accepting unsigned webhook")
	}

	event, parseErr := events.Normalize(body)

	h.audit(c, store.New(db), body, signature, h.Verifier.Enabled() && verifyErr == nil, event.Type)

	if verifyErr != nil {
		logger.Warn("webhook signature rejected", "error", verifyErr)
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid webhook signature.")
		return
	}
	if parseErr != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid JSON payload.")
		return
	}

	logger.Info("webhook received", "event_type", event.Type, "variant", event.Variant)

	result, err := h.engine(c, db).HandleEvent(c.Request.Context(), event)
	if err != nil {
		logger.Error("webhook processing failed", "event_type", event.Type, "error", err)
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	logger.Info("webhook processed", "event_type", event.Type, "outcome", result.Outcome)
	c.JSON(http.StatusOK, WebhookResponse{Success: true, Received: true, EventType: event.Type})
}

// audit records the delivery before it is acted on. Failures are logged only.
func (h *Handler) audit(c *gin.Context, s *store.Store, body []byte, signature string, verified bool, eventType string) {
	headers, err := json.Marshal(c.Request.Header)
	if err != nil {
		headers = []byte("{}")
	}

	entry := &models.WebhookLog{
		ReceivedAt: time.Now(),
		Headers:    datatypes.JSON(headers),
		RawBody:    string(body),
		Signature:  signature,
		Verified:   verified,
		EventType:  eventType,
	}
	if err := s.InsertWebhookLog(entry); err != nil {
		middleware.RequestLoggerFrom(c, h.Logger).Warn("failed to write webhook audit log", "error", err)
	}
}
