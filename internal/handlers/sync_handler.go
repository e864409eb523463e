package handlers

import (
	"net/http"

	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/farellandr/duesledger/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SyncPaymentRequest struct {
	PaymentID string `json:"paymentId" binding:"required"`
}

type SyncPaymentResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	PaymentStatus   string `json:"paymentStatus"`
	ReferenceNumber string `json:"referenceNumber"`
}

func (h *Handler) SyncPayment(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}
	userUUID, ok := userID.(uuid.UUID)
	if !ok {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Invalid user ID type.")
		return
	}

	var req SyncPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "paymentId is required.")
		return
	}
	paymentID, err := helpers.ParseUUID(req.PaymentID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	db, ok := requestDB(c)
	if !ok {
		return
	}
	s := store.New(db)

	user, err := s.GetUser(userUUID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User not found.")
		return
	}
	payment, err := s.GetPaymentWithParties(paymentID)
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}
	if !canSync(user, payment) {
		helpers.RespondWithError(c, http.StatusForbidden, "You don't have permission to sync this payment.")
		return
	}

	result, err := h.engine(c, db).Sync(c.Request.Context(), paymentID)
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, SyncPaymentResponse{
		Success:         true,
		Message:         result.Message,
		PaymentStatus:   result.PaymentStatus,
		ReferenceNumber: result.ReferenceNumber,
	})
}

// canSync admits organization admins and treasurers, and the member who paid.
func canSync(user *models.User, payment *models.Payment) bool {
	if user.OrganizationID == payment.OrganizationID && user.Role.CanManagePayments() {
		return true
	}
	return payment.Member != nil && payment.Member.UserID != nil && *payment.Member.UserID == user.ID
}
