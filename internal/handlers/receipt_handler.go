package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/farellandr/duesledger/internal/middleware"
	"github.com/farellandr/duesledger/internal/receipts"
	"github.com/farellandr/duesledger/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type GenerateReceiptRequest struct {
	PaymentID      string `json:"paymentId" binding:"required"`
	OrganizationID string `json:"organizationId" binding:"required"`
	MemberID       string `json:"memberId" binding:"required"`
	IdempotencyKey string `json:"idempotencyKey"`
}

func (h *Handler) GenerateReceipt(c *gin.Context) {
	var req GenerateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "paymentId, organizationId and memberId are required.")
		return
	}

	var ids [3]uuid.UUID
	for i, raw := range []string{req.PaymentID, req.OrganizationID, req.MemberID} {
		id, err := helpers.ParseUUID(raw)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		ids[i] = id
	}

	db, ok := requestDB(c)
	if !ok {
		return
	}

	engine := h.engine(c, db)
	if engine.Issuer == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Receipt storage not configured.")
		return
	}

	middleware.RequestLoggerFrom(c, h.Logger).Info("receipt requested",
		"payment_id", ids[0], "idempotency_key", req.IdempotencyKey)

	result, err := engine.Issuer.Issue(c.Request.Context(), receipts.Request{
		PaymentID:      ids[0],
		OrganizationID: ids[1],
		MemberID:       ids[2],
	})
	if err != nil {
		helpers.RespondWithError(c, receiptErrorStatus(err), err.Error())
		return
	}

	if result.InProgress {
		c.JSON(http.StatusConflict, gin.H{
			"success":    false,
			"error":      "receipt generation already in progress",
			"inProgress": true,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"receipt": result.Receipt,
		"created": result.Created,
	})
}

func receiptErrorStatus(err error) int {
	switch {
	case errors.Is(err, errs.ErrMalformedInput), errors.Is(err, errs.ErrNotFound):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInvalidState):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

type VerifyReceiptRequest struct {
	QRData string `json:"qr_data" binding:"required"`
}

// VerifyReceipt checks a scanned receipt QR code against the issued receipt.
func (h *Handler) VerifyReceipt(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User not authenticated.")
		return
	}

	var req VerifyReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	receiptNumber, paymentID, valid := helpers.ValidateReceiptQRData(req.QRData, h.Deps.SigningSecret)
	if !valid {
		helpers.RespondWithError(c, http.StatusForbidden, "Invalid receipt signature.")
		return
	}

	db, ok := requestDB(c)
	if !ok {
		return
	}
	s := store.New(db)

	user, err := s.GetUser(userID.(uuid.UUID))
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}

	receipt, err := s.FindReceipt(paymentID)
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}
	if receipt == nil || receipt.ReceiptNumber != receiptNumber {
		helpers.RespondWithError(c, http.StatusNotFound, "Receipt not found.")
		return
	}
	if receipt.OrganizationID != user.OrganizationID {
		helpers.RespondWithError(c, http.StatusForbidden, "You don't have permission to verify this receipt.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"valid":   true,
		"receipt": receipt,
	})
}
