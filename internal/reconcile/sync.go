package reconcile

import (
	"context"
	"fmt"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/farellandr/duesledger/internal/processor"
	"github.com/farellandr/duesledger/internal/store"
	"github.com/google/uuid"
)

type SyncResult struct {
	Outcome         Outcome
	Message         string
	PaymentStatus   string
	ReferenceNumber string
	ProcessorStatus string
}

// Sync re-derives a payment's status from the processor. The checkout session only
// leads to the underlying processor payment; its own status is never trusted.
func (e *Engine) Sync(ctx context.Context, paymentID uuid.UUID) (*SyncResult, error) {
	const op = "reconcile.sync"

	payment, err := e.Store.GetPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if payment.IsCompleted() {
		return alreadyCompleted(payment), nil
	}
	if e.API == nil {
		return nil, errs.New(op, errs.ErrUnavailable, "processor credentials not configured")
	}

	processorPaymentID := payment.ExternalPaymentID
	var session *processor.CheckoutSession
	if payment.CheckoutSessionID != "" {
		session, err = e.API.GetCheckoutSession(ctx, payment.CheckoutSessionID)
		switch {
		case err == nil:
			if session.PaymentID != "" {
				processorPaymentID = session.PaymentID
			}
		case processorPaymentID != "":
			e.Logger.Warn("checkout session lookup failed, using stored processor payment",
				"payment_id", payment.ID, "checkout_session_id", payment.CheckoutSessionID, "error", err)
		default:
			return nil, err
		}
	}

	if processorPaymentID == "" {
		result := notYetCompleted(payment, "")
		if session != nil {
			result.Message = fmt.Sprintf("Payment is not yet completed. Checkout session is %s and has no payment yet.", session.Status)
		}
		return result, nil
	}

	authoritative, err := e.API.GetPayment(ctx, processorPaymentID)
	if err != nil {
		return nil, err
	}
	if !models.CompletedProcessorStatus(authoritative.Status) {
		return notYetCompleted(payment, authoritative.Status), nil
	}

	reference := authoritative.OrderNumber
	if reference == "" && session != nil {
		reference = session.OrderNumber
	}
	if reference == "" {
		reference = payment.CheckoutSessionID
	}
	if reference == "" {
		reference = processorPaymentID
	}

	result, err := e.commitCompletion(ctx, payment, store.Completion{
		ReferenceNumber:   reference,
		ExternalPaymentID: processorPaymentID,
		PaidAt:            e.now(),
	})
	if err != nil {
		return nil, err
	}
	if result.Outcome == OutcomeAlreadyCompleted {
		current, err := e.Store.GetPayment(paymentID)
		if err != nil {
			return nil, err
		}
		return alreadyCompleted(current), nil
	}

	return &SyncResult{
		Outcome:         OutcomeCompleted,
		Message:         "Payment status updated to completed.",
		PaymentStatus:   models.PaymentStatusCompleted,
		ReferenceNumber: result.ReferenceNumber,
		ProcessorStatus: authoritative.Status,
	}, nil
}

func alreadyCompleted(payment *models.Payment) *SyncResult {
	return &SyncResult{
		Outcome:         OutcomeAlreadyCompleted,
		Message:         "Payment is already completed.",
		PaymentStatus:   payment.PaymentStatus,
		ReferenceNumber: payment.ReferenceNumber,
	}
}

func notYetCompleted(payment *models.Payment, processorStatus string) *SyncResult {
	message := "Payment is not yet completed."
	if processorStatus != "" {
		message = fmt.Sprintf("Payment is not yet completed. Processor status: %s.", processorStatus)
	}
	return &SyncResult{
		Outcome:         OutcomeNotCompleted,
		Message:         message,
		PaymentStatus:   payment.PaymentStatus,
		ReferenceNumber: payment.ReferenceNumber,
		ProcessorStatus: processorStatus,
	}
}
