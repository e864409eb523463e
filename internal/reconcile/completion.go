package reconcile

import (
	"context"

	"github.com/farellandr/duesledger/internal/events"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/farellandr/duesledger/internal/processor"
	"github.com/farellandr/duesledger/internal/store"
)

func (e *Engine) completeFromEvent(ctx context.Context, ev events.Event) (*Result, error) {
	payment, err := e.resolvePayment(ev)
	if err != nil {
		return nil, err
	}
	if payment.IsCompleted() {
		return &Result{Outcome: OutcomeAlreadyCompleted, Payment: payment, ReferenceNumber: payment.ReferenceNumber}, nil
	}

	sessionID := ev.CheckoutSessionID()
	if sessionID == "" {
		sessionID = payment.CheckoutSessionID
	}
	processorPaymentID := ev.ProcessorPaymentID()

	var session *processor.CheckoutSession
	if processorPaymentID == "" && sessionID != "" && e.API != nil {
		session, err = e.API.GetCheckoutSession(ctx, sessionID)
		if err != nil {
			e.Logger.Warn("checkout session lookup failed", "payment_id", payment.ID, "checkout_session_id", sessionID, "error", err)
		} else {
			processorPaymentID = session.PaymentID
		}
	}
	if processorPaymentID == "" {
		processorPaymentID = payment.ExternalPaymentID
	}

	verification := processor.Verify(ctx, e.API, processorPaymentID)
	switch verification.Outcome {
	case processor.Contradicted:
		e.Logger.Warn("processor contradicts completion event",
			"payment_id", payment.ID, "processor_payment_id", processorPaymentID, "processor_status", verification.Status)
		return nil, verification.Err(payment.ID.String())
	case processor.Unavailable:
		e.Logger.Warn("authoritative verification unavailable, trusting webhook",
			"payment_id", payment.ID, "processor_payment_id", processorPaymentID, "reason", verification.Cause)
	}

	reference := e.referenceNumber(ctx, ev, referenceSources{
		session:            session,
		sessionID:          sessionID,
		processorPayment:   verification.Payment,
		processorPaymentID: processorPaymentID,
	})

	return e.commitCompletion(ctx, payment, store.Completion{
		ReferenceNumber:   reference,
		ExternalPaymentID: processorPaymentID,
		CheckoutSessionID: sessionID,
		PaidAt:            e.now(),
	})
}

// commitCompletion performs the conditional write and, for the winner only, the side
// effects.
func (e *Engine) commitCompletion(ctx context.Context, payment *models.Payment, completion store.Completion) (*Result, error) {
	won, err := e.Store.MarkCompleted(payment.ID, completion)
	if err != nil {
		return nil, err
	}
	if !won {
		e.Logger.Info("payment already completed by a concurrent writer", "payment_id", payment.ID)
		return &Result{Outcome: OutcomeAlreadyCompleted, Payment: payment}, nil
	}

	e.Logger.Info("payment completed", "payment_id", payment.ID, "reference_number", completion.ReferenceNumber)
	e.afterCompletion(ctx, payment.ID)

	payment.PaymentStatus = models.PaymentStatusCompleted
	if completion.ReferenceNumber != "" {
		payment.ReferenceNumber = completion.ReferenceNumber
	}
	return &Result{Outcome: OutcomeCompleted, Payment: payment, ReferenceNumber: payment.ReferenceNumber}, nil
}

type referenceSources struct {
	session            *processor.CheckoutSession
	sessionID          string
	processorPayment   *processor.Payment
	processorPaymentID string
}

// referenceNumber picks the human-facing reference: the payload's order number, then
// the processor's checkout session and payment records, then the processor ids.
func (e *Engine) referenceNumber(ctx context.Context, ev events.Event, src referenceSources) string {
	if order := events.OrderNumber(ev.Data); order != "" {
		return order
	}

	if e.API != nil {
		if src.session == nil && src.sessionID != "" {
			if session, err := e.API.GetCheckoutSession(ctx, src.sessionID); err == nil {
				src.session = session
			}
		}
		if src.session != nil && src.session.OrderNumber != "" {
			return src.session.OrderNumber
		}

		if src.processorPayment == nil && src.processorPaymentID != "" {
			if payment, err := e.API.GetPayment(ctx, src.processorPaymentID); err == nil {
				src.processorPayment = payment
			}
		}
		if src.processorPayment != nil && src.processorPayment.OrderNumber != "" {
			return src.processorPayment.OrderNumber
		}
	}

	if src.sessionID != "" {
		return src.sessionID
	}
	return src.processorPaymentID
}
