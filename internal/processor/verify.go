package processor

import (
	"context"
	"errors"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/models"
)

type Outcome int

const (
	// Unavailable means the processor could not be asked. Callers fall back to
	// trusting the webhook.
	Unavailable Outcome = iota
	Confirmed
	Contradicted
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Contradicted:
		return "contradicted"
	}
	return "unavailable"
}

type Verification struct {
	Outcome Outcome
	Status  string
	Payment *Payment
	// Cause is set when Outcome is Unavailable.
	Cause error
}

// Err is non-nil only for a contradiction.
func (v Verification) Err(paymentID string) error {
	if v.Outcome != Contradicted {
		return nil
	}
	return errs.New("processor.verify", errs.ErrVerificationContradiction,
		"processor reports payment %s as %q", paymentID, v.Status)
}

// Verify asks the processor for the payment's status. A nil api, an empty id, or a
// transport failure yields Unavailable; any answered status other than a completed
// one yields Contradicted.
func Verify(ctx context.Context, api API, processorPaymentID string) Verification {
	if api == nil {
		return Verification{Outcome: Unavailable, Cause: errs.New("processor.verify", errs.ErrUnavailable, "processor credentials not configured")}
	}
	if processorPaymentID == "" {
		return Verification{Outcome: Unavailable, Cause: errs.New("processor.verify", errs.ErrUnavailable, "no processor payment id")}
	}

	payment, err := api.GetPayment(ctx, processorPaymentID)
	if err != nil {
		return Verification{Outcome: Unavailable, Cause: err}
	}
	if payment.Status == "" {
		return Verification{Outcome: Unavailable, Payment: payment, Cause: errors.New("processor response carried no status")}
	}

	if models.CompletedProcessorStatus(payment.Status) {
		return Verification{Outcome: Confirmed, Status: payment.Status, Payment: payment}
	}
	return Verification{Outcome: Contradicted, Status: payment.Status, Payment: payment}
}
