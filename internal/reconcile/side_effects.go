package reconcile

import (
	"context"

	"github.com/farellandr/duesledger/internal/notify"
	"github.com/farellandr/duesledger/internal/receipts"
	"github.com/google/uuid"
)

// bestEffort runs one downstream side effect. Errors and panics are logged and never
// reach the caller.
func (e *Engine) bestEffort(name string, paymentID uuid.UUID, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("side effect panicked", "side_effect", name, "payment_id", paymentID, "panic", r)
		}
	}()

	if err := fn(); err != nil {
		e.Logger.Warn("side effect failed", "side_effect", name, "payment_id", paymentID, "error", err)
	}
}

// afterCompletion fans out to the collaborators of a freshly completed payment.
func (e *Engine) afterCompletion(ctx context.Context, paymentID uuid.UUID) {
	payment, err := e.Store.GetPaymentWithParties(paymentID)
	if err != nil {
		e.Logger.Error("completed payment could not be reloaded, side effects skipped", "payment_id", paymentID, "error", err)
		return
	}

	e.bestEffort("member_totals", paymentID, func() error {
		totals, err := e.Store.RecalculateMemberTotals(payment.MemberID)
		if err != nil {
			return err
		}
		if totals.Reactivated {
			e.Logger.Info("member reactivated", "member_id", payment.MemberID, "balance", totals.Member.Balance.String())
		}
		return nil
	})

	e.bestEffort("report_refresh", paymentID, func() error {
		return e.Reporter.RefreshReport(ctx, notify.ReportRefresh{
			OrganizationID: payment.OrganizationID,
			PaymentID:      payment.ID,
			MemberID:       payment.MemberID,
			Reason:         "payment_completed",
		})
	})

	e.bestEffort("receipt", paymentID, func() error {
		if e.Issuer == nil {
			e.Logger.Warn("no object store configured, receipt not issued", "payment_id", paymentID)
			return nil
		}
		result, err := e.Issuer.Issue(ctx, receipts.Request{PaymentID: paymentID})
		if err != nil {
			return err
		}
		if result.InProgress {
			e.Logger.Info("receipt generation left to concurrent issuer", "payment_id", paymentID)
		}
		return nil
	})

	e.bestEffort("notifications", paymentID, func() error {
		return e.Store.InsertNotifications(notify.PaymentCompleted(payment, payment.Member))
	})
}
