// Package reconcile drives payment state from processor events and on-demand syncs.
//
// Every path that completes a payment goes through the same steps: authoritative
// verification, a conditional write that only one caller can win, then best-effort
// side effects run by the winner alone.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/events"
	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/farellandr/duesledger/internal/notify"
	"github.com/farellandr/duesledger/internal/processor"
	"github.com/farellandr/duesledger/internal/receipts"
	"github.com/farellandr/duesledger/internal/storage"
	"github.com/farellandr/duesledger/internal/store"
	"gorm.io/gorm"
)

// Deps are the long-lived collaborators shared by every request.
type Deps struct {
	// API is nil when processor credentials are not configured.
	API            processor.API
	Objects        storage.ObjectStore
	Renderer       receipts.Renderer
	Reporter       notify.Reporter
	Logger         *slog.Logger
	SigningSecret  string
	LockStaleAfter time.Duration
}

type Engine struct {
	Store    *store.Store
	API      processor.API
	Issuer   *receipts.Issuer
	Reporter notify.Reporter
	Logger   *slog.Logger
	Now      func() time.Time
}

// New builds an engine bound to one request's database handle.
func New(db *gorm.DB, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reporter := deps.Reporter
	if reporter == nil {
		reporter = notify.NopReporter{Logger: logger}
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = receipts.PDFRenderer{}
	}

	s := store.New(db)
	engine := &Engine{
		Store:    s,
		API:      deps.API,
		Reporter: reporter,
		Logger:   logger,
	}
	if deps.Objects != nil {
		engine.Issuer = &receipts.Issuer{
			Store:         s,
			Objects:       deps.Objects,
			Renderer:      renderer,
			SigningSecret: deps.SigningSecret,
			StaleAfter:    deps.LockStaleAfter,
			Logger:        logger,
		}
	}
	return engine
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeAlreadyCompleted Outcome = "already_completed"
	OutcomeNotCompleted     Outcome = "not_completed"
	OutcomeProcessing       Outcome = "processing"
	OutcomeDeleted          Outcome = "deleted"
	OutcomeUnchanged        Outcome = "unchanged"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeIgnored          Outcome = "ignored"
)

type Result struct {
	Outcome         Outcome
	Payment         *models.Payment
	ReferenceNumber string
}

// HandleEvent applies a normalized processor event.
func (e *Engine) HandleEvent(ctx context.Context, ev events.Event) (*Result, error) {
	switch ev.Kind() {
	case events.KindCompletion:
		return e.completeFromEvent(ctx, ev)
	case events.KindProcessing:
		return e.markProcessing(ev)
	case events.KindTermination:
		return e.terminate(ev)
	}

	e.Logger.Info("ignoring unhandled event type", "event_type", ev.Type)
	return &Result{Outcome: OutcomeIgnored}, nil
}

// resolvePayment finds the local payment an event refers to: the id embedded in
// checkout metadata first, then the stored checkout session id, then the stored
// processor payment id.
func (e *Engine) resolvePayment(ev events.Event) (*models.Payment, error) {
	if raw := ev.LocalPaymentID(); raw != "" {
		if id, err := helpers.ParseUUID(raw); err == nil {
			payment, err := e.Store.GetPayment(id)
			if err == nil {
				return payment, nil
			}
			if !errors.Is(err, errs.ErrNotFound) {
				return nil, err
			}
		}
	}

	if sessionID := ev.CheckoutSessionID(); sessionID != "" {
		payment, err := e.Store.FindPaymentByCheckoutSession(sessionID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
	}

	if externalID := ev.ProcessorPaymentID(); externalID != "" {
		payment, err := e.Store.FindPaymentByExternalID(externalID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
	}

	return nil, errs.New("reconcile.resolve_payment", errs.ErrResolution, "no local payment for %s event", ev.Type)
}

func (e *Engine) markProcessing(ev events.Event) (*Result, error) {
	payment, err := e.resolvePayment(ev)
	if errors.Is(err, errs.ErrResolution) {
		e.Logger.Info("skipping processing event without a payment", "event_type", ev.Type)
		return &Result{Outcome: OutcomeSkipped}, nil
	}
	if err != nil {
		return nil, err
	}

	moved, err := e.Store.MarkProcessing(payment.ID, ev.ProcessorPaymentID())
	if err != nil {
		return nil, err
	}
	if !moved {
		return &Result{Outcome: OutcomeUnchanged, Payment: payment}, nil
	}

	e.Logger.Info("payment processing", "payment_id", payment.ID)
	payment.PaymentStatus = models.PaymentStatusProcessing
	return &Result{Outcome: OutcomeProcessing, Payment: payment}, nil
}

// terminate removes a failed or cancelled payment while it is still open. Completed
// payments are never touched.
func (e *Engine) terminate(ev events.Event) (*Result, error) {
	payment, err := e.resolvePayment(ev)
	if errors.Is(err, errs.ErrResolution) {
		e.Logger.Info("skipping termination event without a payment", "event_type", ev.Type)
		return &Result{Outcome: OutcomeSkipped}, nil
	}
	if err != nil {
		return nil, err
	}

	if !payment.Open() {
		e.Logger.Warn("ignoring termination event for closed payment",
			"payment_id", payment.ID, "status", payment.PaymentStatus, "event_type", ev.Type)
		return &Result{Outcome: OutcomeUnchanged, Payment: payment}, nil
	}

	deleted, err := e.Store.DeleteOpenPayment(payment.ID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return &Result{Outcome: OutcomeUnchanged, Payment: payment}, nil
	}

	e.Logger.Info("payment removed", "payment_id", payment.ID, "event_type", ev.Type)
	return &Result{Outcome: OutcomeDeleted, Payment: payment}, nil
}
