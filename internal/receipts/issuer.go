// Package receipts issues exactly one receipt per completed payment. Concurrent
// issuers coordinate through the generation lock held in the store.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/farellandr/duesledger/internal/storage"
	"github.com/farellandr/duesledger/internal/store"
	"github.com/google/uuid"
)

const (
	DefaultStaleAfter = time.Minute
	maxNumberAttempts = 5
)

var errNumberTaken = errors.New("receipt number already issued")

type Request struct {
	PaymentID uuid.UUID
	// OrganizationID and MemberID are checked against the payment when set.
	OrganizationID uuid.UUID
	MemberID       uuid.UUID
}

type Result struct {
	Receipt *models.Receipt
	// Created is false when an existing receipt was returned.
	Created bool
	// InProgress means another issuer holds the lock; Receipt is nil.
	InProgress bool
}

type Issuer struct {
	Store         *store.Store
	Objects       storage.ObjectStore
	Renderer      Renderer
	SigningSecret string
	StaleAfter    time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Issuer) staleAfter() time.Duration {
	if i.StaleAfter > 0 {
		return i.StaleAfter
	}
	return DefaultStaleAfter
}

// Issue returns the payment's receipt, creating it if none exists.
func (i *Issuer) Issue(ctx context.Context, req Request) (*Result, error) {
	const op = "receipts.issue"

	existing, err := i.Store.FindReceipt(req.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Result{Receipt: existing}, nil
	}

	payment, err := i.Store.GetPayment(req.PaymentID)
	if err != nil {
		return nil, err
	}
	if req.OrganizationID != uuid.Nil && req.OrganizationID != payment.OrganizationID {
		return nil, errs.New(op, errs.ErrMalformedInput, "payment %s does not belong to organization %s", payment.ID, req.OrganizationID)
	}
	if req.MemberID != uuid.Nil && req.MemberID != payment.MemberID {
		return nil, errs.New(op, errs.ErrMalformedInput, "payment %s does not belong to member %s", payment.ID, req.MemberID)
	}
	if !payment.IsCompleted() {
		return nil, errs.New(op, errs.ErrInvalidState, "payment %s is %s, not completed", payment.ID, payment.PaymentStatus)
	}

	lock, err := i.Store.AcquireLock(req.PaymentID, i.staleAfter(), i.now())
	if err != nil {
		return nil, err
	}
	if lock.State == store.LockHeld {
		i.Logger.Info("receipt generation already in progress",
			"payment_id", req.PaymentID, "attempt", lock.Attempt, "started_at", lock.PreviousStartedAt)
		return &Result{InProgress: true}, nil
	}
	if lock.Reclaimed {
		i.Logger.Warn("reclaimed receipt generation lock",
			"payment_id", req.PaymentID,
			"previous_status", lock.PreviousStatus,
			"previous_started_at", lock.PreviousStartedAt,
			"attempt", lock.Attempt)
	}

	result, err := i.generate(ctx, lock)
	if err != nil {
		if failErr := i.Store.FailLock(lock, err.Error(), i.now()); failErr != nil {
			i.Logger.Error("failed to mark generation lock failed", "payment_id", req.PaymentID, "error", failErr)
		}
		return nil, err
	}

	if err := i.Store.CompleteLock(lock, i.now()); err != nil {
		i.Logger.Warn("could not complete generation lock", "payment_id", req.PaymentID, "attempt", lock.Attempt, "error", err)
	}
	return result, nil
}

func (i *Issuer) generate(ctx context.Context, lock *store.Lock) (*Result, error) {
	const op = "receipts.generate"

	// A previous holder may have finished between our first check and the lock.
	existing, err := i.Store.FindReceipt(lock.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Result{Receipt: existing}, nil
	}

	payment, err := i.Store.GetPaymentWithParties(lock.PaymentID)
	if err != nil {
		return nil, err
	}
	if !payment.IsCompleted() {
		return nil, errs.New(op, errs.ErrInvalidState, "payment %s is %s, not completed", payment.ID, payment.PaymentStatus)
	}

	orgName := ""
	if payment.Organization != nil {
		orgName = payment.Organization.Name
	}
	issuedAt := i.now()

	// Numbers are only unique to the millisecond, so a collision with another
	// payment's receipt moves to the next suffix.
	for n := 0; n < maxNumberAttempts; n++ {
		number := Number(orgName, issuedAt.Add(time.Duration(n)*time.Millisecond))
		result, err := i.publish(ctx, payment, number, issuedAt)
		if errors.Is(err, errNumberTaken) {
			i.Logger.Warn("receipt number taken, retrying", "payment_id", payment.ID, "receipt_number", number)
			continue
		}
		if err != nil {
			return nil, err
		}
		if result.Created {
			i.Logger.Info("receipt issued", "payment_id", payment.ID, "receipt_number", number, "attempt", lock.Attempt)
		}
		return result, nil
	}
	return nil, errs.New(op, errs.ErrInvalidState, "no free receipt number for payment %s after %d attempts", payment.ID, maxNumberAttempts)
}

// publish renders, uploads and records one receipt under number.
func (i *Issuer) publish(ctx context.Context, payment *models.Payment, number string, issuedAt time.Time) (*Result, error) {
	const op = "receipts.publish"

	qrData := helpers.ReceiptQRData(number, payment.ID, i.SigningSecret)
	pdf, err := i.Renderer.Render(NewDocument(payment, number, qrData, issuedAt))
	if err != nil {
		return nil, errs.Wrap(op, errs.ErrUnavailable, err)
	}

	key := storage.ReceiptKey(payment.OrganizationID.String(), payment.ID.String(), number)
	url, err := i.Objects.Put(ctx, key, "application/pdf", pdf)
	if err != nil {
		return nil, errs.Wrap(op, errs.ErrUnavailable, fmt.Errorf("upload receipt: %w", err))
	}

	receipt := &models.Receipt{
		PaymentID:      payment.ID,
		OrganizationID: payment.OrganizationID,
		MemberID:       payment.MemberID,
		ReceiptNumber:  number,
		PDFPath:        key,
		PublicURL:      url,
	}
	insertErr := i.Store.CreateReceipt(receipt)
	if insertErr == nil {
		return &Result{Receipt: receipt, Created: true}, nil
	}

	var winner *models.Receipt
	if errors.Is(insertErr, errs.ErrInvalidState) {
		winner, err = i.Store.FindReceipt(payment.ID)
		if err != nil {
			i.removeUpload(ctx, key)
			return nil, err
		}
	}

	// The key is ours alone unless a concurrent issuer of this payment picked the same number.
	if winner == nil || winner.PDFPath != key {
		i.removeUpload(ctx, key)
	}

	switch {
	case winner != nil:
		return &Result{Receipt: winner}, nil
	case errors.Is(insertErr, errs.ErrInvalidState):
		return nil, errNumberTaken
	}
	return nil, insertErr
}

func (i *Issuer) removeUpload(ctx context.Context, key string) {
	if err := i.Objects.Delete(ctx, key); err != nil {
		i.Logger.Error("failed to remove orphaned receipt file", "key", key, "error", err)
	}
}
