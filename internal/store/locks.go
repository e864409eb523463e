package store

import (
	"time"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/google/uuid"
)

type LockState int

const (
	LockAcquired LockState = iota
	// LockHeld means a live processing lock belongs to someone else.
	LockHeld
)

type Lock struct {
	State     LockState
	PaymentID uuid.UUID
	// Attempt is the epoch of the lock. Completion and failure writes are fenced on it.
	Attempt int
	// Reclaimed is set when an existing stale, failed or orphaned lock was taken over.
	Reclaimed bool
	// PreviousStatus and PreviousStartedAt describe the lock that was found in place.
	PreviousStatus    string
	PreviousStartedAt time.Time
}

// AcquireLock inserts a processing lock for paymentID. The unique index on payment_id
// decides concurrent inserts. When a lock row already exists it is taken over with the
// next epoch if it failed, if it completed without leaving a receipt behind, or if it
// has been processing for longer than staleAfter; otherwise the result is LockHeld.
func (s *Store) AcquireLock(paymentID uuid.UUID, staleAfter time.Duration, now time.Time) (*Lock, error) {
	lock := models.ReceiptGenerationLog{
		PaymentID: paymentID,
		Status:    models.GenerationStatusProcessing,
		Attempt:   1,
		StartedAt: now,
	}

	err := s.db.Create(&lock).Error
	if err == nil {
		return &Lock{State: LockAcquired, PaymentID: paymentID, Attempt: 1}, nil
	}
	if !IsUniqueViolation(err) {
		return nil, errs.Wrap("store.acquire_lock", errs.ErrUnavailable, err)
	}

	var existing models.ReceiptGenerationLog
	if err := s.db.Where("payment_id = ?", paymentID).First(&existing).Error; err != nil {
		return nil, notFoundOr("store.acquire_lock", err)
	}

	held := &Lock{
		State:             LockHeld,
		PaymentID:         paymentID,
		Attempt:           existing.Attempt,
		PreviousStatus:    existing.Status,
		PreviousStartedAt: existing.StartedAt,
	}
	if existing.Status == models.GenerationStatusProcessing && now.Sub(existing.StartedAt) < staleAfter {
		return held, nil
	}

	// Only one caller can move the row off the observed epoch.
	result := s.db.Model(&models.ReceiptGenerationLog{}).
		Where("payment_id = ? AND attempt = ?", paymentID, existing.Attempt).
		Updates(map[string]interface{}{
			"status":        models.GenerationStatusProcessing,
			"attempt":       existing.Attempt + 1,
			"started_at":    now,
			"completed_at":  nil,
			"error_message": "",
		})
	if result.Error != nil {
		return nil, errs.Wrap("store.acquire_lock", errs.ErrUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		held.Attempt = existing.Attempt + 1
		return held, nil
	}

	return &Lock{
		State:             LockAcquired,
		PaymentID:         paymentID,
		Attempt:           existing.Attempt + 1,
		Reclaimed:         true,
		PreviousStatus:    existing.Status,
		PreviousStartedAt: existing.StartedAt,
	}, nil
}

// CompleteLock marks the lock completed if it is still on the given epoch.
func (s *Store) CompleteLock(lock *Lock, now time.Time) error {
	result := s.db.Model(&models.ReceiptGenerationLog{}).
		Where("payment_id = ? AND attempt = ?", lock.PaymentID, lock.Attempt).
		Updates(map[string]interface{}{
			"status":       models.GenerationStatusCompleted,
			"completed_at": now,
		})
	if result.Error != nil {
		return errs.Wrap("store.complete_lock", errs.ErrUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.New("store.complete_lock", errs.ErrInvalidState, "lock for payment %s moved past attempt %d", lock.PaymentID, lock.Attempt)
	}
	return nil
}

// FailLock marks the lock failed with message if it is still on the given epoch.
func (s *Store) FailLock(lock *Lock, message string, now time.Time) error {
	result := s.db.Model(&models.ReceiptGenerationLog{}).
		Where("payment_id = ? AND attempt = ?", lock.PaymentID, lock.Attempt).
		Updates(map[string]interface{}{
			"status":        models.GenerationStatusFailed,
			"completed_at":  now,
			"error_message": message,
		})
	if result.Error != nil {
		return errs.Wrap("store.fail_lock", errs.ErrUnavailable, result.Error)
	}
	return nil
}

func (s *Store) GetLock(paymentID uuid.UUID) (*models.ReceiptGenerationLog, error) {
	var lock models.ReceiptGenerationLog
	if err := s.db.Where("payment_id = ?", paymentID).First(&lock).Error; err != nil {
		return nil, notFoundOr("store.get_lock", err)
	}
	return &lock, nil
}

// FindReceipt returns the payment's receipt, or nil when none exists yet.
func (s *Store) FindReceipt(paymentID uuid.UUID) (*models.Receipt, error) {
	var receipts []models.Receipt
	if err := s.db.Where("payment_id = ?", paymentID).Limit(1).Find(&receipts).Error; err != nil {
		return nil, errs.Wrap("store.find_receipt", errs.ErrUnavailable, err)
	}
	if len(receipts) == 0 {
		return nil, nil
	}
	return &receipts[0], nil
}

func (s *Store) CreateReceipt(receipt *models.Receipt) error {
	if err := s.db.Create(receipt).Error; err != nil {
		if IsUniqueViolation(err) {
			return errs.Wrap("store.create_receipt", errs.ErrInvalidState, err)
		}
		return errs.Wrap("store.create_receipt", errs.ErrUnavailable, err)
	}
	return nil
}
