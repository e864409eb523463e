package store

import (
	"time"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *Store) GetPayment(id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("store.get_payment", err)
	}
	return &payment, nil
}

// GetPaymentWithParties loads the payment with its member and organization.
func (s *Store) GetPaymentWithParties(id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.Preload("Member").Preload("Organization").First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("store.get_payment_with_parties", err)
	}
	return &payment, nil
}

func (s *Store) FindPaymentByCheckoutSession(sessionID string) (*models.Payment, error) {
	if sessionID == "" {
		return nil, errs.New("store.find_by_checkout_session", errs.ErrNotFound, "empty checkout session id")
	}

	var payment models.Payment
	if err := s.db.Where("checkout_session_id = ?", sessionID).First(&payment).Error; err != nil {
		return nil, notFoundOr("store.find_by_checkout_session", err)
	}
	return &payment, nil
}

func (s *Store) FindPaymentByExternalID(externalID string) (*models.Payment, error) {
	if externalID == "" {
		return nil, errs.New("store.find_by_external_id", errs.ErrNotFound, "empty external payment id")
	}

	var payment models.Payment
	if err := s.db.Where("external_payment_id = ?", externalID).First(&payment).Error; err != nil {
		return nil, notFoundOr("store.find_by_external_id", err)
	}
	return &payment, nil
}

type Completion struct {
	ReferenceNumber   string
	ExternalPaymentID string
	CheckoutSessionID string
	PaidAt            time.Time
}

// MarkCompleted moves a payment to completed unless it already is. It reports whether
// this call performed the transition; false means another writer got there first.
func (s *Store) MarkCompleted(id uuid.UUID, c Completion) (bool, error) {
	paidAt := c.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	updates := map[string]interface{}{
		"payment_status": models.PaymentStatusCompleted,
		"payment_date":   paidAt,
		"updated_at":     time.Now(),
	}
	if c.ReferenceNumber != "" {
		updates["reference_number"] = c.ReferenceNumber
	}
	if c.ExternalPaymentID != "" {
		updates["external_payment_id"] = c.ExternalPaymentID
	}
	if c.CheckoutSessionID != "" {
		updates["checkout_session_id"] = c.CheckoutSessionID
	}

	result := s.db.Model(&models.Payment{}).
		Where("id = ? AND payment_status <> ?", id, models.PaymentStatusCompleted).
		Updates(updates)
	if result.Error != nil {
		return false, errs.Wrap("store.mark_completed", errs.ErrUnavailable, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkProcessing moves a pending payment to processing.
func (s *Store) MarkProcessing(id uuid.UUID, externalPaymentID string) (bool, error) {
	updates := map[string]interface{}{
		"payment_status": models.PaymentStatusProcessing,
		"updated_at":     time.Now(),
	}
	if externalPaymentID != "" {
		updates["external_payment_id"] = externalPaymentID
	}

	result := s.db.Model(&models.Payment{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, errs.Wrap("store.mark_processing", errs.ErrUnavailable, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// DeleteOpenPayment removes a pending or processing payment together with its
// generation lock and receipt. Completed payments are left alone.
func (s *Store) DeleteOpenPayment(id uuid.UUID) (bool, error) {
	deleted := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND payment_status IN ?", id,
			[]string{models.PaymentStatusPending, models.PaymentStatusProcessing}).
			Delete(&models.Payment{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		deleted = true

		if err := tx.Where("payment_id = ?", id).Delete(&models.ReceiptGenerationLog{}).Error; err != nil {
			return err
		}
		return tx.Where("payment_id = ?", id).Delete(&models.Receipt{}).Error
	})
	if err != nil {
		return false, errs.Wrap("store.delete_open_payment", errs.ErrUnavailable, err)
	}
	return deleted, nil
}
