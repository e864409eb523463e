package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusCancelled  = "cancelled"
)

type Payment struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	Organization      *Organization   `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	MemberID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"member_id"`
	Member            *Member         `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	Amount            decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Currency          string          `gorm:"size:8;not null" json:"currency"`
	PaymentStatus     string          `gorm:"size:20;not null;default:'pending';index" json:"payment_status"`
	ExternalPaymentID string          `gorm:"index" json:"external_payment_id,omitempty"`
	CheckoutSessionID string          `gorm:"index" json:"checkout_session_id,omitempty"`
	ReferenceNumber   string          `json:"reference_number,omitempty"`
	PaymentDate       *time.Time      `json:"payment_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (payment *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.PaymentStatus == "" {
		payment.PaymentStatus = PaymentStatusPending
	}
	return
}

func (payment Payment) IsCompleted() bool {
	return payment.PaymentStatus == PaymentStatusCompleted
}

// Open reports whether the payment may still complete, fail or be cancelled.
func (payment Payment) Open() bool {
	return payment.PaymentStatus == PaymentStatusPending || payment.PaymentStatus == PaymentStatusProcessing
}

// CompletedProcessorStatus reports whether a processor-side status means the money moved.
func CompletedProcessorStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "paid", "succeeded", "success":
		return true
	}
	return false
}
