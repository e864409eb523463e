package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	GenerationStatusProcessing = "processing"
	GenerationStatusCompleted  = "completed"
	GenerationStatusFailed     = "failed"
)

// ReceiptGenerationLog is the generation lock for a payment's receipt. The unique
// payment_id makes acquisition atomic; Attempt is the lock epoch used to fence writes
// after a stale or failed lock has been reclaimed.
type ReceiptGenerationLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	PaymentID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"payment_id"`
	Status       string     `gorm:"size:20;not null" json:"status"`
	Attempt      int        `gorm:"not null;default:1" json:"attempt"`
	StartedAt    time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
}

func (ReceiptGenerationLog) TableName() string {
	return "receipt_generation_logs"
}

func (log *ReceiptGenerationLog) BeforeCreate(tx *gorm.DB) (err error) {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return
}

type Receipt struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	PaymentID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"payment_id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	MemberID       uuid.UUID `gorm:"type:uuid;not null;index" json:"member_id"`
	ReceiptNumber  string    `gorm:"not null;uniqueIndex" json:"receipt_number"`
	PDFPath        string    `gorm:"not null" json:"pdf_path"`
	PublicURL      string    `json:"public_url"`
	CreatedAt      time.Time `json:"created_at"`
}

func (receipt *Receipt) BeforeCreate(tx *gorm.DB) (err error) {
	if receipt.ID == uuid.Nil {
		receipt.ID = uuid.New()
	}
	return
}
