package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AudienceMember = "member"
	AudienceAdmin  = "admin"

	NotificationPaymentCompleted = "payment_completed"
)

type Notification struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"organization_id"`
	MemberID       *uuid.UUID `gorm:"type:uuid;index" json:"member_id,omitempty"`
	PaymentID      uuid.UUID  `gorm:"type:uuid;index" json:"payment_id"`
	Audience       string     `gorm:"size:20;not null" json:"audience"`
	Type           string     `gorm:"size:40;not null" json:"type"`
	Title          string     `gorm:"not null" json:"title"`
	Message        string     `gorm:"type:text" json:"message"`
	Read           bool       `gorm:"not null;default:false" json:"read"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (notification *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	return
}
