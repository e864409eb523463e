package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookLog is the append-only audit trail of inbound processor notifications.
type WebhookLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	ReceivedAt time.Time      `gorm:"not null;index" json:"received_at"`
	Headers    datatypes.JSON `json:"headers"`
	RawBody    string         `gorm:"type:text" json:"raw_body"`
	Signature  string         `json:"signature"`
	Verified   bool           `gorm:"not null;default:false;index" json:"verified"`
	EventType  string         `gorm:"size:100;index" json:"event_type"`
}

func (log *WebhookLog) BeforeCreate(tx *gorm.DB) (err error) {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return
}
