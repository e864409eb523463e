package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Organization struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Currency  string    `gorm:"size:8;not null;default:'SLE'" json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (org *Organization) BeforeCreate(tx *gorm.DB) (err error) {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	return
}
