package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	Email          string    `gorm:"unique;not null"`
	FullName       string
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index"`
	RoleID         uuid.UUID `gorm:"type:uuid"`
	Role           Role
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}
