package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin     = "admin"
	RoleTreasurer = "treasurer"
	RoleMember    = "member"
)

type Role struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"unique;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (role *Role) BeforeCreate(tx *gorm.DB) (err error) {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	return
}

// CanManagePayments reports whether the role may act on any payment of its organization.
func (role Role) CanManagePayments() bool {
	return role.Name == RoleAdmin || role.Name == RoleTreasurer
}
