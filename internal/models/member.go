package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	MemberStatusActive    = "active"
	MemberStatusInactive  = "inactive"
	MemberStatusSuspended = "suspended"
)

type Member struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"organization_id"`
	UserID         *uuid.UUID      `gorm:"type:uuid;index" json:"user_id,omitempty"`
	FullName       string          `gorm:"not null" json:"full_name"`
	Email          string          `json:"email"`
	Status         string          `gorm:"size:20;not null;default:'active'" json:"status"`
	TotalDue       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_due"`
	TotalPaid      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_paid"`
	Balance        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (member *Member) BeforeCreate(tx *gorm.DB) (err error) {
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	return
}

// Dormant reports whether the member is suspended or inactive and may be reactivated.
func (member Member) Dormant() bool {
	return member.Status == MemberStatusSuspended || member.Status == MemberStatusInactive
}
