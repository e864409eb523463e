package store

import (
	"time"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MemberTotals struct {
	Member      *models.Member
	Reactivated bool
}

// RecalculateMemberTotals recomputes the member's paid total from every completed
// payment, refreshes the balance and reactivates a dormant member whose balance is
// settled.
func (s *Store) RecalculateMemberTotals(memberID uuid.UUID) (*MemberTotals, error) {
	var member models.Member
	if err := s.db.First(&member, "id = ?", memberID).Error; err != nil {
		return nil, notFoundOr("store.recalculate_member", err)
	}

	var totalPaid decimal.Decimal
	row := s.db.Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("member_id = ? AND payment_status = ?", memberID, models.PaymentStatusCompleted).
		Row()
	if err := row.Scan(&totalPaid); err != nil {
		return nil, errs.Wrap("store.recalculate_member", errs.ErrUnavailable, err)
	}

	balance := member.TotalDue.Sub(totalPaid)
	updates := map[string]interface{}{
		"total_paid": totalPaid,
		"balance":    balance,
		"updated_at": time.Now(),
	}

	reactivated := false
	if balance.LessThanOrEqual(decimal.Zero) && member.Dormant() {
		updates["status"] = models.MemberStatusActive
		reactivated = true
	}

	if err := s.db.Model(&models.Member{}).Where("id = ?", memberID).Updates(updates).Error; err != nil {
		return nil, errs.Wrap("store.recalculate_member", errs.ErrUnavailable, err)
	}

	member.TotalPaid = totalPaid
	member.Balance = balance
	if reactivated {
		member.Status = models.MemberStatusActive
	}
	return &MemberTotals{Member: &member, Reactivated: reactivated}, nil
}

func (s *Store) GetUser(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Role").First(&user, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("store.get_user", err)
	}
	return &user, nil
}
