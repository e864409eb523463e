// Package notify carries the downstream collaborators told about a completed payment:
// in-app notifications and the report refresh signal.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/farellandr/duesledger/internal/models"
	"github.com/google/uuid"
)

const RoutingKeyReportRefresh = "report.refresh"

type ReportRefresh struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	PaymentID      uuid.UUID `json:"payment_id"`
	MemberID       uuid.UUID `json:"member_id"`
	Reason         string    `json:"reason"`
}

// Reporter asks the reporting service to rebuild an organization's CSV reports.
type Reporter interface {
	RefreshReport(ctx context.Context, refresh ReportRefresh) error
}

// NopReporter is used when no broker is configured.
type NopReporter struct {
	Logger *slog.Logger
}

func (n NopReporter) RefreshReport(ctx context.Context, refresh ReportRefresh) error {
	if n.Logger != nil {
		n.Logger.Debug("report refresh skipped, no broker configured",
			"organization_id", refresh.OrganizationID, "payment_id", refresh.PaymentID)
	}
	return nil
}

// PaymentCompleted builds the member-facing and admin-facing notifications for a
// completed payment.
func PaymentCompleted(payment *models.Payment, member *models.Member) []models.Notification {
	memberName := "A member"
	var memberID *uuid.UUID
	if member != nil {
		memberName = member.FullName
		id := member.ID
		memberID = &id
	} else {
		id := payment.MemberID
		memberID = &id
	}

	amount := fmt.Sprintf("%s %s", payment.Currency, payment.Amount.StringFixed(2))
	reference := payment.ReferenceNumber
	if reference == "" {
		reference = payment.ID.String()
	}

	return []models.Notification{
		{
			OrganizationID: payment.OrganizationID,
			MemberID:       memberID,
			PaymentID:      payment.ID,
			Audience:       models.AudienceMember,
			Type:           models.NotificationPaymentCompleted,
			Title:          "Payment received",
			Message:        fmt.Sprintf("Your payment of %s was received. Reference: %s.", amount, reference),
		},
		{
			OrganizationID: payment.OrganizationID,
			PaymentID:      payment.ID,
			Audience:       models.AudienceAdmin,
			Type:           models.NotificationPaymentCompleted,
			Title:          "Member payment completed",
			Message:        fmt.Sprintf("%s paid %s. Reference: %s.", memberName, amount, reference),
		},
	}
}
