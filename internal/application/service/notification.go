package service

import (
	"context"
	"fmt"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/event"
)

// NotificationTypes are the events customers are told about
var NotificationTypes = []event.Type{
	event.TypeVoucherGenerated,
	event.TypeVoucherEmailed,
	event.TypeVoucherUsed,
	event.TypeVoucherCancelled,
}

// NotificationService turns voucher events into customer notifications
type NotificationService struct {
	voucherRepo port.VoucherRepository
	notifier    port.Notifier
	logger      Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(voucherRepo port.VoucherRepository, notifier port.Notifier, logger Logger) *NotificationService {
	return &NotificationService{voucherRepo: voucherRepo, notifier: notifier, logger: logger}
}

// Handle is an event handler for NotificationTypes
func (s *NotificationService) Handle(ctx context.Context, evt *event.Event) error {
	v, err := s.voucherRepo.GetByID(ctx, evt.VoucherID)
	if err != nil {
		return fmt.Errorf("load voucher: %w", err)
	}
	if v == nil || v.Customer.Email == "" {
		return nil
	}

	n := &port.Notification{
		EventType:      evt.Type,
		VoucherNumber:  v.VoucherNumber,
		RecipientEmail: v.Customer.Email,
	}

	switch evt.Type {
	case event.TypeVoucherGenerated, event.TypeVoucherEmailed:
		n.Subject = fmt.Sprintf("Your voucher %s", v.VoucherNumber)
		n.Body = fmt.Sprintf("Hello %s, your voucher %s for %s is valid from %s until %s. Confirmation code: %s.",
			v.Customer.Name, v.VoucherNumber, v.Asset.Name,
			v.ValidFrom.Format("2006-01-02 15:04"), v.ValidUntil.Format("2006-01-02 15:04"),
			v.ConfirmationCode)
	case event.TypeVoucherUsed:
		n.Subject = fmt.Sprintf("Voucher %s redeemed", v.VoucherNumber)
		n.Body = fmt.Sprintf("Your voucher %s for %s was redeemed at %s.",
			v.VoucherNumber, v.Asset.Name, evt.Timestamp.Format("2006-01-02 15:04"))
	case event.TypeVoucherCancelled:
		n.Subject = fmt.Sprintf("Voucher %s cancelled", v.VoucherNumber)
		n.Body = fmt.Sprintf("Your voucher %s for %s was cancelled.", v.VoucherNumber, v.Asset.Name)
		if reason := evt.GetPayloadString("reason"); reason != "" {
			n.Body += " Reason: " + reason
		}
	default:
		return nil
	}

	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("Failed to send notification",
			"voucher_id", v.ID,
			"event_type", evt.Type.String(),
			"error", err,
		)
		return fmt.Errorf("notify: %w", err)
	}

	s.logger.Info("Notification sent",
		"voucher_id", v.ID,
		"event_type", evt.Type.String(),
	)
	return nil
}
