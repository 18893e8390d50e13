package service

import (
	"github.com/garyjia/booking-voucher/internal/application/dispatcher"
	"github.com/garyjia/booking-voucher/internal/domain/event"
)

// RegisterSubscribers attaches the usage logger and, when set, the notifier
func RegisterSubscribers(d dispatcher.Dispatcher, usage *UsageLogger, notifications *NotificationService) {
	for _, t := range event.UsageTypes {
		d.SubscribeNamed(t, "usage-logger", usage.Handle)
	}
	if notifications == nil {
		return
	}
	for _, t := range NotificationTypes {
		d.SubscribeNamed(t, "notifier", notifications.Handle)
	}
}
