package port

import (
	"context"
	"time"

	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/domain/event"
)

// VoucherDocument is what the renderer receives
type VoucherDocument struct {
	Voucher *entity.Voucher
	Partner *entity.Partner
}

// DocumentRenderer turns a voucher into printable bytes
type DocumentRenderer interface {
	Render(ctx context.Context, doc *VoucherDocument) ([]byte, error)
	Extension() string
	ContentType() string
}

// UsageReportWriter renders a voucher's usage log as a spreadsheet
type UsageReportWriter interface {
	WriteUsage(ctx context.Context, voucher *entity.Voucher, entries []*entity.UsageLogEntry) ([]byte, error)
}

// Notification is a message for the customer about their voucher
type Notification struct {
	EventType      event.Type
	VoucherNumber  string
	RecipientEmail string
	Subject        string
	Body           string
}

// Notifier delivers notifications. Delivery is fire-and-forget for callers.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// EventPublisher emits domain events to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event)
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns UTC wall time
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// MetricsRecorder receives operational counters
type MetricsRecorder interface {
	VoucherIssued(bookingType entity.BookingType)
	VoucherTransitioned(to entity.VoucherStatus)
	Verification(outcome string)
	UsageLogFailed(action entity.UsageAction)
	SweepCompleted(expired, failed int, duration time.Duration)
}

// NopMetrics discards all measurements
type NopMetrics struct{}

func (NopMetrics) VoucherIssued(entity.BookingType)         {}
func (NopMetrics) VoucherTransitioned(entity.VoucherStatus) {}
func (NopMetrics) Verification(string)                      {}
func (NopMetrics) UsageLogFailed(entity.UsageAction)        {}
func (NopMetrics) SweepCompleted(int, int, time.Duration)   {}
