package event

import "github.com/garyjia/booking-voucher/internal/domain/entity"

// Type identifies the type of domain event
type Type string

const (
	TypeVoucherGenerated  Type = "voucher.generated"
	TypeVoucherEmailed    Type = "voucher.emailed"
	TypeVoucherDownloaded Type = "voucher.downloaded"
	TypeVoucherScanned    Type = "voucher.scanned"
	TypeVoucherUsed       Type = "voucher.used"
	TypeVoucherCancelled  Type = "voucher.cancelled"
	TypeVoucherLookedUp   Type = "voucher.looked_up"
	TypeVoucherExpired    Type = "voucher.expired"
)

// usageActions maps event types onto the usage log action they record.
// voucher.expired is not a usage action.
var usageActions = map[Type]entity.UsageAction{
	TypeVoucherGenerated:  entity.UsageActionGenerated,
	TypeVoucherEmailed:    entity.UsageActionEmailed,
	TypeVoucherDownloaded: entity.UsageActionDownloaded,
	TypeVoucherScanned:    entity.UsageActionScanned,
	TypeVoucherUsed:       entity.UsageActionUsed,
	TypeVoucherCancelled:  entity.UsageActionCancelled,
	TypeVoucherLookedUp:   entity.UsageActionLookedUp,
}

// UsageTypes lists the event types recorded in the usage log
var UsageTypes = []Type{
	TypeVoucherGenerated,
	TypeVoucherEmailed,
	TypeVoucherDownloaded,
	TypeVoucherScanned,
	TypeVoucherUsed,
	TypeVoucherCancelled,
	TypeVoucherLookedUp,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	if _, ok := usageActions[t]; ok {
		return true
	}
	return t == TypeVoucherExpired
}

// UsageAction returns the usage log action for the event type
func (t Type) UsageAction() (entity.UsageAction, bool) {
	a, ok := usageActions[t]
	return a, ok
}
