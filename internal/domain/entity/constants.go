package entity

// VoucherStatus is the lifecycle status of a voucher
type VoucherStatus string

const (
	VoucherStatusActive    VoucherStatus = "active"
	VoucherStatusUsed      VoucherStatus = "used"
	VoucherStatusCancelled VoucherStatus = "cancelled"
	VoucherStatusExpired   VoucherStatus = "expired"
)

// IsValid returns true for a known status
func (s VoucherStatus) IsValid() bool {
	switch s {
	case VoucherStatusActive, VoucherStatusUsed, VoucherStatusCancelled, VoucherStatusExpired:
		return true
	}
	return false
}

// BookingType is the category of the booking a voucher was issued for
type BookingType string

const (
	BookingTypeActivity      BookingType = "activity"
	BookingTypeEvent         BookingType = "event"
	BookingTypeRestaurant    BookingType = "restaurant"
	BookingTypeVehicle       BookingType = "vehicle"
	BookingTypeAccommodation BookingType = "accommodation"
	BookingTypePackage       BookingType = "package"
)

// BookingTypes lists every supported booking type
var BookingTypes = []BookingType{
	BookingTypeActivity,
	BookingTypeEvent,
	BookingTypeRestaurant,
	BookingTypeVehicle,
	BookingTypeAccommodation,
	BookingTypePackage,
}

// IsValid returns true for a known booking type
func (t BookingType) IsValid() bool {
	for _, bt := range BookingTypes {
		if bt == t {
			return true
		}
	}
	return false
}

// Role is the caller role supplied by the identity collaborator
type Role string

const (
	RoleMaster   Role = "master"
	RoleEmployee Role = "employee"
	RolePartner  Role = "partner"
	RoleCustomer Role = "customer"
)

// IsValid returns true for a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleMaster, RoleEmployee, RolePartner, RoleCustomer:
		return true
	}
	return false
}

// UsageAction is the kind of access recorded in the usage log
type UsageAction string

const (
	UsageActionGenerated  UsageAction = "generated"
	UsageActionEmailed    UsageAction = "emailed"
	UsageActionDownloaded UsageAction = "downloaded"
	UsageActionScanned    UsageAction = "scanned"
	UsageActionUsed       UsageAction = "used"
	UsageActionCancelled  UsageAction = "cancelled"
	UsageActionLookedUp   UsageAction = "looked_up"
)

// ActorType classifies who performed a logged action
type ActorType string

const (
	ActorTypeMaster    ActorType = "master"
	ActorTypeEmployee  ActorType = "employee"
	ActorTypePartner   ActorType = "partner"
	ActorTypeCustomer  ActorType = "customer"
	ActorTypeAnonymous ActorType = "anonymous"
	ActorTypeSystem    ActorType = "system"
)
