package service

import (
	"context"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NopLogger discards log output
type NopLogger struct{}

func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}

var (
	ErrAuthenticationRequired = apperror.Forbidden("authentication required")
	ErrNotVisible             = apperror.Forbidden("voucher is not accessible to the caller")
)

// VoucherView is the assembled read model returned to callers
type VoucherView struct {
	Voucher *entity.Voucher `json:"voucher"`
	Partner *entity.Partner `json:"partner,omitempty"`
}

// checkVisible applies the per-role visibility rules.
// Anonymous callers are rejected here; confirmation-code lookups bypass this check.
func checkVisible(v *entity.Voucher, actor entity.Actor) error {
	id := actor.Identity
	if id == nil {
		return ErrAuthenticationRequired
	}
	switch id.Role {
	case entity.RoleMaster, entity.RoleEmployee:
		return nil
	case entity.RolePartner:
		if v.OwnedByPartner(id.PartnerID) {
			return nil
		}
	case entity.RoleCustomer:
		if v.OwnedByCustomer(id.Email) {
			return nil
		}
	}
	return ErrNotVisible
}

// checkStaffOrPartner restricts operational data to staff and the owning partner
func checkStaffOrPartner(v *entity.Voucher, actor entity.Actor) error {
	id := actor.Identity
	if id == nil {
		return ErrAuthenticationRequired
	}
	if id.IsStaff() || (id.Role == entity.RolePartner && v.OwnedByPartner(id.PartnerID)) {
		return nil
	}
	return ErrNotVisible
}

// publishOutcome publishes an access event carrying the attempt outcome
func publishOutcome(ctx context.Context, pub port.EventPublisher, evt *event.Event, err error) {
	if pub == nil {
		return
	}
	evt = evt.WithPayload("success", err == nil)
	if err != nil {
		evt = evt.WithPayload("error", err.Error()).WithPayload("error_kind", string(apperror.KindOf(err)))
	}
	pub.Publish(ctx, evt)
}

// accessEvent builds an event for an access that may not have resolved a voucher
func accessEvent(t event.Type, v *entity.Voucher, ref string, actor entity.Actor, clock port.Clock) *event.Event {
	if v == nil {
		v = &entity.Voucher{VoucherNumber: ref}
	}
	return event.ForVoucher(t, v, actor, clock.Now())
}
