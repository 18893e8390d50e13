package workflow

import (
	"context"

	domainwf "github.com/garyjia/booking-voucher/internal/domain/workflow"
)

// LifecycleGuards holds the per-call checks evaluated by the voucher machine
type LifecycleGuards struct {
	MayRedeem domainwf.GuardFunc
	MayCancel domainwf.GuardFunc
	Started   domainwf.GuardFunc
	Lapsed    domainwf.GuardFunc
}

// BuildVoucherStateMachine creates a state machine configured for the voucher lifecycle.
// A redeem or cancel on a lapsed voucher moves it to expired instead.
func BuildVoucherStateMachine(initialState domainwf.State, g LifecycleGuards) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateActive).
		PermitIf(domainwf.TriggerRedeem, domainwf.StateExpired, allOf(g.MayRedeem, g.Lapsed)).
		PermitIf(domainwf.TriggerRedeem, domainwf.StateUsed, allOf(g.MayRedeem, g.Started)).
		PermitIf(domainwf.TriggerCancel, domainwf.StateExpired, allOf(g.MayCancel, g.Lapsed)).
		PermitIf(domainwf.TriggerCancel, domainwf.StateCancelled, allOf(g.MayCancel)).
		PermitIf(domainwf.TriggerExpire, domainwf.StateExpired, allOf(g.Lapsed))

	// USED, CANCELLED and EXPIRED are terminal states - no outgoing transitions

	return builder.Build(initialState)
}

// allOf passes only when every non-nil guard passes, evaluated in order
func allOf(guards ...domainwf.GuardFunc) domainwf.GuardFunc {
	return func(ctx context.Context) error {
		for _, g := range guards {
			if g == nil {
				continue
			}
			if err := g(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
