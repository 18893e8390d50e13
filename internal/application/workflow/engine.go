package workflow

import (
	"context"

	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

// LifecycleEngine applies voucher state transitions.
// Every transition is a compare-and-set on the stored status, so of two
// concurrent redeems at most one succeeds.
type LifecycleEngine interface {
	// Redeem moves an active voucher to used, or to expired when its window closed
	Redeem(ctx context.Context, voucherID string, actor entity.Actor) (*entity.Voucher, error)

	// Cancel moves an active voucher to cancelled
	Cancel(ctx context.Context, voucherID string, actor entity.Actor, reason string) (*entity.Voucher, error)

	// Expire moves a lapsed active voucher to expired and reports whether this call did it
	Expire(ctx context.Context, voucherID string) (bool, error)

	// Refresh lazily expires a voucher that was read after its window closed
	Refresh(ctx context.Context, v *entity.Voucher) (*entity.Voucher, error)
}
