package workflow

import (
	"errors"

	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

var (
	ErrAlreadyUsed      = apperror.Conflict("voucher has already been used")
	ErrVoucherCancelled = apperror.Conflict("voucher has been cancelled")
	ErrVoucherExpired   = apperror.Expired("voucher has expired")
	ErrNotYetValid      = apperror.Validation("voucher is not valid yet")
	ErrRedeemForbidden  = apperror.Forbidden("caller may not redeem this voucher")
	ErrCancelForbidden  = apperror.Forbidden("caller may not cancel this voucher")
	ErrVoucherNotFound  = apperror.NotFound("voucher not found")

	errWindowOpen = errors.New("voucher window is still open")
)

// terminalError maps a non-active status onto the error returned to callers
func terminalError(status entity.VoucherStatus) error {
	switch status {
	case entity.VoucherStatusUsed:
		return ErrAlreadyUsed
	case entity.VoucherStatusCancelled:
		return ErrVoucherCancelled
	case entity.VoucherStatusExpired:
		return ErrVoucherExpired
	}
	return apperror.Conflict("voucher changed concurrently, current status %s", status)
}

// guardError surfaces the domain error behind a rejected transition
func guardError(err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return err
}
