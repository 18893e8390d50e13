package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

var (
	// ErrDuplicateVoucherNumber is returned by Create when the number is taken
	ErrDuplicateVoucherNumber = errors.New("voucher number already exists")

	// ErrDuplicateBooking is returned by Create when the booking already has a non-cancelled voucher
	ErrDuplicateBooking = apperror.Conflict("a voucher already exists for this booking")
)

// StatusTransition is a compare-and-set status change
type StatusTransition struct {
	VoucherID string
	From      entity.VoucherStatus
	To        entity.VoucherStatus
	At        time.Time
	ActorID   string
	Reason    string
}

// VoucherRepository defines persistence operations for Voucher.
// Lookups return nil, nil when nothing matches.
type VoucherRepository interface {
	Create(ctx context.Context, voucher *entity.Voucher) error
	GetByID(ctx context.Context, id string) (*entity.Voucher, error)
	GetByNumber(ctx context.Context, number string) (*entity.Voucher, error)
	GetByConfirmationCode(ctx context.Context, code string) (*entity.Voucher, error)
	FindOpenByBooking(ctx context.Context, bookingID string, bookingType entity.BookingType) (*entity.Voucher, error)

	// TransitionStatus applies the change only if the stored status still equals From.
	// It reports whether a row was updated.
	TransitionStatus(ctx context.Context, t StatusTransition) (bool, error)

	// SetDocumentRef stores the rendered document reference once
	SetDocumentRef(ctx context.Context, id, ref string, at time.Time) (bool, error)

	// ListLapsedActiveIDs pages through active vouchers with valid_until before now, ordered by id
	ListLapsedActiveIDs(ctx context.Context, now time.Time, afterID string, limit int) ([]string, error)
}

// UsageLogRepository is the append-only usage log
type UsageLogRepository interface {
	Append(ctx context.Context, entry *entity.UsageLogEntry) error
	ListByVoucher(ctx context.Context, voucherID string, limit int) ([]*entity.UsageLogEntry, error)
}

// PartnerRepository resolves partners for assembled voucher views
type PartnerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Partner, error)
	Upsert(ctx context.Context, partner *entity.Partner) error
}

// TransactionManager manages database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
