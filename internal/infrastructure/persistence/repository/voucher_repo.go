package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const voucherColumns = `
	id, voucher_number, booking_id, booking_type, status,
	valid_from, valid_until, partner_id, confirmation_code,
	customer_json, asset_json, details_json, qr_code, document_ref,
	used_at, used_by, cancelled_at, cancelled_by, cancel_reason, expired_at,
	created_at, updated_at`

// VoucherRepository implements port.VoucherRepository
type VoucherRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVoucherRepository creates a new voucher repository
func NewVoucherRepository(db *sql.DB, logger *zap.Logger) port.VoucherRepository {
	return &VoucherRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new voucher. Unique index violations are reported as
// port.ErrDuplicateVoucherNumber or port.ErrDuplicateBooking.
func (r *VoucherRepository) Create(ctx context.Context, voucher *entity.Voucher) error {
	customer, err := json.Marshal(voucher.Customer)
	if err != nil {
		return fmt.Errorf("failed to marshal customer: %w", err)
	}
	asset, err := json.Marshal(voucher.Asset)
	if err != nil {
		return fmt.Errorf("failed to marshal asset: %w", err)
	}
	details, err := entity.MarshalBookingDetails(voucher.Details)
	if err != nil {
		return err
	}

	query := `INSERT INTO vouchers (` + voucherColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		voucher.ID,
		voucher.VoucherNumber,
		voucher.BookingID,
		voucher.BookingType,
		voucher.Status,
		toMillis(voucher.ValidFrom),
		toMillis(voucher.ValidUntil),
		voucher.PartnerID,
		voucher.ConfirmationCode,
		string(customer),
		string(asset),
		nullString(string(details)),
		voucher.QRCode,
		nullString(voucher.DocumentRef),
		nullMillis(voucher.UsedAt),
		nullString(voucher.UsedBy),
		nullMillis(voucher.CancelledAt),
		nullString(voucher.CancelledBy),
		nullString(voucher.CancelReason),
		nullMillis(voucher.ExpiredAt),
		toMillis(voucher.CreatedAt),
		toMillis(voucher.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			switch {
			case strings.Contains(err.Error(), "vouchers.voucher_number"):
				return port.ErrDuplicateVoucherNumber
			case strings.Contains(err.Error(), "vouchers.booking_id"):
				return port.ErrDuplicateBooking
			default:
				return apperror.Wrap(apperror.KindConflict, err, "voucher %s already exists", voucher.ID)
			}
		}
		r.logger.Error("Failed to create voucher", zap.String("voucher_number", voucher.VoucherNumber), zap.Error(err))
		return fmt.Errorf("failed to create voucher: %w", err)
	}

	return nil
}

// GetByID retrieves a voucher by its system ID
func (r *VoucherRepository) GetByID(ctx context.Context, id string) (*entity.Voucher, error) {
	return r.getOne(ctx, "id", id)
}

// GetByNumber retrieves a voucher by its human readable number
func (r *VoucherRepository) GetByNumber(ctx context.Context, number string) (*entity.Voucher, error) {
	return r.getOne(ctx, "voucher_number", number)
}

// GetByConfirmationCode retrieves the most recent voucher for a confirmation code
func (r *VoucherRepository) GetByConfirmationCode(ctx context.Context, code string) (*entity.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers
		WHERE confirmation_code = ?
		ORDER BY CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END, created_at DESC
		LIMIT 1`

	voucher, err := scanVoucher(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get voucher by confirmation code", zap.Error(err))
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return voucher, nil
}

// FindOpenByBooking returns the non-cancelled voucher for a booking, if any
func (r *VoucherRepository) FindOpenByBooking(ctx context.Context, bookingID string, bookingType entity.BookingType) (*entity.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers
		WHERE booking_id = ? AND booking_type = ? AND status != 'cancelled'
		LIMIT 1`

	voucher, err := scanVoucher(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, bookingID, bookingType))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find voucher by booking",
			zap.String("booking_id", bookingID),
			zap.String("booking_type", string(bookingType)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find voucher: %w", err)
	}
	return voucher, nil
}

func (r *VoucherRepository) getOne(ctx context.Context, column, value string) (*entity.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE ` + column + ` = ?`

	voucher, err := scanVoucher(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get voucher", zap.String(column, value), zap.Error(err))
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return voucher, nil
}

// TransitionStatus implements the compare-and-set status update
func (r *VoucherRepository) TransitionStatus(ctx context.Context, t port.StatusTransition) (bool, error) {
	var (
		query string
		args  []interface{}
		at    = toMillis(t.At)
	)

	switch t.To {
	case entity.VoucherStatusUsed:
		query = `UPDATE vouchers SET status = ?, used_at = ?, used_by = ?, updated_at = ?
			WHERE id = ? AND status = ?`
		args = []interface{}{t.To, at, nullString(t.ActorID), at, t.VoucherID, t.From}
	case entity.VoucherStatusCancelled:
		query = `UPDATE vouchers SET status = ?, cancelled_at = ?, cancelled_by = ?, cancel_reason = ?, updated_at = ?
			WHERE id = ? AND status = ?`
		args = []interface{}{t.To, at, nullString(t.ActorID), nullString(t.Reason), at, t.VoucherID, t.From}
	case entity.VoucherStatusExpired:
		query = `UPDATE vouchers SET status = ?, expired_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`
		args = []interface{}{t.To, at, at, t.VoucherID, t.From}
	default:
		return false, fmt.Errorf("unsupported target status %q", t.To)
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to transition voucher status",
			zap.String("voucher_id", t.VoucherID),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
			zap.Error(err))
		return false, fmt.Errorf("failed to transition voucher status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// SetDocumentRef records the rendered document path the first time only
func (r *VoucherRepository) SetDocumentRef(ctx context.Context, id, ref string, at time.Time) (bool, error) {
	query := `UPDATE vouchers SET document_ref = ?, updated_at = ? WHERE id = ? AND document_ref IS NULL`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, ref, toMillis(at), id)
	if err != nil {
		r.logger.Error("Failed to set document ref", zap.String("voucher_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to set document ref: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// ListLapsedActiveIDs pages through active vouchers whose window closed before now
func (r *VoucherRepository) ListLapsedActiveIDs(ctx context.Context, now time.Time, afterID string, limit int) ([]string, error) {
	query := `SELECT id FROM vouchers
		WHERE status = 'active' AND valid_until < ? AND id > ?
		ORDER BY id
		LIMIT ?`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, toMillis(now), afterID, limit)
	if err != nil {
		r.logger.Error("Failed to list lapsed vouchers", zap.Error(err))
		return nil, fmt.Errorf("failed to list lapsed vouchers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan voucher id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanVoucher(row scanner) (*entity.Voucher, error) {
	var (
		v                                 entity.Voucher
		validFrom, validUntil             int64
		createdAt, updatedAt              int64
		customerJSON, assetJSON           string
		detailsJSON, documentRef          sql.NullString
		usedBy, cancelledBy, cancelReason sql.NullString
		usedAt, cancelledAt, expiredAt    sql.NullInt64
	)

	err := row.Scan(
		&v.ID,
		&v.VoucherNumber,
		&v.BookingID,
		&v.BookingType,
		&v.Status,
		&validFrom,
		&validUntil,
		&v.PartnerID,
		&v.ConfirmationCode,
		&customerJSON,
		&assetJSON,
		&detailsJSON,
		&v.QRCode,
		&documentRef,
		&usedAt,
		&usedBy,
		&cancelledAt,
		&cancelledBy,
		&cancelReason,
		&expiredAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(customerJSON), &v.Customer); err != nil {
		return nil, fmt.Errorf("voucher %s: corrupt customer snapshot: %w", v.ID, err)
	}
	if err := json.Unmarshal([]byte(assetJSON), &v.Asset); err != nil {
		return nil, fmt.Errorf("voucher %s: corrupt asset snapshot: %w", v.ID, err)
	}
	if detailsJSON.Valid {
		details, err := entity.UnmarshalBookingDetails([]byte(detailsJSON.String))
		if err != nil {
			return nil, fmt.Errorf("voucher %s: %w", v.ID, err)
		}
		v.Details = details
	}

	v.ValidFrom = fromMillis(validFrom)
	v.ValidUntil = fromMillis(validUntil)
	v.CreatedAt = fromMillis(createdAt)
	v.UpdatedAt = fromMillis(updatedAt)
	v.DocumentRef = documentRef.String
	v.UsedAt = timePtr(usedAt)
	v.UsedBy = usedBy.String
	v.CancelledAt = timePtr(cancelledAt)
	v.CancelledBy = cancelledBy.String
	v.CancelReason = cancelReason.String
	v.ExpiredAt = timePtr(expiredAt)

	return &v, nil
}

// Verify interface compliance
var _ port.VoucherRepository = (*VoucherRepository)(nil)
