package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// PartnerRepository implements port.PartnerRepository
type PartnerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPartnerRepository creates a new partner repository
func NewPartnerRepository(db *sql.DB, logger *zap.Logger) port.PartnerRepository {
	return &PartnerRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a partner, nil when unknown
func (r *PartnerRepository) GetByID(ctx context.Context, id string) (*entity.Partner, error) {
	query := `SELECT id, name, email, phone, address FROM partners WHERE id = ?`

	var p entity.Partner
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.Address,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get partner", zap.String("partner_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}
	return &p, nil
}

// Upsert inserts or refreshes the partner record
func (r *PartnerRepository) Upsert(ctx context.Context, partner *entity.Partner) error {
	query := `
		INSERT INTO partners (id, name, email, phone, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			address = excluded.address,
			updated_at = excluded.updated_at
	`

	now := toMillis(time.Now())
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		partner.ID,
		partner.Name,
		partner.Email,
		partner.Phone,
		partner.Address,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to upsert partner", zap.String("partner_id", partner.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert partner: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.PartnerRepository = (*PartnerRepository)(nil)
