package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/infrastructure/persistence/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UsageLogRepository implements port.UsageLogRepository.
// The table rejects UPDATE and DELETE, so entries are only ever appended.
type UsageLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUsageLogRepository creates a new usage log repository
func NewUsageLogRepository(db *sql.DB, logger *zap.Logger) port.UsageLogRepository {
	return &UsageLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes one entry, assigning an ID when empty
func (r *UsageLogRepository) Append(ctx context.Context, entry *entity.UsageLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	var metadata sql.NullString
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal usage metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO voucher_usage_logs (
			id, voucher_id, voucher_number, action, actor_id, actor_type,
			ip_address, user_agent, metadata_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.VoucherID,
		entry.VoucherNumber,
		entry.Action,
		entry.ActorID,
		entry.ActorType,
		entry.IPAddress,
		entry.UserAgent,
		metadata,
		toMillis(entry.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to append usage log",
			zap.String("voucher_id", entry.VoucherID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
		return fmt.Errorf("failed to append usage log: %w", err)
	}

	return nil
}

// ListByVoucher returns entries oldest first. limit <= 0 returns everything.
func (r *UsageLogRepository) ListByVoucher(ctx context.Context, voucherID string, limit int) ([]*entity.UsageLogEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
		SELECT id, voucher_id, voucher_number, action, actor_id, actor_type,
			ip_address, user_agent, metadata_json, created_at
		FROM voucher_usage_logs
		WHERE voucher_id = ?
		ORDER BY created_at, rowid
		LIMIT ?
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, voucherID, limit)
	if err != nil {
		r.logger.Error("Failed to list usage logs", zap.String("voucher_id", voucherID), zap.Error(err))
		return nil, fmt.Errorf("failed to list usage logs: %w", err)
	}
	defer rows.Close()

	var entries []*entity.UsageLogEntry
	for rows.Next() {
		var (
			e         entity.UsageLogEntry
			metadata  sql.NullString
			createdAt int64
		)
		err := rows.Scan(
			&e.ID,
			&e.VoucherID,
			&e.VoucherNumber,
			&e.Action,
			&e.ActorID,
			&e.ActorType,
			&e.IPAddress,
			&e.UserAgent,
			&metadata,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("usage log %s: corrupt metadata: %w", e.ID, err)
			}
		}
		e.CreatedAt = fromMillis(createdAt)
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.UsageLogRepository = (*UsageLogRepository)(nil)
