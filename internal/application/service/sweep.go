package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/application/workflow"
)

// DefaultSweepBatchSize is the page size used to scan lapsed vouchers
const DefaultSweepBatchSize = 200

// SweepError records one voucher the sweep could not expire
type SweepError struct {
	VoucherID string `json:"voucher_id"`
	Error     string `json:"error"`
}

// SweepResult summarises one expiration sweep
type SweepResult struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	ExpiredCount int           `json:"expired_count"`
	Errors       []SweepError  `json:"errors"`
}

// SweepService expires active vouchers whose window has closed
type SweepService interface {
	Sweep(ctx context.Context) (*SweepResult, error)
}

type sweepServiceImpl struct {
	voucherRepo port.VoucherRepository
	engine      workflow.LifecycleEngine
	clock       port.Clock
	metrics     port.MetricsRecorder
	batchSize   int
	logger      Logger
}

// NewSweepService creates a new SweepService
func NewSweepService(
	voucherRepo port.VoucherRepository,
	engine workflow.LifecycleEngine,
	clock port.Clock,
	metrics port.MetricsRecorder,
	batchSize int,
	logger Logger,
) SweepService {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &sweepServiceImpl{
		voucherRepo: voucherRepo,
		engine:      engine,
		clock:       clock,
		metrics:     metrics,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Sweep expires each lapsed voucher independently. A failure on one voucher is
// recorded in the result and the batch continues. Re-running is harmless:
// vouchers that are no longer active are skipped.
// The returned error is only set when the scan itself fails.
func (s *sweepServiceImpl) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{StartedAt: s.clock.Now(), Errors: []SweepError{}}
	defer func() {
		result.Duration = s.clock.Now().Sub(result.StartedAt)
		s.metrics.SweepCompleted(result.ExpiredCount, len(result.Errors), result.Duration)
	}()

	s.logger.Info("Expiration sweep started", "cutoff", result.StartedAt)

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ids, err := s.voucherRepo.ListLapsedActiveIDs(ctx, result.StartedAt, afterID, s.batchSize)
		if err != nil {
			s.logger.Error("Expiration sweep scan failed", "after_id", afterID, "error", err)
			return result, fmt.Errorf("failed to scan lapsed vouchers: %w", err)
		}

		for _, id := range ids {
			expired, err := s.engine.Expire(ctx, id)
			if err != nil {
				s.logger.Error("Failed to expire voucher", "voucher_id", id, "error", err)
				result.Errors = append(result.Errors, SweepError{VoucherID: id, Error: err.Error()})
				continue
			}
			if expired {
				result.ExpiredCount++
			}
		}

		if len(ids) < s.batchSize {
			break
		}
		afterID = ids[len(ids)-1]
	}

	s.logger.Info("Expiration sweep finished",
		"expired", result.ExpiredCount,
		"failed", len(result.Errors),
	)
	return result, nil
}
