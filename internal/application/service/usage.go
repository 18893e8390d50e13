package service

import (
	"context"
	"fmt"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/domain/event"
)

// UsageLogger appends one usage log entry per voucher event.
// Write failures are logged and counted; they never reach the operation that emitted the event.
type UsageLogger struct {
	repo    port.UsageLogRepository
	metrics port.MetricsRecorder
	logger  Logger
}

// NewUsageLogger creates a new UsageLogger
func NewUsageLogger(repo port.UsageLogRepository, metrics port.MetricsRecorder, logger Logger) *UsageLogger {
	return &UsageLogger{repo: repo, metrics: metrics, logger: logger}
}

// Handle is an event handler for every usage event type
func (u *UsageLogger) Handle(ctx context.Context, evt *event.Event) error {
	action, ok := evt.Type.UsageAction()
	if !ok {
		return nil
	}

	entry := &entity.UsageLogEntry{
		ID:            evt.ID,
		VoucherID:     evt.VoucherID,
		VoucherNumber: evt.VoucherNumber,
		Action:        action,
		ActorID:       evt.ActorID,
		ActorType:     evt.ActorType,
		IPAddress:     evt.IPAddress,
		UserAgent:     evt.UserAgent,
		Metadata:      evt.Payload,
		CreatedAt:     evt.Timestamp,
	}
	if entry.ActorType == "" {
		entry.ActorType = entity.ActorTypeSystem
	}

	if err := u.repo.Append(ctx, entry); err != nil {
		u.metrics.UsageLogFailed(action)
		u.logger.Error("Failed to write usage log",
			"voucher_id", evt.VoucherID,
			"action", string(action),
			"event_id", evt.ID,
			"error", err,
		)
	}
	return nil
}

// UsageService exposes a voucher's usage log to staff and the owning partner
type UsageService interface {
	ListUsage(ctx context.Context, voucherID string, actor entity.Actor) ([]*entity.UsageLogEntry, error)
	ExportUsage(ctx context.Context, voucherID string, actor entity.Actor) (*Document, error)
}

type usageServiceImpl struct {
	voucherRepo port.VoucherRepository
	usageRepo   port.UsageLogRepository
	writer      port.UsageReportWriter
	storage     port.FileStorage
	clock       port.Clock
	logger      Logger
}

// NewUsageService creates a new UsageService. storage may be nil to skip archiving exports.
func NewUsageService(
	voucherRepo port.VoucherRepository,
	usageRepo port.UsageLogRepository,
	writer port.UsageReportWriter,
	storage port.FileStorage,
	clock port.Clock,
	logger Logger,
) UsageService {
	return &usageServiceImpl{
		voucherRepo: voucherRepo,
		usageRepo:   usageRepo,
		writer:      writer,
		storage:     storage,
		clock:       clock,
		logger:      logger,
	}
}

// ListUsage returns all entries for the voucher, oldest first
func (s *usageServiceImpl) ListUsage(ctx context.Context, voucherID string, actor entity.Actor) ([]*entity.UsageLogEntry, error) {
	_, entries, err := s.load(ctx, voucherID, actor)
	return entries, err
}

// ExportUsage renders the usage log as a spreadsheet
func (s *usageServiceImpl) ExportUsage(ctx context.Context, voucherID string, actor entity.Actor) (*Document, error) {
	v, entries, err := s.load(ctx, voucherID, actor)
	if err != nil {
		return nil, err
	}

	content, err := s.writer.WriteUsage(ctx, v, entries)
	if err != nil {
		return nil, apperror.Internal(err, "failed to export usage log")
	}

	filename := fmt.Sprintf("%s-usage-%s.xlsx", v.VoucherNumber, s.clock.Now().Format("20060102T150405"))
	if s.storage != nil {
		if err := s.storage.Save(ctx, "exports/"+filename, content); err != nil {
			s.logger.Error("Failed to archive usage export", "voucher_id", v.ID, "error", err)
		}
	}

	return &Document{
		Filename:    filename,
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     content,
	}, nil
}

func (s *usageServiceImpl) load(ctx context.Context, voucherID string, actor entity.Actor) (*entity.Voucher, []*entity.UsageLogEntry, error) {
	v, err := s.voucherRepo.GetByID(ctx, voucherID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load voucher: %w", err)
	}
	if v == nil {
		return nil, nil, ErrVoucherNotFound
	}
	if err := checkStaffOrPartner(v, actor); err != nil {
		return nil, nil, err
	}

	entries, err := s.usageRepo.ListByVoucher(ctx, v.ID, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list usage log: %w", err)
	}
	return v, entries, nil
}
