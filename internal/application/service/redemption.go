package service

import (
	"context"
	"time"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/application/workflow"
	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/domain/token"
)

// DefaultTokenTTL is the lifetime of a verification token
const DefaultTokenTTL = 24 * time.Hour

// IssuedToken is a freshly signed verification token
type IssuedToken struct {
	Token         string    `json:"token"`
	VoucherNumber string    `json:"voucher_number"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// RedemptionService issues verification tokens and drives redeem and cancel
type RedemptionService interface {
	IssueToken(ctx context.Context, voucherID string, actor entity.Actor) (*IssuedToken, error)
	RedeemByID(ctx context.Context, voucherID string, actor entity.Actor) (*entity.Voucher, error)
	RedeemByToken(ctx context.Context, rawToken string, actor entity.Actor) (*entity.Voucher, error)
	Cancel(ctx context.Context, voucherID string, actor entity.Actor, reason string) (*entity.Voucher, error)
}

type redemptionServiceImpl struct {
	lookup   LookupService
	engine   workflow.LifecycleEngine
	signer   *token.Signer
	clock    port.Clock
	tokenTTL time.Duration
	logger   Logger
}

// NewRedemptionService creates a new RedemptionService
func NewRedemptionService(
	lookup LookupService,
	engine workflow.LifecycleEngine,
	signer *token.Signer,
	clock port.Clock,
	tokenTTL time.Duration,
	logger Logger,
) RedemptionService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &redemptionServiceImpl{
		lookup:   lookup,
		engine:   engine,
		signer:   signer,
		clock:    clock,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// IssueToken signs a short-lived token for an active voucher the caller may see
func (s *redemptionServiceImpl) IssueToken(ctx context.Context, voucherID string, actor entity.Actor) (*IssuedToken, error) {
	view, err := s.lookup.GetByID(ctx, voucherID, actor)
	if err != nil {
		return nil, err
	}
	v := view.Voucher
	if !v.IsActive() {
		return nil, terminalStatusError(v.Status)
	}

	now := s.clock.Now()
	raw, err := s.signer.Sign(token.SignRequest{
		VoucherNumber: v.VoucherNumber,
		PartnerID:     v.PartnerID,
		SystemID:      v.ID,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.tokenTTL),
	})
	if err != nil {
		return nil, apperror.Internal(err, "failed to sign verification token")
	}

	s.logger.Info("Verification token issued",
		"voucher_id", v.ID,
		"voucher_number", v.VoucherNumber,
		"actor_id", actor.ID(),
	)

	return &IssuedToken{
		Token:         raw,
		VoucherNumber: v.VoucherNumber,
		ExpiresAt:     now.Add(s.tokenTTL).Truncate(time.Millisecond),
	}, nil
}

// RedeemByID is the manual redemption path after a lookup
func (s *redemptionServiceImpl) RedeemByID(ctx context.Context, voucherID string, actor entity.Actor) (*entity.Voucher, error) {
	return s.engine.Redeem(ctx, voucherID, actor)
}

// RedeemByToken verifies a scanned token and redeems the voucher it names
func (s *redemptionServiceImpl) RedeemByToken(ctx context.Context, rawToken string, actor entity.Actor) (*entity.Voucher, error) {
	result, err := s.lookup.Verify(ctx, rawToken, actor)
	if err != nil {
		return nil, err
	}

	return s.engine.Redeem(ctx, result.Voucher.ID, actor)
}

// Cancel cancels an active voucher for its owner or a master
func (s *redemptionServiceImpl) Cancel(ctx context.Context, voucherID string, actor entity.Actor, reason string) (*entity.Voucher, error) {
	return s.engine.Cancel(ctx, voucherID, actor, reason)
}

func terminalStatusError(status entity.VoucherStatus) error {
	switch status {
	case entity.VoucherStatusUsed:
		return workflow.ErrAlreadyUsed
	case entity.VoucherStatusCancelled:
		return workflow.ErrVoucherCancelled
	case entity.VoucherStatusExpired:
		return workflow.ErrVoucherExpired
	}
	return apperror.Conflict("voucher is %s", status)
}
