package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/application/workflow"
	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/domain/event"
	"github.com/garyjia/booking-voucher/internal/domain/token"
)

var (
	ErrVoucherNotFound    = apperror.NotFound("voucher not found")
	ErrTokenNotForVoucher = apperror.InvalidToken("verification token does not belong to this voucher")
	ErrPartnerMismatch    = apperror.Forbidden("verification token was issued for another partner")
)

// Verification outcomes reported to metrics
const (
	OutcomeValid     = "valid"
	OutcomeInvalid   = "invalid"
	OutcomeExpired   = "expired"
	OutcomeForbidden = "forbidden"
	OutcomeNotFound  = "not_found"
)

// VerificationResult is returned for a successfully verified token
type VerificationResult struct {
	VoucherView
	Claims     *token.Claims `json:"claims"`
	Redeemable bool          `json:"redeemable"`
}

// LookupService resolves vouchers and enforces who may see them
type LookupService interface {
	GetByID(ctx context.Context, id string, actor entity.Actor) (*VoucherView, error)
	GetByNumber(ctx context.Context, number string, actor entity.Actor) (*VoucherView, error)
	GetByConfirmationCode(ctx context.Context, code string, actor entity.Actor) (*VoucherView, error)
	Verify(ctx context.Context, rawToken string, actor entity.Actor) (*VerificationResult, error)
}

type lookupServiceImpl struct {
	voucherRepo port.VoucherRepository
	partnerRepo port.PartnerRepository
	engine      workflow.LifecycleEngine
	signer      *token.Signer
	publisher   port.EventPublisher
	clock       port.Clock
	metrics     port.MetricsRecorder
	logger      Logger
}

// NewLookupService creates a new LookupService
func NewLookupService(
	voucherRepo port.VoucherRepository,
	partnerRepo port.PartnerRepository,
	engine workflow.LifecycleEngine,
	signer *token.Signer,
	publisher port.EventPublisher,
	clock port.Clock,
	metrics port.MetricsRecorder,
	logger Logger,
) LookupService {
	return &lookupServiceImpl{
		voucherRepo: voucherRepo,
		partnerRepo: partnerRepo,
		engine:      engine,
		signer:      signer,
		publisher:   publisher,
		clock:       clock,
		metrics:     metrics,
		logger:      logger,
	}
}

// GetByID resolves a voucher for a caller allowed to see it. Not logged as a lookup.
func (s *lookupServiceImpl) GetByID(ctx context.Context, id string, actor entity.Actor) (*VoucherView, error) {
	v, err := s.voucherRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load voucher: %w", err)
	}
	if v == nil {
		return nil, ErrVoucherNotFound
	}
	if err := checkVisible(v, actor); err != nil {
		return nil, err
	}
	return s.assemble(ctx, v)
}

// GetByNumber is the manual lookup at a point of service. Every attempt is logged.
func (s *lookupServiceImpl) GetByNumber(ctx context.Context, number string, actor entity.Actor) (view *VoucherView, err error) {
	number = strings.ToUpper(strings.TrimSpace(number))

	var v *entity.Voucher
	defer func() {
		s.recordLookup(ctx, v, number, "number", actor, err)
	}()

	if actor.Identity == nil {
		return nil, ErrAuthenticationRequired
	}
	if number == "" {
		return nil, apperror.Validation("voucher number is required")
	}

	v, err = s.voucherRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to load voucher: %w", err)
	}
	if v == nil {
		return nil, ErrVoucherNotFound
	}
	if err = checkVisible(v, actor); err != nil {
		return nil, err
	}
	return s.assemble(ctx, v)
}

// GetByConfirmationCode is open to anyone holding the code
func (s *lookupServiceImpl) GetByConfirmationCode(ctx context.Context, code string, actor entity.Actor) (view *VoucherView, err error) {
	code = strings.TrimSpace(code)

	var v *entity.Voucher
	defer func() {
		s.recordLookup(ctx, v, code, "confirmation_code", actor, err)
	}()

	if code == "" {
		return nil, apperror.Validation("confirmation code is required")
	}

	v, err = s.voucherRepo.GetByConfirmationCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load voucher: %w", err)
	}
	if v == nil {
		return nil, ErrVoucherNotFound
	}
	return s.assemble(ctx, v)
}

// Verify checks a scanned token and resolves the voucher it names.
// Token verification is never available to anonymous callers.
func (s *lookupServiceImpl) Verify(ctx context.Context, rawToken string, actor entity.Actor) (result *VerificationResult, err error) {
	var (
		v   *entity.Voucher
		ref string
	)
	defer func() {
		s.recordScan(ctx, v, ref, actor, err)
	}()

	if actor.Identity == nil {
		return nil, ErrAuthenticationRequired
	}

	claims, err := s.signer.Verify(strings.TrimSpace(rawToken), s.clock.Now())
	if err != nil {
		return nil, err
	}
	ref = claims.VoucherNumber

	v, err = s.voucherRepo.GetByNumber(ctx, claims.VoucherNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load voucher: %w", err)
	}
	if v == nil {
		return nil, ErrVoucherNotFound
	}
	if v.ID != claims.SystemID {
		return nil, ErrTokenNotForVoucher
	}
	if claims.PartnerID != v.PartnerID {
		return nil, ErrPartnerMismatch
	}
	if err = checkVisible(v, actor); err != nil {
		return nil, err
	}

	view, err := s.assemble(ctx, v)
	if err != nil {
		return nil, err
	}
	v = view.Voucher

	return &VerificationResult{
		VoucherView: *view,
		Claims:      claims,
		Redeemable:  v.IsActive() && v.HasStarted(s.clock.Now()),
	}, nil
}

// assemble lazily expires the voucher and attaches the partner
func (s *lookupServiceImpl) assemble(ctx context.Context, v *entity.Voucher) (*VoucherView, error) {
	current, err := s.engine.Refresh(ctx, v)
	if err != nil {
		return nil, err
	}

	partner, err := s.partnerRepo.GetByID(ctx, current.PartnerID)
	if err != nil {
		// the voucher is still usable without partner details
		s.logger.Error("Failed to load partner", "partner_id", current.PartnerID, "error", err)
	}

	return &VoucherView{Voucher: current, Partner: partner}, nil
}

func (s *lookupServiceImpl) recordLookup(ctx context.Context, v *entity.Voucher, ref, by string, actor entity.Actor, err error) {
	if err != nil {
		s.logger.Info("Voucher lookup failed", "by", by, "ref", ref, "actor_id", actor.ID(), "error", err)
	}
	evt := accessEvent(event.TypeVoucherLookedUp, v, ref, actor, s.clock).WithPayload("by", by)
	publishOutcome(ctx, s.publisher, evt, err)
}

func (s *lookupServiceImpl) recordScan(ctx context.Context, v *entity.Voucher, ref string, actor entity.Actor, err error) {
	s.metrics.Verification(verificationOutcome(err))
	if err != nil {
		s.logger.Info("Voucher verification failed", "ref", ref, "actor_id", actor.ID(), "error", err)
	}
	publishOutcome(ctx, s.publisher, accessEvent(event.TypeVoucherScanned, v, ref, actor, s.clock), err)
}

func verificationOutcome(err error) string {
	switch apperror.KindOf(err) {
	case "":
		return OutcomeValid
	case apperror.KindExpired:
		return OutcomeExpired
	case apperror.KindForbidden:
		return OutcomeForbidden
	case apperror.KindNotFound:
		return OutcomeNotFound
	}
	return OutcomeInvalid
}
