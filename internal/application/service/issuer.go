package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/domain/event"
	"github.com/garyjia/booking-voucher/internal/domain/policy"
)

// DefaultNumberRetryLimit bounds voucher number allocation attempts
const DefaultNumberRetryLimit = 5

// IssueRequest is the booking snapshot supplied by the booking subsystem
type IssueRequest struct {
	BookingID        string                `json:"booking_id" validate:"required,max=128"`
	BookingType      entity.BookingType    `json:"booking_type" validate:"required,oneof=activity event restaurant vehicle accommodation package"`
	PartnerID        string                `json:"partner_id" validate:"required,max=128"`
	ConfirmationCode string                `json:"confirmation_code" validate:"required,max=64"`
	CustomerName     string                `json:"customer_name" validate:"required,max=256"`
	CustomerEmail    string                `json:"customer_email" validate:"required,email"`
	CustomerPhone    string                `json:"customer_phone" validate:"omitempty,max=64"`
	AssetID          string                `json:"asset_id" validate:"required,max=128"`
	AssetName        string                `json:"asset_name" validate:"required,max=256"`
	AssetAddress     string                `json:"asset_address" validate:"omitempty,max=512"`
	AssetDescription string                `json:"asset_description" validate:"omitempty,max=2048"`
	Details          entity.BookingDetails `json:"-" validate:"-"`
	Partner          *entity.Partner       `json:"-" validate:"-"`
}

// VoucherIssuer creates vouchers for confirmed bookings
type VoucherIssuer interface {
	Issue(ctx context.Context, req *IssueRequest, actor entity.Actor) (*entity.Voucher, error)
}

type voucherIssuerImpl struct {
	voucherRepo port.VoucherRepository
	partnerRepo port.PartnerRepository
	txManager   port.TransactionManager
	publisher   port.EventPublisher
	numbers     policy.NumberGenerator
	validity    policy.ValidityPolicy
	clock       port.Clock
	metrics     port.MetricsRecorder
	validate    *validator.Validate
	retryLimit  int
	logger      Logger
}

// IssuerOption configures the issuer
type IssuerOption func(*voucherIssuerImpl)

// WithNumberGenerator overrides the voucher number source
func WithNumberGenerator(g policy.NumberGenerator) IssuerOption {
	return func(s *voucherIssuerImpl) { s.numbers = g }
}

// WithValidityPolicy overrides the validity window table
func WithValidityPolicy(p policy.ValidityPolicy) IssuerOption {
	return func(s *voucherIssuerImpl) { s.validity = p }
}

// WithNumberRetryLimit sets how many numbers are tried before giving up
func WithNumberRetryLimit(n int) IssuerOption {
	return func(s *voucherIssuerImpl) {
		if n > 0 {
			s.retryLimit = n
		}
	}
}

// WithIssuerClock overrides the wall clock
func WithIssuerClock(c port.Clock) IssuerOption {
	return func(s *voucherIssuerImpl) { s.clock = c }
}

// WithIssuerMetrics sets the metrics recorder
func WithIssuerMetrics(m port.MetricsRecorder) IssuerOption {
	return func(s *voucherIssuerImpl) { s.metrics = m }
}

// NewVoucherIssuer creates a new VoucherIssuer
func NewVoucherIssuer(
	voucherRepo port.VoucherRepository,
	partnerRepo port.PartnerRepository,
	txManager port.TransactionManager,
	publisher port.EventPublisher,
	logger Logger,
	opts ...IssuerOption,
) VoucherIssuer {
	s := &voucherIssuerImpl{
		voucherRepo: voucherRepo,
		partnerRepo: partnerRepo,
		txManager:   txManager,
		publisher:   publisher,
		numbers:     policy.NewRandomNumberGenerator(),
		validity:    policy.DefaultValidityPolicy(),
		clock:       port.SystemClock,
		metrics:     port.NopMetrics{},
		validate:    validator.New(),
		retryLimit:  DefaultNumberRetryLimit,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue validates the snapshot, computes the validity window and persists an
// active voucher. A booking with an open voucher is rejected with Conflict.
func (s *voucherIssuerImpl) Issue(ctx context.Context, req *IssueRequest, actor entity.Actor) (*entity.Voucher, error) {
	if !actor.Identity.IsStaff() {
		return nil, apperror.Forbidden("only staff may issue vouchers")
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	validFrom, validUntil, err := s.validity.Window(req.BookingType, req.Details, now)
	if err != nil {
		return nil, err
	}

	v := &entity.Voucher{
		BookingID:        req.BookingID,
		BookingType:      req.BookingType,
		Status:           entity.VoucherStatusActive,
		ValidFrom:        validFrom,
		ValidUntil:       validUntil,
		PartnerID:        req.PartnerID,
		ConfirmationCode: req.ConfirmationCode,
		Customer: entity.CustomerInfo{
			Name:  strings.TrimSpace(req.CustomerName),
			Email: strings.TrimSpace(req.CustomerEmail),
			Phone: req.CustomerPhone,
		},
		Asset: entity.AssetInfo{
			ID:          req.AssetID,
			Name:        req.AssetName,
			Address:     req.AssetAddress,
			Description: req.AssetDescription,
		},
		Details:   req.Details,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.voucherRepo.FindOpenByBooking(txCtx, req.BookingID, req.BookingType)
		if err != nil {
			return err
		}
		if existing != nil {
			return port.ErrDuplicateBooking
		}

		if req.Partner != nil {
			req.Partner.ID = req.PartnerID
			if err := s.partnerRepo.Upsert(txCtx, req.Partner); err != nil {
				return err
			}
		}

		return s.createWithUniqueNumber(txCtx, v, now)
	})
	if err != nil {
		s.logger.Error("Failed to issue voucher",
			"booking_id", req.BookingID,
			"booking_type", string(req.BookingType),
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Voucher issued",
		"voucher_id", v.ID,
		"voucher_number", v.VoucherNumber,
		"booking_id", v.BookingID,
		"booking_type", string(v.BookingType),
		"valid_until", v.ValidUntil,
	)
	s.metrics.VoucherIssued(v.BookingType)
	if s.publisher != nil {
		s.publisher.Publish(ctx, event.ForVoucher(event.TypeVoucherGenerated, v, actor, now))
	}

	return v, nil
}

// createWithUniqueNumber retries with a fresh number while the insert hits
// the voucher number unique index
func (s *voucherIssuerImpl) createWithUniqueNumber(ctx context.Context, v *entity.Voucher, now time.Time) error {
	for attempt := 1; attempt <= s.retryLimit; attempt++ {
		number, err := s.numbers.Generate(now)
		if err != nil {
			return apperror.Internal(err, "failed to generate voucher number")
		}

		v.ID = uuid.NewString()
		v.VoucherNumber = number
		v.QRCode = policy.ReferencePayload(v)

		err = s.voucherRepo.Create(ctx, v)
		if err == nil {
			return nil
		}
		if !errors.Is(err, port.ErrDuplicateVoucherNumber) {
			return err
		}
		s.logger.Info("Voucher number collision, retrying", "voucher_number", number, "attempt", attempt)
	}

	return apperror.Internal(port.ErrDuplicateVoucherNumber,
		"could not allocate a unique voucher number after %d attempts", s.retryLimit)
}

func (s *voucherIssuerImpl) validateRequest(req *IssueRequest) error {
	if req == nil {
		return apperror.Validation("issue request is required")
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return apperror.Validation("invalid issue request: %s", strings.Join(fields, ", "))
		}
		return apperror.Wrap(apperror.KindValidation, err, "invalid issue request")
	}
	if req.Details != nil && req.Details.BookingType() != req.BookingType {
		return apperror.Validation("details of type %s do not match booking type %s", req.Details.BookingType(), req.BookingType)
	}
	return nil
}
