package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/domain/event"
	domainwf "github.com/garyjia/booking-voucher/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// engineImpl is the concrete implementation of LifecycleEngine
type engineImpl struct {
	voucherRepo port.VoucherRepository
	txManager   port.TransactionManager
	publisher   port.EventPublisher
	clock       port.Clock
	metrics     port.MetricsRecorder
	logger      Logger
}

// EngineOption configures the lifecycle engine
type EngineOption func(*engineImpl)

// WithPublisher sets the publisher for transition events
func WithPublisher(p port.EventPublisher) EngineOption {
	return func(e *engineImpl) {
		e.publisher = p
	}
}

// WithClock overrides the wall clock
func WithClock(c port.Clock) EngineOption {
	return func(e *engineImpl) {
		e.clock = c
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m port.MetricsRecorder) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// NewEngine creates a new lifecycle engine
func NewEngine(voucherRepo port.VoucherRepository, txManager port.TransactionManager, opts ...EngineOption) LifecycleEngine {
	e := &engineImpl{
		voucherRepo: voucherRepo,
		txManager:   txManager,
		clock:       port.SystemClock,
		metrics:     port.NopMetrics{},
		logger:      nopLogger{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Redeem moves an active voucher to used
func (e *engineImpl) Redeem(ctx context.Context, voucherID string, actor entity.Actor) (*entity.Voucher, error) {
	return e.fireUserTrigger(ctx, voucherID, actor, domainwf.TriggerRedeem, "")
}

// Cancel moves an active voucher to cancelled
func (e *engineImpl) Cancel(ctx context.Context, voucherID string, actor entity.Actor, reason string) (*entity.Voucher, error) {
	return e.fireUserTrigger(ctx, voucherID, actor, domainwf.TriggerCancel, reason)
}

func (e *engineImpl) fireUserTrigger(ctx context.Context, voucherID string, actor entity.Actor, trigger domainwf.Trigger, reason string) (*entity.Voucher, error) {
	v, err := e.load(ctx, voucherID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	machine := BuildVoucherStateMachine(domainwf.State(v.Status), e.guards(v, actor, now))

	if !machine.CanFire(trigger) {
		return nil, terminalError(v.Status)
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		e.logger.Info("Voucher transition rejected",
			"voucher_id", v.ID,
			"trigger", trigger.String(),
			"actor_id", actor.ID(),
			"reason", err,
		)
		if _, _, expErr := e.expire(ctx, v); expErr != nil {
			e.logger.Error("Failed to expire lapsed voucher", "voucher_id", v.ID, "error", expErr)
		}
		return nil, guardError(err)
	}

	to := entity.VoucherStatus(machine.State())
	current, won, err := e.apply(ctx, v, to, actor, reason, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, terminalError(current.Status)
	}
	if to == entity.VoucherStatusExpired {
		return nil, ErrVoucherExpired
	}
	return current, nil
}

// Expire moves a lapsed active voucher to expired
func (e *engineImpl) Expire(ctx context.Context, voucherID string) (bool, error) {
	v, err := e.load(ctx, voucherID)
	if err != nil {
		return false, err
	}
	_, won, err := e.expire(ctx, v)
	return won, err
}

// Refresh returns the voucher as it must be observed now
func (e *engineImpl) Refresh(ctx context.Context, v *entity.Voucher) (*entity.Voucher, error) {
	current, _, err := e.expire(ctx, v)
	return current, err
}

func (e *engineImpl) expire(ctx context.Context, v *entity.Voucher) (*entity.Voucher, bool, error) {
	if !v.IsActive() {
		return v, false, nil
	}

	now := e.clock.Now()
	machine := BuildVoucherStateMachine(domainwf.StateActive, e.guards(v, entity.SystemActor, now))
	if err := machine.Fire(ctx, domainwf.TriggerExpire); err != nil {
		// window still open
		return v, false, nil
	}

	return e.apply(ctx, v, entity.VoucherStatusExpired, entity.SystemActor, "", now)
}

// apply persists the transition with a compare-and-set and reports whether
// this call won it. On a lost race the stored voucher is returned.
func (e *engineImpl) apply(ctx context.Context, v *entity.Voucher, to entity.VoucherStatus, actor entity.Actor, reason string, now time.Time) (*entity.Voucher, bool, error) {
	var (
		current *entity.Voucher
		won     bool
	)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := e.voucherRepo.TransitionStatus(txCtx, port.StatusTransition{
			VoucherID: v.ID,
			From:      v.Status,
			To:        to,
			At:        now,
			ActorID:   actor.ID(),
			Reason:    reason,
		})
		if err != nil {
			return fmt.Errorf("failed to transition voucher %s: %w", v.ID, err)
		}

		current, err = e.voucherRepo.GetByID(txCtx, v.ID)
		if err != nil {
			return fmt.Errorf("failed to reload voucher %s: %w", v.ID, err)
		}
		if current == nil {
			return ErrVoucherNotFound
		}
		won = ok
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to apply voucher transition",
			"voucher_id", v.ID,
			"from", string(v.Status),
			"to", string(to),
			"error", err,
		)
		return nil, false, err
	}

	if !won {
		e.logger.Info("Voucher transition lost to a concurrent update",
			"voucher_id", v.ID,
			"to", string(to),
			"current", string(current.Status),
		)
		return current, false, nil
	}

	e.logger.Info("Voucher transitioned",
		"voucher_id", v.ID,
		"voucher_number", v.VoucherNumber,
		"from", string(v.Status),
		"to", string(to),
		"actor_id", actor.ID(),
	)
	e.metrics.VoucherTransitioned(to)
	e.publish(ctx, current, to, actor, reason, now)

	return current, true, nil
}

func (e *engineImpl) publish(ctx context.Context, v *entity.Voucher, to entity.VoucherStatus, actor entity.Actor, reason string, now time.Time) {
	if e.publisher == nil {
		return
	}

	var evt *event.Event
	switch to {
	case entity.VoucherStatusUsed:
		evt = event.ForVoucher(event.TypeVoucherUsed, v, actor, now)
	case entity.VoucherStatusCancelled:
		evt = event.ForVoucher(event.TypeVoucherCancelled, v, actor, now)
		if reason != "" {
			evt = evt.WithPayload("reason", reason)
		}
	case entity.VoucherStatusExpired:
		evt = event.ForVoucher(event.TypeVoucherExpired, v, actor, now).
			WithPayload("valid_until", v.ValidUntil.Format(time.RFC3339))
	default:
		return
	}

	e.publisher.Publish(ctx, evt)
}

func (e *engineImpl) load(ctx context.Context, voucherID string) (*entity.Voucher, error) {
	v, err := e.voucherRepo.GetByID(ctx, voucherID)
	if err != nil {
		return nil, fmt.Errorf("failed to load voucher %s: %w", voucherID, err)
	}
	if v == nil {
		return nil, ErrVoucherNotFound
	}
	return v, nil
}

// guards binds the machine's checks to one voucher, caller and instant
func (e *engineImpl) guards(v *entity.Voucher, actor entity.Actor, now time.Time) LifecycleGuards {
	return LifecycleGuards{
		MayRedeem: func(ctx context.Context) error {
			id := actor.Identity
			switch {
			case id == nil:
				return ErrRedeemForbidden
			case id.IsStaff():
				return nil
			case id.Role == entity.RolePartner && v.OwnedByPartner(id.PartnerID):
				return nil
			}
			return ErrRedeemForbidden
		},
		MayCancel: func(ctx context.Context) error {
			id := actor.Identity
			switch {
			case id == nil:
				return ErrCancelForbidden
			case id.Role == entity.RoleMaster:
				return nil
			case id.Role == entity.RolePartner && v.OwnedByPartner(id.PartnerID):
				return nil
			case id.Role == entity.RoleCustomer && v.OwnedByCustomer(id.Email):
				return nil
			}
			return ErrCancelForbidden
		},
		Started: func(ctx context.Context) error {
			if !v.HasStarted(now) {
				return ErrNotYetValid
			}
			return nil
		},
		Lapsed: func(ctx context.Context) error {
			if !v.IsLapsed(now) {
				return errWindowOpen
			}
			return nil
		},
	}
}

// Verify interface compliance
var _ LifecycleEngine = (*engineImpl)(nil)
