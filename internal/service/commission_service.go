package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rizwan0994/haul-connect-sub002/internal/apperrors"
	"github.com/Rizwan0994/haul-connect-sub002/internal/domain/workflow"
	"github.com/Rizwan0994/haul-connect-sub002/internal/logger"
)

// CommissionService advances carrier commission state from operational
// events. Approval gates eligibility but never triggers commission changes by
// itself; the triggers here are load completion and the explicit payout.
type CommissionService struct {
	entities EntityStore
	gate     PermissionGate
	emitter  NotificationEmitter
	log      *logger.Logger
	now      func() time.Time
}

// NewCommissionService creates a new CommissionService.
func NewCommissionService(
	entities EntityStore,
	gate PermissionGate,
	emitter NotificationEmitter,
	log *logger.Logger,
) *CommissionService {
	return &CommissionService{
		entities: entities,
		gate:     gate,
		emitter:  emitter,
		log:      log,
		now:      time.Now,
	}
}

// OnLoadCompleted records one completed load for a carrier. This is an
// operational event, not an actor transition, so it carries no permission
// check. The counter always advances; commission promotion depends on the
// carrier's approval state at the time of the event.
func (s *CommissionService) OnLoadCompleted(ctx context.Context, carrierID string) (*workflow.Entity, error) {
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		e, err := s.entities.GetByID(ctx, carrierID)
		if err != nil {
			return nil, err
		}

		now := s.now()
		prev := e.Snapshot()
		if err := e.OnLoadCompleted(now); err != nil {
			return nil, err
		}

		if err := s.entities.ApplyTransition(ctx, e, prev, nil); err != nil {
			if apperrors.IsCode(err, apperrors.CodeConcurrentModification) && attempt < maxAttempts {
				lastErr = err
				continue
			}
			return nil, err
		}

		s.log.Info().
			Str("carrier_id", e.ID).
			Int("loads_completed", e.Commission.LoadsCompleted).
			Str("commission_status", e.Commission.Status.String()).
			Msg("Load completion recorded")

		s.emit(ctx, e, "load_completed", "", now)
		return e, nil
	}
	return nil, lastErr
}

// MarkPaid records the commission payout for a carrier in confirmed_sale.
func (s *CommissionService) MarkPaid(ctx context.Context, carrierID, actorID string, amount decimal.Decimal) (*workflow.Entity, error) {
	e, err := s.entities.GetByID(ctx, carrierID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, actorID, "carrier.commission.paid"); err != nil {
		return nil, err
	}

	now := s.now()
	prev := e.Snapshot()
	if err := e.MarkPaid(actorID, amount, now); err != nil {
		return nil, err
	}

	// No automatic retry here: a commission_status conflict means the payout
	// raced another payout or a promotion, and the caller must re-check.
	if err := s.entities.ApplyTransition(ctx, e, prev, nil); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("carrier_id", e.ID).
		Str("actor_id", actorID).
		Str("amount", amount.StringFixed(2)).
		Msg("Commission marked paid")

	s.emit(ctx, e, "commission_paid", actorID, now)
	return e, nil
}

func (s *CommissionService) authorize(ctx context.Context, actorID, permission string) error {
	allowed, err := s.gate.Check(ctx, actorID, permission)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "permission check failed")
	}
	if !allowed {
		s.log.Warn().
			Str("actor_id", actorID).
			Str("permission", permission).
			Msg("Authorization denied")
		return apperrors.Newf(apperrors.CodeUnauthorized,
			"actor %s lacks permission %s", actorID, permission)
	}
	return nil
}

func (s *CommissionService) emit(ctx context.Context, e *workflow.Entity, action, actorID string, at time.Time) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, &workflow.Event{
		EntityKind: e.Kind,
		EntityID:   e.ID,
		Action:     action,
		ActorID:    actorID,
		OccurredAt: at,
	})
}
