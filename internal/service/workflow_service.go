package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Rizwan0994/haul-connect-sub002/internal/apperrors"
	"github.com/Rizwan0994/haul-connect-sub002/internal/domain/workflow"
	"github.com/Rizwan0994/haul-connect-sub002/internal/logger"
)

// EntityStore persists workflow entities. ApplyTransition must write the
// entity and the history entry in one atomic unit, guarded by a
// compare-and-swap against prev.
type EntityStore interface {
	Create(ctx context.Context, e *workflow.Entity, entry *workflow.HistoryEntry) error
	GetByID(ctx context.Context, id string) (*workflow.Entity, error)
	ApplyTransition(ctx context.Context, e *workflow.Entity, prev workflow.Snapshot, entry *workflow.HistoryEntry) error
}

// AuditStore reads the append-only approval history.
type AuditStore interface {
	ListFor(ctx context.Context, entityID string) ([]*workflow.HistoryEntry, error)
}

// PermissionGate is the external authorization oracle. The workflow core
// never inspects roles itself.
type PermissionGate interface {
	Check(ctx context.Context, actorID, permission string) (bool, error)
}

// NotificationEmitter receives domain events after commit. Best-effort;
// implementations must never fail the caller.
type NotificationEmitter interface {
	Emit(ctx context.Context, event *workflow.Event)
}

// TransitionResult is returned by every successful workflow operation.
type TransitionResult struct {
	Entity         *workflow.Entity
	HistoryEntryID string
}

// WorkflowService orchestrates approval transitions: authorization, the
// domain state machine, atomic persistence, and event emission.
type WorkflowService struct {
	entities EntityStore
	audit    AuditStore
	gate     PermissionGate
	emitter  NotificationEmitter
	log      *logger.Logger
	now      func() time.Time
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(
	entities EntityStore,
	audit AuditStore,
	gate PermissionGate,
	emitter NotificationEmitter,
	log *logger.Logger,
) *WorkflowService {
	return &WorkflowService{
		entities: entities,
		audit:    audit,
		gate:     gate,
		emitter:  emitter,
		log:      log,
		now:      time.Now,
	}
}

// ── creation ──────────────────────────────────────────────────────────────────

// RegisterEntity records the creation event: the entity row and its `created`
// history entry in one transaction. New entities always start at pending
// (carriers not_eligible); the id may be supplied by the surrounding CRUD or
// left blank to generate one.
func (s *WorkflowService) RegisterEntity(ctx context.Context, kind workflow.EntityKind, id, createdBy string, salesAgentID *string) (*workflow.Entity, error) {
	now := s.now()
	e, err := workflow.NewEntity(kind, id, createdBy, salesAgentID, now)
	if err != nil {
		return nil, err
	}

	if err := s.entities.Create(ctx, e, e.CreationEntry(now)); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("entity_kind", e.Kind.String()).
		Str("entity_id", e.ID).
		Str("created_by", createdBy).
		Msg("Workflow entity registered")

	s.emit(ctx, e, workflow.ActionCreated.String(), createdBy, now)
	return e, nil
}

// ── approval operations ───────────────────────────────────────────────────────

// ApproveAsManager grants the first-stage approval.
func (s *WorkflowService) ApproveAsManager(ctx context.Context, entityID, actorID string, notes *string) (*TransitionResult, error) {
	return s.transition(ctx, entityID, actorID, "manager",
		func(e *workflow.Entity, now time.Time) (*workflow.HistoryEntry, error) {
			return e.ApproveAsManager(actorID, notes, now)
		})
}

// ApproveAsAccounts grants the final approval. For carriers with loads already
// completed this also promotes the commission state (same transaction).
func (s *WorkflowService) ApproveAsAccounts(ctx context.Context, entityID, actorID string, notes *string) (*TransitionResult, error) {
	return s.transition(ctx, entityID, actorID, "accounts",
		func(e *workflow.Entity, now time.Time) (*workflow.HistoryEntry, error) {
			return e.ApproveAsAccounts(actorID, notes, now)
		})
}

// Reject terminates the approval ladder with a mandatory reason.
func (s *WorkflowService) Reject(ctx context.Context, entityID, actorID, reason string) (*TransitionResult, error) {
	return s.transition(ctx, entityID, actorID, "reject",
		func(e *workflow.Entity, now time.Time) (*workflow.HistoryEntry, error) {
			return e.Reject(actorID, reason, now)
		})
}

// Disable sets the disabled overlay without touching the approval status.
func (s *WorkflowService) Disable(ctx context.Context, entityID, actorID string, notes *string) (*TransitionResult, error) {
	return s.transition(ctx, entityID, actorID, "disable",
		func(e *workflow.Entity, now time.Time) (*workflow.HistoryEntry, error) {
			return e.Disable(actorID, notes, now)
		})
}

// Enable clears the disabled overlay; the entity resumes its pre-disable
// approval status.
func (s *WorkflowService) Enable(ctx context.Context, entityID, actorID string, notes *string) (*TransitionResult, error) {
	return s.transition(ctx, entityID, actorID, "enable",
		func(e *workflow.Entity, now time.Time) (*workflow.HistoryEntry, error) {
			return e.Enable(actorID, notes, now)
		})
}

// ── reads ─────────────────────────────────────────────────────────────────────

// GetEntity returns the current workflow row.
func (s *WorkflowService) GetEntity(ctx context.Context, entityID string) (*workflow.Entity, error) {
	return s.entities.GetByID(ctx, entityID)
}

// GetHistory returns the ordered approval history for an entity.
func (s *WorkflowService) GetHistory(ctx context.Context, entityID string) ([]*workflow.HistoryEntry, error) {
	return s.audit.ListFor(ctx, entityID)
}

// ── core transition loop ──────────────────────────────────────────────────────

// transition runs one authorize→validate→apply cycle. On
// CONCURRENT_MODIFICATION the cycle is retried exactly once with a fresh
// read; the retry re-validates against the new state rather than replaying
// the stale intent.
func (s *WorkflowService) transition(
	ctx context.Context,
	entityID, actorID, permSuffix string,
	apply func(e *workflow.Entity, now time.Time) (*workflow.HistoryEntry, error),
) (*TransitionResult, error) {
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		e, err := s.entities.GetByID(ctx, entityID)
		if err != nil {
			return nil, err
		}

		permission := fmt.Sprintf("%s.approval.%s", e.Kind, permSuffix)
		if err := s.authorize(ctx, actorID, permission); err != nil {
			return nil, err
		}

		now := s.now()
		prev := e.Snapshot()
		entry, err := apply(e, now)
		if err != nil {
			return nil, err
		}

		if err := s.entities.ApplyTransition(ctx, e, prev, entry); err != nil {
			if apperrors.IsCode(err, apperrors.CodeConcurrentModification) && attempt < maxAttempts {
				lastErr = err
				s.log.Debug().
					Str("entity_id", entityID).
					Str("action", entry.Action.String()).
					Msg("Concurrent modification, retrying with fresh read")
				continue
			}
			return nil, err
		}

		s.log.Info().
			Str("entity_kind", e.Kind.String()).
			Str("entity_id", e.ID).
			Str("action", entry.Action.String()).
			Str("actor_id", actorID).
			Str("status", e.Status.String()).
			Bool("is_disabled", e.IsDisabled).
			Msg("Workflow transition applied")

		s.emit(ctx, e, entry.Action.String(), actorID, now)
		return &TransitionResult{Entity: e, HistoryEntryID: entry.ID}, nil
	}
	return nil, lastErr
}

// authorize asks the gate and logs every denial with actor and permission for
// the security audit.
func (s *WorkflowService) authorize(ctx context.Context, actorID, permission string) error {
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

// emit publishes the domain event; the emitter swallows its own failures.
func (s *WorkflowService) emit(ctx context.Context, e *workflow.Entity, action, actorID string, at time.Time) {
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
