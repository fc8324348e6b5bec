package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Rizwan0994/haul-connect-sub002/internal/apperrors"
	"github.com/Rizwan0994/haul-connect-sub002/internal/database"
	"github.com/Rizwan0994/haul-connect-sub002/internal/domain/workflow"
)

// EntityRepository persists workflow entities. Every mutation is a single
// transaction carrying a compare-and-swap predicate on the lifecycle columns,
// so a transition validated against a stale read can never commit.
type EntityRepository struct {
	db *database.DB
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db *database.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// Create inserts the entity row and its `created` history entry in one
// transaction.
func (r *EntityRepository) Create(ctx context.Context, e *workflow.Entity, entry *workflow.HistoryEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO workflow_entities
			    (id, entity_kind, approval_status, is_disabled,
			     commission_status, loads_completed, sales_agent_id,
			     created_by, created_at, updated_at)
			VALUES ($1, $2, $3::approval_status, $4,
			        $5::commission_status, $6, $7,
			        $8, $9, $10)
		`

		// Commission columns stay NULL for dispatches.
		var (
			commissionStatus *string
			loadsCompleted   *int
			salesAgentID     *string
		)
		if e.Commission != nil {
			s := string(e.Commission.Status)
			commissionStatus = &s
			loadsCompleted = &e.Commission.LoadsCompleted
			salesAgentID = e.Commission.SalesAgentID
		}

		_, err := tx.Exec(ctx, query,
			e.ID,
			e.Kind,
			e.Status,
			e.IsDisabled,
			commissionStatus,
			loadsCompleted,
			salesAgentID,
			e.CreatedBy,
			e.CreatedAt,
			e.UpdatedAt,
		)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeStorage, "failed to create workflow entity")
		}

		return appendHistoryTx(ctx, tx, entry)
	})
}

// GetByID retrieves a workflow entity by its primary key.
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*workflow.Entity, error) {
	query := `
		SELECT id, entity_kind, approval_status, is_disabled,
		       approved_by_manager, manager_approved_at,
		       approved_by_accounts, accounts_approved_at,
		       rejected_by, rejected_at, rejection_reason,
		       disabled_by, disabled_at,
		       commission_status, commission_amount,
		       commission_paid_by, commission_paid_at,
		       loads_completed, first_load_completed_at, sales_agent_id,
		       created_by, created_at, updated_at
		FROM workflow_entities
		WHERE id = $1
	`

	e, err := scanEntity(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("workflow entity", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "failed to get workflow entity")
	}
	return e, nil
}

// ApplyTransition writes the entity's lifecycle columns and, when entry is
// non-nil, appends the matching history entry, all in one transaction. The
// UPDATE only matches when the stored row still equals prev; zero rows with
// the row still present surfaces CONCURRENT_MODIFICATION and rolls everything
// back, so no history entry is ever written for a state that was not entered.
func (r *EntityRepository) ApplyTransition(ctx context.Context, e *workflow.Entity, prev workflow.Snapshot, entry *workflow.HistoryEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE workflow_entities
			SET approval_status         = $2::approval_status,
			    is_disabled             = $3,
			    approved_by_manager     = $4,
			    manager_approved_at     = $5,
			    approved_by_accounts    = $6,
			    accounts_approved_at    = $7,
			    rejected_by             = $8,
			    rejected_at             = $9,
			    rejection_reason        = $10,
			    disabled_by             = $11,
			    disabled_at             = $12,
			    commission_status       = $13::commission_status,
			    commission_amount       = $14,
			    commission_paid_by      = $15,
			    commission_paid_at      = $16,
			    loads_completed         = $17,
			    first_load_completed_at = $18,
			    updated_at              = $19
			WHERE id = $1
			  AND approval_status = $20::approval_status
			  AND is_disabled = $21
			  AND commission_status IS NOT DISTINCT FROM $22::commission_status
			  AND loads_completed IS NOT DISTINCT FROM $23
		`

		var (
			commissionStatus     *string
			commissionAmount     decimal.NullDecimal
			commissionPaidBy     *string
			commissionPaidAt     *time.Time
			loadsCompleted       *int
			firstLoadCompletedAt *time.Time
			prevCommission       *string
			prevLoads            *int
		)
		if e.Commission != nil {
			c := e.Commission
			s := string(c.Status)
			commissionStatus = &s
			if c.Amount != nil {
				commissionAmount = decimal.NewNullDecimal(*c.Amount)
			}
			commissionPaidBy = c.PaidBy
			commissionPaidAt = c.PaidAt
			loadsCompleted = &c.LoadsCompleted
			firstLoadCompletedAt = c.FirstLoadCompletedAt

			ps := string(prev.CommissionStatus)
			prevCommission = &ps
			pl := prev.LoadsCompleted
			prevLoads = &pl
		}

		tag, err := tx.Exec(ctx, query,
			e.ID,
			e.Status,
			e.IsDisabled,
			e.ApprovedByManager,
			e.ManagerApprovedAt,
			e.ApprovedByAccounts,
			e.AccountsApprovedAt,
			e.RejectedBy,
			e.RejectedAt,
			e.RejectionReason,
			e.DisabledBy,
			e.DisabledAt,
			commissionStatus,
			commissionAmount,
			commissionPaidBy,
			commissionPaidAt,
			loadsCompleted,
			firstLoadCompletedAt,
			e.UpdatedAt,
			prev.Status,
			prev.IsDisabled,
			prevCommission,
			prevLoads,
		)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeStorage, "failed to update workflow entity")
		}

		if tag.RowsAffected() == 0 {
			var exists bool
			err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM workflow_entities WHERE id = $1)`, e.ID,
			).Scan(&exists)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeStorage, "failed to check workflow entity")
			}
			if !exists {
				return apperrors.NotFound("workflow entity", e.ID)
			}
			return apperrors.Newf(apperrors.CodeConcurrentModification,
				"%s %s was modified concurrently", e.Kind, e.ID)
		}

		if entry != nil {
			return appendHistoryTx(ctx, tx, entry)
		}
		return nil
	})
}

// ── scan helper ───────────────────────────────────────────────────────────────

type entityScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row entityScanner) (*workflow.Entity, error) {
	e := &workflow.Entity{}
	var (
		commissionStatus     *string
		commissionAmount     decimal.NullDecimal
		commissionPaidBy     *string
		commissionPaidAt     *time.Time
		loadsCompleted       *int
		firstLoadCompletedAt *time.Time
		salesAgentID         *string
	)

	err := row.Scan(
		&e.ID,
		&e.Kind,
		&e.Status,
		&e.IsDisabled,
		&e.ApprovedByManager,
		&e.ManagerApprovedAt,
		&e.ApprovedByAccounts,
		&e.AccountsApprovedAt,
		&e.RejectedBy,
		&e.RejectedAt,
		&e.RejectionReason,
		&e.DisabledBy,
		&e.DisabledAt,
		&commissionStatus,
		&commissionAmount,
		&commissionPaidBy,
		&commissionPaidAt,
		&loadsCompleted,
		&firstLoadCompletedAt,
		&salesAgentID,
		&e.CreatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if commissionStatus != nil {
		c := &workflow.CommissionState{
			Status:               workflow.CommissionStatus(*commissionStatus),
			PaidBy:               commissionPaidBy,
			PaidAt:               commissionPaidAt,
			FirstLoadCompletedAt: firstLoadCompletedAt,
			SalesAgentID:         salesAgentID,
		}
		if commissionAmount.Valid {
			a := commissionAmount.Decimal
			c.Amount = &a
		}
		if loadsCompleted != nil {
			c.LoadsCompleted = *loadsCompleted
		}
		e.Commission = c
	}

	return e, nil
}
