package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Rizwan0994/haul-connect-sub002/internal/apperrors"
	"github.com/Rizwan0994/haul-connect-sub002/internal/database"
	"github.com/Rizwan0994/haul-connect-sub002/internal/domain/workflow"
)

// AuditRepository reads the immutable approval history. Appends happen inside
// the entity transactions via appendHistoryTx; the table carries a trigger
// blocking UPDATE and DELETE, so insert is the only mutation that can exist.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// ListFor returns the full history for an entity, oldest first. Ties on
// action_at resolve by insertion order (seq).
func (r *AuditRepository) ListFor(ctx context.Context, entityID string) ([]*workflow.HistoryEntry, error) {
	query := `
		SELECT id, entity_id, action, action_by_user_id, action_at,
		       notes, rejection_reason
		FROM approval_history
		WHERE entity_id = $1
		ORDER BY action_at ASC, seq ASC
	`

	rows, err := r.db.Query(ctx, query, entityID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "failed to list approval history")
	}
	defer rows.Close()

	entries := make([]*workflow.HistoryEntry, 0)
	for rows.Next() {
		entry := &workflow.HistoryEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.EntityID,
			&entry.Action,
			&entry.ActionByUserID,
			&entry.ActionAt,
			&entry.Notes,
			&entry.RejectionReason,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStorage, "failed to scan history entry")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "failed to read approval history")
	}
	return entries, nil
}

// appendHistoryTx inserts one history entry within the caller's transaction
// and stamps the generated id back onto the entry.
func appendHistoryTx(ctx context.Context, tx pgx.Tx, entry *workflow.HistoryEntry) error {
	query := `
		INSERT INTO approval_history
		    (entity_id, action, action_by_user_id, action_at, notes, rejection_reason)
		VALUES ($1, $2::history_action, $3, $4, $5, $6)
		RETURNING id
	`

	err := tx.QueryRow(ctx, query,
		entry.EntityID,
		entry.Action,
		entry.ActionByUserID,
		entry.ActionAt,
		entry.Notes,
		entry.RejectionReason,
	).Scan(&entry.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to append history entry")
	}
	return nil
}
