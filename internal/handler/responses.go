package handler

import (
	"time"

	"github.com/Rizwan0994/haul-connect-sub002/internal/domain/workflow"
)

type entityResponse struct {
	ID         string `json:"id"`
	EntityKind string `json:"entity_kind"`
	Status     string `json:"approval_status"`
	IsDisabled bool   `json:"is_disabled"`

	ApprovedByManager  *string    `json:"approved_by_manager,omitempty"`
	ManagerApprovedAt  *time.Time `json:"manager_approved_at,omitempty"`
	ApprovedByAccounts *string    `json:"approved_by_accounts,omitempty"`
	AccountsApprovedAt *time.Time `json:"accounts_approved_at,omitempty"`

	RejectedBy      *string    `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	DisabledBy *string    `json:"disabled_by,omitempty"`
	DisabledAt *time.Time `json:"disabled_at,omitempty"`

	Commission *commissionResponse `json:"commission,omitempty"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type commissionResponse struct {
	Status               string     `json:"status"`
	Amount               *string    `json:"amount,omitempty"`
	PaidBy               *string    `json:"paid_by,omitempty"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	LoadsCompleted       int        `json:"loads_completed"`
	FirstLoadCompletedAt *time.Time `json:"first_load_completed_at,omitempty"`
	SalesAgentID         *string    `json:"sales_agent_id,omitempty"`
}

type historyEntryResponse struct {
	ID              string     `json:"id"`
	EntityID        string     `json:"entity_id"`
	Action          string     `json:"action"`
	ActionByUserID  string     `json:"action_by_user_id"`
	ActionAt        time.Time  `json:"action_at"`
	Notes           *string    `json:"notes,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
}

func toHistoryResponse(entries []*workflow.HistoryEntry) []*historyEntryResponse {
	out := make([]*historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, &historyEntryResponse{
			ID:              e.ID,
			EntityID:        e.EntityID,
			Action:          e.Action.String(),
			ActionByUserID:  e.ActionByUserID,
			ActionAt:        e.ActionAt,
			Notes:           e.Notes,
			RejectionReason: e.RejectionReason,
		})
	}
	return out
}

func toEntityResponse(e *workflow.Entity) *entityResponse {
	resp := &entityResponse{
		ID:                 e.ID,
		EntityKind:         e.Kind.String(),
		Status:             e.Status.String(),
		IsDisabled:         e.IsDisabled,
		ApprovedByManager:  e.ApprovedByManager,
		ManagerApprovedAt:  e.ManagerApprovedAt,
		ApprovedByAccounts: e.ApprovedByAccounts,
		AccountsApprovedAt: e.AccountsApprovedAt,
		RejectedBy:         e.RejectedBy,
		RejectedAt:         e.RejectedAt,
		RejectionReason:    e.RejectionReason,
		DisabledBy:         e.DisabledBy,
		DisabledAt:         e.DisabledAt,
		CreatedBy:          e.CreatedBy,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
	if e.Commission != nil {
		c := &commissionResponse{
			Status:               e.Commission.Status.String(),
			PaidBy:               e.Commission.PaidBy,
			PaidAt:               e.Commission.PaidAt,
			LoadsCompleted:       e.Commission.LoadsCompleted,
			FirstLoadCompletedAt: e.Commission.FirstLoadCompletedAt,
			SalesAgentID:         e.Commission.SalesAgentID,
		}
		if e.Commission.Amount != nil {
			a := e.Commission.Amount.StringFixed(2)
			c.Amount = &a
		}
		resp.Commission = c
	}
	return resp
}
