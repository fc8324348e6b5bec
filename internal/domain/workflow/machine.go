package workflow

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rizwan0994/haul-connect-sub002/internal/apperrors"
)

// The transition methods mutate the entity in place and return the history
// entry that records the transition. Validation happens against the entity as
// loaded; persisting the result is guarded by a compare-and-swap on the same
// snapshot, so a transition can never commit against state it was not
// validated on.

func invalidTransition(e *Entity, requested Action) *apperrors.Error {
	return apperrors.Newf(apperrors.CodeInvalidTransition,
		"%s %s: cannot %s from status %q (disabled=%t)",
		e.Kind, e.ID, requested, e.Status, e.IsDisabled)
}

// ApproveAsManager moves pending → manager_approved.
func (e *Entity) ApproveAsManager(actorID string, notes *string, now time.Time) (*HistoryEntry, error) {
	if e.Status != StatusPending {
		return nil, invalidTransition(e, ActionManagerApproved)
	}
	e.Status = StatusManagerApproved
	e.ApprovedByManager = &actorID
	e.ManagerApprovedAt = &now
	e.UpdatedAt = now
	return &HistoryEntry{
		EntityID:       e.ID,
		Action:         ActionManagerApproved,
		ActionByUserID: actorID,
		ActionAt:       now,
		Notes:          notes,
	}, nil
}

// ApproveAsAccounts moves manager_approved → accounts_approved. Accounts
// approval can never be granted before manager approval. For carriers with
// completed loads the commission state is promoted in the same transition.
func (e *Entity) ApproveAsAccounts(actorID string, notes *string, now time.Time) (*HistoryEntry, error) {
	if e.Status != StatusManagerApproved {
		return nil, invalidTransition(e, ActionAccountsApproved)
	}
	e.Status = StatusAccountsApproved
	e.ApprovedByAccounts = &actorID
	e.AccountsApprovedAt = &now
	e.UpdatedAt = now
	e.promoteCommission()
	return &HistoryEntry{
		EntityID:       e.ID,
		Action:         ActionAccountsApproved,
		ActionByUserID: actorID,
		ActionAt:       now,
		Notes:          notes,
	}, nil
}

// Reject moves pending or manager_approved → rejected. The reason is
// mandatory and must not be blank.
func (e *Entity) Reject(actorID, reason string, now time.Time) (*HistoryEntry, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.New(apperrors.CodeMissingReason, "rejection reason is required")
	}
	if e.Status != StatusPending && e.Status != StatusManagerApproved {
		return nil, invalidTransition(e, ActionRejected)
	}
	e.Status = StatusRejected
	e.RejectedBy = &actorID
	e.RejectedAt = &now
	e.RejectionReason = &reason
	e.UpdatedAt = now
	return &HistoryEntry{
		EntityID:        e.ID,
		Action:          ActionRejected,
		ActionByUserID:  actorID,
		ActionAt:        now,
		RejectionReason: &reason,
	}, nil
}

// Disable sets the disabled flag without touching the approval status.
// Allowed from any state except already disabled.
func (e *Entity) Disable(actorID string, notes *string, now time.Time) (*HistoryEntry, error) {
	if e.IsDisabled {
		return nil, invalidTransition(e, ActionDisabled)
	}
	e.IsDisabled = true
	e.DisabledBy = &actorID
	e.DisabledAt = &now
	e.UpdatedAt = now
	return &HistoryEntry{
		EntityID:       e.ID,
		Action:         ActionDisabled,
		ActionByUserID: actorID,
		ActionAt:       now,
		Notes:          notes,
	}, nil
}

// Enable clears the disabled flag. The approval status is left untouched, so
// the entity resumes exactly the state it had when it was disabled.
func (e *Entity) Enable(actorID string, notes *string, now time.Time) (*HistoryEntry, error) {
	if !e.IsDisabled {
		return nil, invalidTransition(e, ActionEnabled)
	}
	e.IsDisabled = false
	e.DisabledBy = nil
	e.DisabledAt = nil
	e.UpdatedAt = now
	return &HistoryEntry{
		EntityID:       e.ID,
		Action:         ActionEnabled,
		ActionByUserID: actorID,
		ActionAt:       now,
		Notes:          notes,
	}, nil
}

// ── commission transitions ────────────────────────────────────────────────────

// OnLoadCompleted records a completed load for a carrier. The counter always
// advances; the 0→1 crossing stamps first_load_completed_at and promotes the
// commission state — to confirmed_sale when the carrier already holds accounts
// approval, otherwise only to pending (eligibility waits for approval to
// catch up).
func (e *Entity) OnLoadCompleted(now time.Time) error {
	if e.Kind != KindCarrier || e.Commission == nil {
		return apperrors.Newf(apperrors.CodeInvalidInput,
			"%s %s: load completion applies to carriers only", e.Kind, e.ID)
	}
	c := e.Commission
	c.LoadsCompleted++
	if c.LoadsCompleted == 1 {
		c.FirstLoadCompletedAt = &now
		if e.Status == StatusAccountsApproved {
			e.advanceCommission(CommissionConfirmedSale)
		} else {
			e.advanceCommission(CommissionPending)
		}
	}
	e.UpdatedAt = now
	return nil
}

// MarkPaid moves confirmed_sale → paid and records the amount. Amounts are
// currency values with at most two fractional digits.
func (e *Entity) MarkPaid(actorID string, amount decimal.Decimal, now time.Time) error {
	if e.Kind != KindCarrier || e.Commission == nil {
		return apperrors.Newf(apperrors.CodeInvalidInput,
			"%s %s: commission payout applies to carriers only", e.Kind, e.ID)
	}
	if amount.IsNegative() || amount.IsZero() {
		return apperrors.InvalidInput("amount", "commission amount must be positive")
	}
	if amount.Exponent() < -2 {
		return apperrors.InvalidInput("amount", "commission amount supports at most 2 decimal places")
	}
	c := e.Commission
	if c.Status != CommissionConfirmedSale {
		return apperrors.Newf(apperrors.CodeInvalidTransition,
			"carrier %s: cannot mark commission paid from status %q", e.ID, c.Status)
	}
	e.advanceCommission(CommissionPaid)
	c.Amount = &amount
	c.PaidBy = &actorID
	c.PaidAt = &now
	e.UpdatedAt = now
	return nil
}

// promoteCommission applies the retroactive confirmed-sale check: a carrier
// whose first load completed before accounts approval is promoted the moment
// approval lands.
func (e *Entity) promoteCommission() {
	if e.Kind != KindCarrier || e.Commission == nil {
		return
	}
	if e.Commission.LoadsCompleted > 0 && e.Commission.Status.Before(CommissionConfirmedSale) {
		e.advanceCommission(CommissionConfirmedSale)
	}
}

// advanceCommission moves the commission status forward only; regressions are
// silently refused so no code path can walk the ladder backwards.
func (e *Entity) advanceCommission(next CommissionStatus) {
	if e.Commission.Status.Before(next) {
		e.Commission.Status = next
	}
}
