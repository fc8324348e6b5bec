package workflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Rizwan0994/haul-connect-sub002/internal/apperrors"
)

// Entity is the approval-workflow row for a carrier or dispatch. Business
// fields of the parent record live elsewhere; this is only the lifecycle.
type Entity struct {
	ID   string
	Kind EntityKind

	Status     Status
	IsDisabled bool

	ApprovedByManager  *string
	ManagerApprovedAt  *time.Time
	ApprovedByAccounts *string
	AccountsApprovedAt *time.Time

	RejectedBy      *string
	RejectedAt      *time.Time
	RejectionReason *string

	DisabledBy *string
	DisabledAt *time.Time

	// Commission is populated for carriers only.
	Commission *CommissionState

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommissionState is the derived financial state embedded in a carrier.
type CommissionState struct {
	Status               CommissionStatus
	Amount               *decimal.Decimal // set once, at confirmed_sale or later
	PaidBy               *string
	PaidAt               *time.Time
	LoadsCompleted       int
	FirstLoadCompletedAt *time.Time
	SalesAgentID         *string // immutable, set at carrier creation
}

// HistoryEntry is one immutable record in an entity's approval history.
type HistoryEntry struct {
	ID              string
	EntityID        string
	Action          Action
	ActionByUserID  string
	ActionAt        time.Time
	Notes           *string
	RejectionReason *string // present only when Action == rejected
}

// Event is the domain event emitted after a committed transition. Action is a
// plain string because commission events ("load_completed",
// "commission_paid") are emitted alongside the history actions.
type Event struct {
	EntityKind EntityKind `json:"entity_kind"`
	EntityID   string     `json:"entity_id"`
	Action     string     `json:"action"`
	ActorID    string     `json:"actor_id"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewEntity constructs a fresh entity in its initial lifecycle state. New
// entities always start at pending; carriers additionally start not_eligible.
// Unknown kinds fail closed.
func NewEntity(kind EntityKind, id, createdBy string, salesAgentID *string, now time.Time) (*Entity, error) {
	if !kind.IsValid() {
		return nil, apperrors.InvalidInput("entity_kind", "unknown entity kind "+string(kind))
	}
	if id == "" {
		id = uuid.NewString()
	}
	if createdBy == "" {
		return nil, apperrors.InvalidInput("created_by", "creating user is required")
	}

	e := &Entity{
		ID:        id,
		Kind:      kind,
		Status:    StatusPending,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if kind == KindCarrier {
		e.Commission = &CommissionState{
			Status:       CommissionNotEligible,
			SalesAgentID: salesAgentID,
		}
	}
	return e, nil
}

// CreationEntry is the history entry recorded together with a new entity.
func (e *Entity) CreationEntry(now time.Time) *HistoryEntry {
	return &HistoryEntry{
		EntityID:       e.ID,
		Action:         ActionCreated,
		ActionByUserID: e.CreatedBy,
		ActionAt:       now,
	}
}

// Snapshot captures the mutable lifecycle fields an update must be validated
// against. Persisting compares the stored row to the snapshot and fails with
// CONCURRENT_MODIFICATION on any drift.
type Snapshot struct {
	Status           Status
	IsDisabled       bool
	CommissionStatus CommissionStatus // zero value for dispatches
	LoadsCompleted   int
}

// Snapshot returns the entity's current snapshot.
func (e *Entity) Snapshot() Snapshot {
	s := Snapshot{Status: e.Status, IsDisabled: e.IsDisabled}
	if e.Commission != nil {
		s.CommissionStatus = e.Commission.Status
		s.LoadsCompleted = e.Commission.LoadsCompleted
	}
	return s
}
