package workflow

// EntityKind identifies which approvable record a workflow row belongs to.
type EntityKind string

const (
	KindCarrier  EntityKind = "carrier"
	KindDispatch EntityKind = "dispatch"
)

var validKinds = map[EntityKind]bool{
	KindCarrier:  true,
	KindDispatch: true,
}

// IsValid reports whether the kind is known. Unknown values are rejected at
// the boundary rather than coerced.
func (k EntityKind) IsValid() bool { return validKinds[k] }

func (k EntityKind) String() string { return string(k) }

// Status is the approval state of an entity. Disablement is not a Status; it
// is an orthogonal flag on the entity that survives alongside the status.
type Status string

const (
	StatusPending          Status = "pending"
	StatusManagerApproved  Status = "manager_approved"
	StatusAccountsApproved Status = "accounts_approved"
	StatusRejected         Status = "rejected"
)

var validStatuses = map[Status]bool{
	StatusPending:          true,
	StatusManagerApproved:  true,
	StatusAccountsApproved: true,
	StatusRejected:         true,
}

// IsValid reports whether the status is a known approval status.
func (s Status) IsValid() bool { return validStatuses[s] }

// IsTerminal reports whether no further approval transitions are possible.
// Rejected is terminal outright; accounts_approved is terminal for the
// approval ladder (disable/enable still apply to both).
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusAccountsApproved
}

func (s Status) String() string { return string(s) }

// Action is one recorded lifecycle event.
type Action string

const (
	ActionCreated          Action = "created"
	ActionManagerApproved  Action = "manager_approved"
	ActionAccountsApproved Action = "accounts_approved"
	ActionRejected         Action = "rejected"
	ActionDisabled         Action = "disabled"
	ActionEnabled          Action = "enabled"
)

var validActions = map[Action]bool{
	ActionCreated:          true,
	ActionManagerApproved:  true,
	ActionAccountsApproved: true,
	ActionRejected:         true,
	ActionDisabled:         true,
	ActionEnabled:          true,
}

// IsValid reports whether the action is a known history action.
func (a Action) IsValid() bool { return validActions[a] }

func (a Action) String() string { return string(a) }

// CommissionStatus is the derived commission-eligibility state of a carrier.
// It only ever advances along not_eligible → pending → confirmed_sale → paid.
type CommissionStatus string

const (
	CommissionNotEligible   CommissionStatus = "not_eligible"
	CommissionPending       CommissionStatus = "pending"
	CommissionConfirmedSale CommissionStatus = "confirmed_sale"
	CommissionPaid          CommissionStatus = "paid"
)

var commissionRank = map[CommissionStatus]int{
	CommissionNotEligible:   0,
	CommissionPending:       1,
	CommissionConfirmedSale: 2,
	CommissionPaid:          3,
}

// IsValid reports whether the commission status is known.
func (c CommissionStatus) IsValid() bool {
	_, ok := commissionRank[c]
	return ok
}

// Before reports whether c precedes other in the commission ladder.
func (c CommissionStatus) Before(other CommissionStatus) bool {
	return commissionRank[c] < commissionRank[other]
}

func (c CommissionStatus) String() string { return string(c) }
