package workflow

import (
	"github.com/Rizwan0994/haul-connect-sub002/internal/apperrors"
)

// ReplayResult is the read-model state reconstructed from a history.
type ReplayResult struct {
	Status     Status
	IsDisabled bool
}

// Replay folds an ordered approval history back into the approval state it
// describes. The history is append-only, so replaying it from the created
// entry must always land on the entity's current status and disabled flag;
// any sequence that could not have been produced by the state machine is
// reported as corrupt.
func Replay(entries []*HistoryEntry) (ReplayResult, error) {
	var res ReplayResult
	if len(entries) == 0 {
		return res, apperrors.New(apperrors.CodeInvalidInput, "history is empty")
	}
	if entries[0].Action != ActionCreated {
		return res, apperrors.Newf(apperrors.CodeInvalidInput,
			"history does not start with %q (got %q)", ActionCreated, entries[0].Action)
	}

	res.Status = StatusPending

	for i, entry := range entries[1:] {
		ok := false
		switch entry.Action {
		case ActionManagerApproved:
			ok = res.Status == StatusPending
			res.Status = StatusManagerApproved
		case ActionAccountsApproved:
			ok = res.Status == StatusManagerApproved
			res.Status = StatusAccountsApproved
		case ActionRejected:
			ok = res.Status == StatusPending || res.Status == StatusManagerApproved
			res.Status = StatusRejected
		case ActionDisabled:
			ok = !res.IsDisabled
			res.IsDisabled = true
		case ActionEnabled:
			ok = res.IsDisabled
			res.IsDisabled = false
		}
		if !ok {
			return ReplayResult{}, apperrors.Newf(apperrors.CodeInvalidInput,
				"corrupt history: entry %d action %q is not reachable", i+1, entry.Action)
		}
	}
	return res, nil
}
