package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rizwan0994/haul-connect-sub002/internal/apperrors"
	"github.com/Rizwan0994/haul-connect-sub002/internal/domain/workflow"
	"github.com/Rizwan0994/haul-connect-sub002/internal/logger"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "disabled", ServiceName: "test"})
}

// ── in-memory fakes ───────────────────────────────────────────────────────────

// memStore backs EntityStore and AuditStore with the same compare-and-swap
// contract the repository implements: ApplyTransition fails with
// CONCURRENT_MODIFICATION when the stored snapshot no longer matches prev,
// and the entity update plus history append commit together or not at all.
type memStore struct {
	mu       sync.Mutex
	entities map[string]*workflow.Entity
	history  map[string][]*workflow.HistoryEntry
	seq      int

	// beforeApply runs under the lock right before each CAS check, letting a
	// test interleave a competing write.
	beforeApply func(s *memStore)
}

func newMemStore() *memStore {
	return &memStore{
		entities: make(map[string]*workflow.Entity),
		history:  make(map[string][]*workflow.HistoryEntry),
	}
}

func cloneEntity(e *workflow.Entity) *workflow.Entity {
	out := *e
	clonePtr := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	cloneTime := func(p *time.Time) *time.Time {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	out.ApprovedByManager = clonePtr(e.ApprovedByManager)
	out.ManagerApprovedAt = cloneTime(e.ManagerApprovedAt)
	out.ApprovedByAccounts = clonePtr(e.ApprovedByAccounts)
	out.AccountsApprovedAt = cloneTime(e.AccountsApprovedAt)
	out.RejectedBy = clonePtr(e.RejectedBy)
	out.RejectedAt = cloneTime(e.RejectedAt)
	out.RejectionReason = clonePtr(e.RejectionReason)
	out.DisabledBy = clonePtr(e.DisabledBy)
	out.DisabledAt = cloneTime(e.DisabledAt)
	if e.Commission != nil {
		c := *e.Commission
		c.PaidBy = clonePtr(e.Commission.PaidBy)
		c.PaidAt = cloneTime(e.Commission.PaidAt)
		c.FirstLoadCompletedAt = cloneTime(e.Commission.FirstLoadCompletedAt)
		c.SalesAgentID = clonePtr(e.Commission.SalesAgentID)
		if e.Commission.Amount != nil {
			a := *e.Commission.Amount
			c.Amount = &a
		}
		out.Commission = &c
	}
	return &out
}

func (s *memStore) Create(ctx context.Context, e *workflow.Entity, entry *workflow.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = cloneEntity(e)
	s.appendLocked(entry)
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*workflow.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, apperrors.NotFound("workflow entity", id)
	}
	return cloneEntity(e), nil
}

func (s *memStore) ApplyTransition(ctx context.Context, e *workflow.Entity, prev workflow.Snapshot, entry *workflow.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beforeApply != nil {
		hook := s.beforeApply
		s.beforeApply = nil
		hook(s)
	}
	stored, ok := s.entities[e.ID]
	if !ok {
		return apperrors.NotFound("workflow entity", e.ID)
	}
	if stored.Snapshot() != prev {
		return apperrors.Newf(apperrors.CodeConcurrentModification,
			"entity %s was modified concurrently", e.ID)
	}
	s.entities[e.ID] = cloneEntity(e)
	if entry != nil {
		s.appendLocked(entry)
	}
	return nil
}

func (s *memStore) ListFor(ctx context.Context, entityID string) ([]*workflow.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*workflow.HistoryEntry(nil), s.history[entityID]...), nil
}

func (s *memStore) appendLocked(entry *workflow.HistoryEntry) {
	s.seq++
	entry.ID = fmt.Sprintf("entry-%d", s.seq)
	cp := *entry
	s.history[entry.EntityID] = append(s.history[entry.EntityID], &cp)
}

func (s *memStore) historyLen(entityID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history[entityID])
}

// fakeGate grants the permissions in allow; a non-nil err simulates an
// unreachable permissions service.
type fakeGate struct {
	allow map[string]bool
	err   error
	calls []string
}

func (g *fakeGate) Check(ctx context.Context, actorID, permission string) (bool, error) {
	g.calls = append(g.calls, actorID+"|"+permission)
	if g.err != nil {
		return false, g.err
	}
	return g.allow[permission], nil
}

func allowAll() *fakeGate {
	return &fakeGate{allow: map[string]bool{
		"carrier.approval.manager":   true,
		"carrier.approval.accounts":  true,
		"carrier.approval.reject":    true,
		"carrier.approval.disable":   true,
		"carrier.approval.enable":    true,
		"dispatch.approval.manager":  true,
		"dispatch.approval.accounts": true,
		"dispatch.approval.reject":   true,
		"dispatch.approval.disable":  true,
		"dispatch.approval.enable":   true,
		"carrier.commission.paid":    true,
	}}
}

type capturingEmitter struct {
	mu     sync.Mutex
	events []*workflow.Event
}

func (c *capturingEmitter) Emit(ctx context.Context, event *workflow.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturingEmitter) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Action
	}
	return out
}

// ── fixtures ──────────────────────────────────────────────────────────────────

type workflowFixture struct {
	store   *memStore
	gate    *fakeGate
	emitter *capturingEmitter
	svc     *WorkflowService
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	f := &workflowFixture{
		store:   newMemStore(),
		gate:    allowAll(),
		emitter: &capturingEmitter{},
	}
	f.svc = NewWorkflowService(f.store, f.store, f.gate, f.emitter, testLogger())
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *workflowFixture) register(t *testing.T, kind workflow.EntityKind) *workflow.Entity {
	t.Helper()
	var agent *string
	if kind == workflow.KindCarrier {
		a := "agent-1"
		agent = &a
	}
	e, err := f.svc.RegisterEntity(context.Background(), kind, "", "creator-1", agent)
	require.NoError(t, err)
	return e
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestRegisterEntity(t *testing.T) {
	f := newWorkflowFixture(t)
	e := f.register(t, workflow.KindCarrier)

	assert.Equal(t, workflow.StatusPending, e.Status)
	history, err := f.svc.GetHistory(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, workflow.ActionCreated, history[0].Action)
	assert.Equal(t, "creator-1", history[0].ActionByUserID)
	assert.Equal(t, []string{"created"}, f.emitter.actions())
}

func TestApprovalChain(t *testing.T) {
	f := newWorkflowFixture(t)
	e := f.register(t, workflow.KindDispatch)
	ctx := context.Background()

	res, err := f.svc.ApproveAsManager(ctx, e.ID, "mgr-1", nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusManagerApproved, res.Entity.Status)
	assert.NotEmpty(t, res.HistoryEntryID)

	res, err = f.svc.ApproveAsAccounts(ctx, e.ID, "acct-1", nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusAccountsApproved, res.Entity.Status)

	history, err := f.svc.GetHistory(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, workflow.ActionManagerApproved, history[1].Action)
	assert.Equal(t, workflow.ActionAccountsApproved, history[2].Action)
	assert.Equal(t, []string{"created", "manager_approved", "accounts_approved"}, f.emitter.actions())
}

func TestSkipLevelApprovalFails(t *testing.T) {
	f := newWorkflowFixture(t)
	e := f.register(t, workflow.KindDispatch)

	_, err := f.svc.ApproveAsAccounts(context.Background(), e.ID, "acct-1", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidTransition, apperrors.CodeOf(err))

	// Failed transitions leave no trace.
	assert.Equal(t, 1, f.store.historyLen(e.ID))
	stored, err := f.svc.GetEntity(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, stored.Status)
}

func TestUnauthorizedTouchesNothing(t *testing.T) {
	f := newWorkflowFixture(t)
	e := f.register(t, workflow.KindCarrier)
	f.gate.allow["carrier.approval.manager"] = false

	_, err := f.svc.ApproveAsManager(context.Background(), e.ID, "intruder-1", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))

	assert.Equal(t, 1, f.store.historyLen(e.ID))
	stored, err := f.svc.GetEntity(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, stored.Status)
	assert.Equal(t, []string{"created"}, f.emitter.actions(), "no event for denied attempt")
}

func TestPermissionGateUnavailableIsNotDenial(t *testing.T) {
	f := newWorkflowFixture(t)
	e := f.register(t, workflow.KindCarrier)
	f.gate.err = errors.New("connection refused")

	_, err := f.svc.ApproveAsManager(context.Background(), e.ID, "mgr-1", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeStorage, apperrors.CodeOf(err))
	assert.NotEqual(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
}

func TestPermissionIsScopedToEntityKind(t *testing.T) {
	f := newWorkflowFixture(t)
	f.gate.allow = map[string]bool{"dispatch.approval.manager": true}
	e := f.register(t, workflow.KindCarrier)

	_, err := f.svc.ApproveAsManager(context.Background(), e.ID, "mgr-1", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
	assert.Contains(t, f.gate.calls, "mgr-1|carrier.approval.manager")
}

func TestRejectRequiresReason(t *testing.T) {
	f := newWorkflowFixture(t)
	e := f.register(t, workflow.KindDispatch)

	_, err := f.svc.Reject(context.Background(), e.ID, "rev-1", "   ")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMissingReason, apperrors.CodeOf(err))
	assert.Equal(t, 1, f.store.historyLen(e.ID))

	res, err := f.svc.Reject(context.Background(), e.ID, "rev-1", "insurance lapsed")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejected, res.Entity.Status)

	history, err := f.svc.GetHistory(context.Background(), e.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	require.NotNil(t, last.RejectionReason)
	assert.Equal(t, "insurance lapsed", *last.RejectionReason)
}

func TestDisableEnableRoundTrip(t *testing.T) {
	f := newWorkflowFixture(t)
	e := f.register(t, workflow.KindDispatch)
	ctx := context.Background()

	_, err := f.svc.ApproveAsManager(ctx, e.ID, "mgr-1", nil)
	require.NoError(t, err)
	_, err = f.svc.Disable(ctx, e.ID, "adm-1", nil)
	require.NoError(t, err)

	stored, err := f.svc.GetEntity(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDisabled)
	assert.Equal(t, workflow.StatusManagerApproved, stored.Status)

	res, err := f.svc.Enable(ctx, e.ID, "adm-1", nil)
	require.NoError(t, err)
	assert.False(t, res.Entity.IsDisabled)
	assert.Equal(t, workflow.StatusManagerApproved, res.Entity.Status)

	// The overlay round-trip is fully recorded and replayable.
	history, err := f.svc.GetHistory(ctx, e.ID)
	require.NoError(t, err)
	replayed, err := workflow.Replay(history)
	require.NoError(t, err)
	assert.Equal(t, workflow.ReplayResult{Status: workflow.StatusManagerApproved}, replayed)
}

func TestTransitionRetriesOnceOnConflict(t *testing.T) {
	t.Run("benign conflict succeeds on retry", func(t *testing.T) {
		f := newWorkflowFixture(t)
		e := f.register(t, workflow.KindDispatch)

		// Interleaved disable flips the snapshot so the first CAS fails, but a
		// manager approval is still valid against the fresh state.
		f.store.beforeApply = func(s *memStore) {
			stored := s.entities[e.ID]
			stored.IsDisabled = true
		}

		res, err := f.svc.ApproveAsManager(context.Background(), e.ID, "mgr-1", nil)
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusManagerApproved, res.Entity.Status)
		assert.True(t, res.Entity.IsDisabled, "retry validated against the fresh state")
	})

	t.Run("conflict that invalidates the intent surfaces invalid transition", func(t *testing.T) {
		f := newWorkflowFixture(t)
		e := f.register(t, workflow.KindDispatch)

		// The competing writer rejects the entity, so the retried manager
		// approval re-validates and fails.
		f.store.beforeApply = func(s *memStore) {
			stored := s.entities[e.ID]
			stored.Status = workflow.StatusRejected
		}

		_, err := f.svc.ApproveAsManager(context.Background(), e.ID, "mgr-1", nil)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidTransition, apperrors.CodeOf(err))
	})
}

func TestConcurrentSameTransitionOneWinner(t *testing.T) {
	f := newWorkflowFixture(t)
	e := f.register(t, workflow.KindDispatch)

	// The loser's first CAS fails, and its retry re-validates against the
	// winner's committed state and reports an invalid transition.
	f.store.beforeApply = func(s *memStore) {
		stored := s.entities[e.ID]
		stored.Status = workflow.StatusManagerApproved
	}

	_, err := f.svc.ApproveAsManager(context.Background(), e.ID, "mgr-2", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidTransition, apperrors.CodeOf(err))

	// Exactly one history entry beyond creation would exist had the winner run
	// through this store; the loser added none.
	assert.Equal(t, 1, f.store.historyLen(e.ID))
}

func TestGetEntityNotFound(t *testing.T) {
	f := newWorkflowFixture(t)
	_, err := f.svc.GetEntity(context.Background(), "missing-id")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestNilEmitterIsSafe(t *testing.T) {
	store := newMemStore()
	svc := NewWorkflowService(store, store, allowAll(), nil, testLogger())
	svc.now = func() time.Time { return testNow }

	e, err := svc.RegisterEntity(context.Background(), workflow.KindDispatch, "", "creator-1", nil)
	require.NoError(t, err)
	_, err = svc.ApproveAsManager(context.Background(), e.ID, "mgr-1", nil)
	require.NoError(t, err)
}
