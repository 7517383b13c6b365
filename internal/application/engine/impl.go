package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/application/planner"
	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/event"
	"github.com/garyjia/approval-engine/internal/domain/rule"
)

type engineImpl struct {
	planner    *planner.Planner
	stateRepo  port.StateRepository
	dispatcher dispatcher.Dispatcher
	scheduler  port.TimeoutScheduler
	logger     *zap.Logger
	now        func() time.Time

	// Per-expense critical sections. The registry lock only guards the map;
	// each expense's lock is held for the whole mutation.
	mu     sync.Mutex
	states map[string]*approval.State
	locks  map[string]*sync.Mutex
}

// Option configures the engine
type Option func(*engineImpl)

// WithClock overrides the time source, used by tests for deterministic
// timestamps
func WithClock(now func() time.Time) Option {
	return func(e *engineImpl) {
		e.now = now
	}
}

// New creates the approval engine
func New(
	pl *planner.Planner,
	stateRepo port.StateRepository,
	disp dispatcher.Dispatcher,
	scheduler port.TimeoutScheduler,
	logger *zap.Logger,
	opts ...Option,
) Engine {
	e := &engineImpl{
		planner:    pl,
		stateRepo:  stateRepo,
		dispatcher: disp,
		scheduler:  scheduler,
		logger:     logger,
		now:        time.Now,
		states:     make(map[string]*approval.State),
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// lockFor returns the exclusive lock for one expense, creating it on first use
func (e *engineImpl) lockFor(expenseID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[expenseID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[expenseID] = lock
	}
	return lock
}

func (e *engineImpl) state(expenseID string) *approval.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[expenseID]
}

func (e *engineImpl) storeState(st *approval.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states[st.ExpenseID] = st
}

// Submit matches a rule, builds the plan, and starts the approval process.
// Resubmitting an expense already under review is idempotent and returns the
// existing snapshot.
func (e *engineImpl) Submit(ctx context.Context, expense rule.Expense, rules []rule.ApprovalRule) (*Snapshot, error) {
	lock := e.lockFor(expense.ID)
	lock.Lock()
	defer lock.Unlock()

	if existing := e.state(expense.ID); existing != nil {
		e.logger.Info("Expense already submitted",
			zap.String("expense_id", expense.ID),
			zap.String("status", existing.Status.String()))
		return snapshotOf(existing), nil
	}

	matched, err := rule.SelectRule(expense, rules)
	if err != nil {
		return nil, &planner.PlanningError{
			Code:   planner.CodeNoMatchingRule,
			Detail: fmt.Sprintf("expense %s: amount %.2f category %q", expense.ID, expense.Amount, expense.Category),
			Err:    err,
		}
	}

	plan, err := e.planner.BuildPlan(ctx, matched, expense)
	if err != nil {
		e.logger.Error("Planning failed",
			zap.String("expense_id", expense.ID),
			zap.String("rule_id", matched.ID),
			zap.Error(err))
		return nil, err
	}

	now := e.now()
	st := approval.NewState(expense, *plan, now)
	e.emit(ctx, st, event.New(event.TypeSubmitted, st.ExpenseID, st.RuleID, 0, map[string]interface{}{
		"rule_name": matched.Name,
		"amount":    expense.Amount,
		"levels":    len(plan.Levels),
	}))

	effects := st.Start(now)
	e.applyEffects(ctx, st, effects)
	e.storeState(st)
	e.persist(ctx, st)

	e.logger.Info("Expense submitted for approval",
		zap.String("expense_id", expense.ID),
		zap.String("rule_id", matched.ID),
		zap.String("status", st.Status.String()),
		zap.Ints("active_levels", st.ActiveLevels()))
	return snapshotOf(st), nil
}

// Respond records one approver's decision. Late, duplicate, or unauthorized
// responses are silent no-ops and return the current snapshot unchanged.
func (e *engineImpl) Respond(ctx context.Context, expenseID string, level int, approverID string, decision approval.Decision, comment string) (*Snapshot, error) {
	lock := e.lockFor(expenseID)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.load(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	effects, err := st.RecordResponse(level, approverID, decision, comment, e.now())
	if err != nil {
		// Threshold misconfiguration slipping past rule validation is a
		// configuration-integrity fault, surfaced and never coerced.
		e.logger.Error("Configuration integrity fault during level evaluation",
			zap.String("expense_id", expenseID),
			zap.Int("level", level),
			zap.Error(err))
		return nil, err
	}
	if len(effects) == 0 {
		return snapshotOf(st), nil
	}

	e.applyEffects(ctx, st, effects)
	e.persist(ctx, st)
	return snapshotOf(st), nil
}

// Escalate handles an escalation timeout for a level. A level escalates at
// most once; a second timeout surfaces a stalled-approval event instead.
func (e *engineImpl) Escalate(ctx context.Context, expenseID string, level int) (*Snapshot, error) {
	lock := e.lockFor(expenseID)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.load(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	switch st.EscalationState(level) {
	case approval.EscalationNone:
		return snapshotOf(st), nil

	case approval.EscalationExhausted:
		effects := st.MarkStalled(level, e.now())
		e.applyEffects(ctx, st, effects)
		e.persist(ctx, st)
		e.logger.Warn("Approval stalled after escalation",
			zap.String("expense_id", expenseID),
			zap.Int("level", level))
		return snapshotOf(st), nil
	}

	identity, err := e.planner.ResolveRole(ctx, st.Expense.SubmitterID, st.Plan.Escalation.EscalateTo)
	if err != nil {
		e.logger.Error("Failed to resolve escalation approver",
			zap.String("expense_id", expenseID),
			zap.Int("level", level),
			zap.String("role", st.Plan.Escalation.EscalateTo.String()),
			zap.Error(err))
		return nil, err
	}

	extra := approval.PlannedApprover{
		UserID:   identity.UserID,
		Name:     identity.Name,
		Role:     st.Plan.Escalation.EscalateTo,
		Required: true,
	}
	effects := st.Escalate(level, extra, e.now())
	e.applyEffects(ctx, st, effects)
	e.persist(ctx, st)

	e.logger.Info("Level escalated",
		zap.String("expense_id", expenseID),
		zap.Int("level", level),
		zap.String("escalated_to", identity.UserID))
	return snapshotOf(st), nil
}

// Cancel withdraws an expense from review; a no-op when already terminal
func (e *engineImpl) Cancel(ctx context.Context, expenseID string) (*Snapshot, error) {
	lock := e.lockFor(expenseID)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.load(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	effects := st.Cancel(e.now())
	if len(effects) == 0 {
		return snapshotOf(st), nil
	}
	e.applyEffects(ctx, st, effects)
	e.persist(ctx, st)
	return snapshotOf(st), nil
}

// GetState returns the current approval state for an expense
func (e *engineImpl) GetState(ctx context.Context, expenseID string) (*approval.State, error) {
	lock := e.lockFor(expenseID)
	lock.Lock()
	defer lock.Unlock()
	return e.load(ctx, expenseID)
}

// Restore reloads in-flight states and reschedules escalation deadlines
func (e *engineImpl) Restore(ctx context.Context) error {
	states, err := e.stateRepo.ListInReview(ctx)
	if err != nil {
		return fmt.Errorf("restore in-review states: %w", err)
	}
	for _, st := range states {
		e.storeState(st)
		for _, lvl := range st.Levels {
			if lvl.Status == approval.LevelActive && lvl.Deadline != nil && !lvl.Stalled {
				e.scheduler.Schedule(st.ExpenseID, lvl.Number, *lvl.Deadline)
			}
		}
	}
	if len(states) > 0 {
		e.logger.Info("Restored in-flight approvals", zap.Int("count", len(states)))
	}
	return nil
}

// load fetches the state from memory, falling back to the repository
func (e *engineImpl) load(ctx context.Context, expenseID string) (*approval.State, error) {
	if st := e.state(expenseID); st != nil {
		return st, nil
	}
	st, err := e.stateRepo.GetByExpenseID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExpense, expenseID)
	}
	e.storeState(st)
	return st, nil
}

// persist saves a snapshot of the mutated state. Persistence failures are
// logged, not propagated: the in-memory state is authoritative for the
// process lifetime and the audit trail has already been written.
func (e *engineImpl) persist(ctx context.Context, st *approval.State) {
	if err := e.stateRepo.Save(ctx, st); err != nil {
		e.logger.Error("Failed to persist approval state",
			zap.String("expense_id", st.ExpenseID),
			zap.Error(err))
	}
}

// applyEffects turns state transition effects into audit events and timer
// scheduling
func (e *engineImpl) applyEffects(ctx context.Context, st *approval.State, effects []approval.Effect) {
	for _, eff := range effects {
		switch eff.Kind {
		case approval.EffectAutoApproved:
			e.emit(ctx, st, event.New(event.TypeAutoApproved, st.ExpenseID, st.RuleID, 0, nil))

		case approval.EffectLevelActivated:
			payload := map[string]interface{}{
				"approvers": levelApprovers(st, eff.Level),
			}
			if !eff.Deadline.IsZero() {
				payload["deadline"] = eff.Deadline
				e.scheduler.Schedule(st.ExpenseID, eff.Level, eff.Deadline)
			}
			e.emit(ctx, st, event.New(event.TypeLevelActivated, st.ExpenseID, st.RuleID, eff.Level, payload))

		case approval.EffectResponseRecorded:
			e.emit(ctx, st, event.New(event.TypeResponseRecorded, st.ExpenseID, st.RuleID, eff.Level, map[string]interface{}{
				"approver_id": eff.Response.ApproverID,
				"decision":    string(eff.Response.Decision),
				"comment":     eff.Response.Comment,
			}))

		case approval.EffectLevelResolved:
			e.scheduler.Cancel(st.ExpenseID, eff.Level)
			e.emit(ctx, st, event.New(event.TypeLevelResolved, st.ExpenseID, st.RuleID, eff.Level, map[string]interface{}{
				"outcome": string(eff.Outcome),
			}))

		case approval.EffectEscalated:
			e.scheduler.Schedule(st.ExpenseID, eff.Level, eff.Deadline)
			e.emit(ctx, st, event.New(event.TypeEscalated, st.ExpenseID, st.RuleID, eff.Level, map[string]interface{}{
				"deadline":  eff.Deadline,
				"approvers": levelApprovers(st, eff.Level),
			}))

		case approval.EffectStalled:
			e.scheduler.Cancel(st.ExpenseID, eff.Level)
			e.emit(ctx, st, event.New(event.TypeStalled, st.ExpenseID, st.RuleID, eff.Level, map[string]interface{}{
				"approvers": levelApprovers(st, eff.Level),
			}))

		case approval.EffectResolved:
			e.cancelAllTimers(st)
			e.emit(ctx, st, event.New(event.TypeResolved, st.ExpenseID, st.RuleID, 0, map[string]interface{}{
				"status":       eff.Status.String(),
				"submitter_id": st.Expense.SubmitterID,
			}))

		case approval.EffectCancelled:
			e.cancelAllTimers(st)
			e.emit(ctx, st, event.New(event.TypeCancelled, st.ExpenseID, st.RuleID, 0, map[string]interface{}{
				"submitter_id": st.Expense.SubmitterID,
			}))
		}
	}
}

func (e *engineImpl) cancelAllTimers(st *approval.State) {
	for _, lvl := range st.Levels {
		e.scheduler.Cancel(st.ExpenseID, lvl.Number)
	}
}

// emit publishes one audit event. Handler failures are logged and swallowed:
// the state transition has already happened and must not be rolled back.
func (e *engineImpl) emit(ctx context.Context, st *approval.State, evt *event.Event) {
	if err := e.dispatcher.Dispatch(ctx, evt); err != nil {
		e.logger.Error("Failed to dispatch event",
			zap.String("expense_id", st.ExpenseID),
			zap.String("event_type", evt.Type.String()),
			zap.Error(err))
	}
}

func levelApprovers(st *approval.State, level int) []string {
	planned := st.Plan.Level(level)
	if planned == nil {
		return nil
	}
	ids := make([]string, 0, len(planned.Approvers))
	for _, a := range planned.Approvers {
		ids = append(ids, a.UserID)
	}
	return ids
}
