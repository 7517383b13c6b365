package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approval-engine/internal/application/engine"
	"github.com/garyjia/approval-engine/internal/application/planner"
	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/event"
	"github.com/garyjia/approval-engine/internal/domain/rule"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockEngine implements engine.Engine with overridable functions
type mockEngine struct {
	submitFunc  func(ctx context.Context, expense rule.Expense, rules []rule.ApprovalRule) (*engine.Snapshot, error)
	respondFunc func(ctx context.Context, expenseID string, level int, approverID string, decision approval.Decision, comment string) (*engine.Snapshot, error)
	cancelFunc  func(ctx context.Context, expenseID string) (*engine.Snapshot, error)
	getFunc     func(ctx context.Context, expenseID string) (*approval.State, error)
}

func (m *mockEngine) Submit(ctx context.Context, expense rule.Expense, rules []rule.ApprovalRule) (*engine.Snapshot, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, expense, rules)
	}
	return &engine.Snapshot{ExpenseID: expense.ID, Status: workflow.StateInReview}, nil
}

func (m *mockEngine) Respond(ctx context.Context, expenseID string, level int, approverID string, decision approval.Decision, comment string) (*engine.Snapshot, error) {
	if m.respondFunc != nil {
		return m.respondFunc(ctx, expenseID, level, approverID, decision, comment)
	}
	return &engine.Snapshot{ExpenseID: expenseID, Status: workflow.StateInReview}, nil
}

func (m *mockEngine) Escalate(ctx context.Context, expenseID string, level int) (*engine.Snapshot, error) {
	return &engine.Snapshot{ExpenseID: expenseID}, nil
}

func (m *mockEngine) Cancel(ctx context.Context, expenseID string) (*engine.Snapshot, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, expenseID)
	}
	return &engine.Snapshot{ExpenseID: expenseID, Status: workflow.StateCancelled}, nil
}

func (m *mockEngine) GetState(ctx context.Context, expenseID string) (*approval.State, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, expenseID)
	}
	return &approval.State{ExpenseID: expenseID, Status: workflow.StateInReview}, nil
}

func (m *mockEngine) Restore(ctx context.Context) error { return nil }

// mockRuleRepo implements port.RuleRepository
type mockRuleRepo struct {
	rules      []rule.ApprovalRule
	createFunc func(ctx context.Context, r *rule.ApprovalRule) error
}

func (m *mockRuleRepo) Create(ctx context.Context, r *rule.ApprovalRule) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, r)
	}
	m.rules = append(m.rules, *r)
	return nil
}

func (m *mockRuleRepo) GetByID(ctx context.Context, id string) (*rule.ApprovalRule, error) {
	for _, r := range m.rules {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockRuleRepo) List(ctx context.Context) ([]rule.ApprovalRule, error) {
	return m.rules, nil
}

func (m *mockRuleRepo) ListActive(ctx context.Context) ([]rule.ApprovalRule, error) {
	var active []rule.ApprovalRule
	for _, r := range m.rules {
		if r.Active {
			active = append(active, r)
		}
	}
	return active, nil
}

func (m *mockRuleRepo) Deactivate(ctx context.Context, id string) error { return nil }

// mockAuditRepo implements port.AuditRepository
type mockAuditRepo struct {
	events []*event.Event
}

func (m *mockAuditRepo) Append(ctx context.Context, evt *event.Event) error {
	m.events = append(m.events, evt)
	return nil
}

func (m *mockAuditRepo) GetByExpenseID(ctx context.Context, expenseID string) ([]*event.Event, error) {
	return m.events, nil
}

// mockConverter implements port.CurrencyConverter
type mockConverter struct {
	convertFunc func(ctx context.Context, amount float64, from, to string) (float64, error)
}

func (m *mockConverter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	if m.convertFunc != nil {
		return m.convertFunc(ctx, amount, from, to)
	}
	return amount * 2, nil
}

func (m *mockConverter) BaseCurrency() string { return "USD" }

func testRouter(eng engine.Engine, rules *mockRuleRepo, audit *mockAuditRepo, conv *mockConverter) http.Handler {
	if rules == nil {
		rules = &mockRuleRepo{}
	}
	if audit == nil {
		audit = &mockAuditRepo{}
	}
	if conv == nil {
		conv = &mockConverter{}
	}
	srv := NewServer(DefaultServerConfig(), eng, rules, audit, conv, nopLogger{})
	return srv.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router := testRouter(&mockEngine{}, nil, nil, nil)

	w := doJSON(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestSubmitExpenseConvertsCurrency(t *testing.T) {
	var gotAmount float64
	var gotCurrency string
	eng := &mockEngine{
		submitFunc: func(ctx context.Context, expense rule.Expense, rules []rule.ApprovalRule) (*engine.Snapshot, error) {
			gotAmount = expense.Amount
			gotCurrency = expense.Currency
			return &engine.Snapshot{ExpenseID: expense.ID, Status: workflow.StateInReview}, nil
		},
	}
	conv := &mockConverter{
		convertFunc: func(ctx context.Context, amount float64, from, to string) (float64, error) {
			assert.Equal(t, "EUR", from)
			assert.Equal(t, "USD", to)
			return amount * 1.08, nil
		},
	}
	router := testRouter(eng, nil, nil, conv)

	w := doJSON(t, router, http.MethodPost, "/api/v1/expenses/exp-1/submit", SubmitExpenseRequest{
		Amount:      100,
		Currency:    "EUR",
		Category:    "travel",
		Department:  "engineering",
		SubmitterID: "emp-9",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.InDelta(t, 108.0, gotAmount, 0.001)
	assert.Equal(t, "USD", gotCurrency, "engine only ever sees base currency")
}

func TestSubmitExpenseConversionFailure(t *testing.T) {
	conv := &mockConverter{
		convertFunc: func(ctx context.Context, amount float64, from, to string) (float64, error) {
			return 0, errors.New("unknown currency")
		},
	}
	router := testRouter(&mockEngine{}, nil, nil, conv)

	w := doJSON(t, router, http.MethodPost, "/api/v1/expenses/exp-1/submit", SubmitExpenseRequest{
		Amount:      100,
		Currency:    "XYZ",
		Category:    "travel",
		Department:  "engineering",
		SubmitterID: "emp-9",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitExpensePlanningError(t *testing.T) {
	eng := &mockEngine{
		submitFunc: func(ctx context.Context, expense rule.Expense, rules []rule.ApprovalRule) (*engine.Snapshot, error) {
			return nil, &planner.PlanningError{Code: planner.CodeNoMatchingRule, Detail: "nothing applies"}
		},
	}
	router := testRouter(eng, nil, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/expenses/exp-1/submit", SubmitExpenseRequest{
		Amount:      100,
		Category:    "travel",
		Department:  "engineering",
		SubmitterID: "emp-9",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(planner.CodeNoMatchingRule), resp.Code)
}

func TestSubmitExpenseInvalidBody(t *testing.T) {
	router := testRouter(&mockEngine{}, nil, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/expenses/exp-1/submit", map[string]interface{}{
		"amount": -5,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordResponse(t *testing.T) {
	router := testRouter(&mockEngine{}, nil, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/expenses/exp-1/respond", RespondRequest{
		Level:      1,
		ApproverID: "mgr-1",
		Decision:   "approve",
	})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecordResponseInvalidDecision(t *testing.T) {
	router := testRouter(&mockEngine{}, nil, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/expenses/exp-1/respond", RespondRequest{
		Level:      1,
		ApproverID: "mgr-1",
		Decision:   "abstain",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetExpenseStateNotFound(t *testing.T) {
	eng := &mockEngine{
		getFunc: func(ctx context.Context, expenseID string) (*approval.State, error) {
			return nil, engine.ErrUnknownExpense
		},
	}
	router := testRouter(eng, nil, nil, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/expenses/ghost", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAuditTrail(t *testing.T) {
	audit := &mockAuditRepo{events: []*event.Event{
		event.New(event.TypeSubmitted, "exp-1", "r-1", 0, nil),
		event.New(event.TypeLevelActivated, "exp-1", "r-1", 1, nil),
	}}
	router := testRouter(&mockEngine{}, nil, audit, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/expenses/exp-1/audit", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool           `json:"success"`
		Data    []*event.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestCreateRuleValidation(t *testing.T) {
	router := testRouter(&mockEngine{}, &mockRuleRepo{}, nil, nil)

	// A rule with no levels fails structural validation.
	w := doJSON(t, router, http.MethodPost, "/api/v1/rules", rule.ApprovalRule{
		Name: "broken",
		Workflow: rule.WorkflowDefinition{
			Type: rule.WorkflowSequential,
		},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAndListRules(t *testing.T) {
	repo := &mockRuleRepo{}
	router := testRouter(&mockEngine{}, repo, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/rules", rule.ApprovalRule{
		Name: "standard",
		Workflow: rule.WorkflowDefinition{
			Type: rule.WorkflowSequential,
			Levels: []rule.Level{
				{
					Number:    1,
					Approvers: []rule.Approver{{Role: rule.RoleManager, Required: true}},
					Threshold: rule.Threshold{Type: rule.ThresholdAll},
				},
			},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.rules, 1)
	assert.NotEmpty(t, repo.rules[0].ID, "server assigns an id when absent")
	assert.True(t, repo.rules[0].Active)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rules", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
