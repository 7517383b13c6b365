package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/approval-engine/internal/application/engine"
	"github.com/garyjia/approval-engine/internal/application/planner"
	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/rule"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine    engine.Engine
	rules     port.RuleRepository
	audit     port.AuditRepository
	converter port.CurrencyConverter
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	eng engine.Engine,
	rules port.RuleRepository,
	audit port.AuditRepository,
	converter port.CurrencyConverter,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:    eng,
		rules:     rules,
		audit:     audit,
		converter: converter,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SubmitExpenseRequest is the body for POST /expenses/:id/submit
type SubmitExpenseRequest struct {
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	Currency      string  `json:"currency"`
	Category      string  `json:"category" binding:"required"`
	Department    string  `json:"department" binding:"required"`
	SubmitterID   string  `json:"submitter_id" binding:"required"`
	SubmitterRole string  `json:"submitter_role"`
}

// RespondRequest is the body for POST /expenses/:id/respond
type RespondRequest struct {
	Level      int    `json:"level" binding:"required,min=1"`
	ApproverID string `json:"approver_id" binding:"required"`
	Decision   string `json:"decision" binding:"required"`
	Comment    string `json:"comment"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// SubmitExpense handles POST /api/v1/expenses/:id/submit. The amount is
// converted to the base currency before rule matching so thresholds compare
// in one unit.
func (h *Handlers) SubmitExpense(c *gin.Context) {
	expenseID := c.Param("id")

	var req SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body: " + err.Error(),
		})
		return
	}

	amount := req.Amount
	currency := req.Currency
	base := h.converter.BaseCurrency()
	if currency == "" {
		currency = base
	}
	if currency != base {
		converted, err := h.converter.Convert(c.Request.Context(), amount, currency, base)
		if err != nil {
			h.logger.Error("Currency conversion failed",
				"expense_id", expenseID,
				"currency", currency,
				"error", err,
			)
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "cannot convert " + currency + " to " + base,
			})
			return
		}
		amount = converted
	}

	rules, err := h.rules.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load active rules", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to load approval rules",
		})
		return
	}

	expense := rule.Expense{
		ID:            expenseID,
		Amount:        amount,
		Currency:      base,
		Category:      req.Category,
		Department:    req.Department,
		SubmitterID:   req.SubmitterID,
		SubmitterRole: req.SubmitterRole,
		SubmittedAt:   time.Now().UTC(),
	}

	snapshot, err := h.engine.Submit(c.Request.Context(), expense, rules)
	if err != nil {
		h.respondEngineError(c, expenseID, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    snapshot,
	})
}

// RecordResponse handles POST /api/v1/expenses/:id/respond. Late, duplicate,
// or unauthorized responses are not errors; the engine ignores them and the
// current snapshot is returned.
func (h *Handlers) RecordResponse(c *gin.Context) {
	expenseID := c.Param("id")

	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body: " + err.Error(),
		})
		return
	}

	decision := approval.Decision(req.Decision)
	if !decision.IsValid() {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "decision must be approve or reject",
		})
		return
	}

	snapshot, err := h.engine.Respond(c.Request.Context(), expenseID, req.Level, req.ApproverID, decision, req.Comment)
	if err != nil {
		h.respondEngineError(c, expenseID, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    snapshot,
	})
}

// CancelExpense handles POST /api/v1/expenses/:id/cancel
func (h *Handlers) CancelExpense(c *gin.Context) {
	expenseID := c.Param("id")

	snapshot, err := h.engine.Cancel(c.Request.Context(), expenseID)
	if err != nil {
		h.respondEngineError(c, expenseID, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    snapshot,
	})
}

// GetExpenseState handles GET /api/v1/expenses/:id
func (h *Handlers) GetExpenseState(c *gin.Context) {
	expenseID := c.Param("id")

	state, err := h.engine.GetState(c.Request.Context(), expenseID)
	if err != nil {
		h.respondEngineError(c, expenseID, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    state,
	})
}

// GetAuditTrail handles GET /api/v1/expenses/:id/audit
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	expenseID := c.Param("id")

	events, err := h.audit.GetByExpenseID(c.Request.Context(), expenseID)
	if err != nil {
		h.logger.Error("Failed to load audit trail", "expense_id", expenseID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to load audit trail",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    events,
	})
}

// CreateRule handles POST /api/v1/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	var r rule.ApprovalRule
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body: " + err.Error(),
		})
		return
	}

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.Active = true

	if err := r.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	if err := h.rules.Create(c.Request.Context(), &r); err != nil {
		h.logger.Error("Failed to create rule", "rule_id", r.ID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to create rule",
		})
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    r,
	})
}

// ListRules handles GET /api/v1/rules. Pass ?active=true to restrict the
// listing to rules eligible for matching.
func (h *Handlers) ListRules(c *gin.Context) {
	var (
		rules []rule.ApprovalRule
		err   error
	)
	if c.Query("active") == "true" {
		rules, err = h.rules.ListActive(c.Request.Context())
	} else {
		rules, err = h.rules.List(c.Request.Context())
	}
	if err != nil {
		h.logger.Error("Failed to list rules", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to list rules",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    rules,
	})
}

// GetRule handles GET /api/v1/rules/:id
func (h *Handlers) GetRule(c *gin.Context) {
	id := c.Param("id")

	r, err := h.rules.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "rule not found",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    r,
	})
}

// DeactivateRule handles DELETE /api/v1/rules/:id. Rules are never removed,
// only excluded from matching future submissions.
func (h *Handlers) DeactivateRule(c *gin.Context) {
	id := c.Param("id")

	if err := h.rules.Deactivate(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to deactivate rule", "rule_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to deactivate rule",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
	})
}

// respondEngineError maps engine errors onto HTTP statuses: planning
// failures are client-visible 422s, unknown expenses are 404s, and anything
// else is a configuration-integrity fault.
func (h *Handlers) respondEngineError(c *gin.Context, expenseID string, err error) {
	if perr, ok := planner.AsPlanningError(err); ok {
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Error:   perr.Error(),
			Code:    string(perr.Code),
		})
		return
	}
	if errors.Is(err, engine.ErrUnknownExpense) {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "expense not found",
		})
		return
	}

	h.logger.Error("Engine operation failed", "expense_id", expenseID, "error", err)
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   err.Error(),
	})
}
