package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/event"
	"github.com/garyjia/approval-engine/internal/domain/rule"
)

// Directory lookup errors
var (
	ErrUserNotFound = errors.New("user not found in directory")
	ErrUserInactive = errors.New("user is inactive")
	ErrNoRoleHolder = errors.New("no holder for role")
)

// ErrConversionFailed is returned when a currency cannot be converted
var ErrConversionFailed = errors.New("currency conversion failed")

// Identity is a concrete person resolved from the directory
type Identity struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	LarkOpenID string `json:"lark_open_id,omitempty"`
}

// Directory resolves approver placeholders against the org chart. Role
// resolution is relative to the submitter (e.g. manager is the submitter's
// direct manager). The engine never embeds org-chart logic itself.
type Directory interface {
	// ResolveUser resolves a specific user ID. Returns ErrUserNotFound or
	// ErrUserInactive when the identity cannot serve as an approver.
	ResolveUser(ctx context.Context, userID string) (*Identity, error)

	// ResolveRoleHolder resolves the identity occupying a role relative to
	// the submitter. Returns ErrNoRoleHolder when the role is vacant.
	ResolveRoleHolder(ctx context.Context, submitterID string, role rule.ApproverRole) (*Identity, error)
}

// CurrencyConverter converts amounts into the company base currency. The
// engine only ever sees already-converted amounts; conversion happens on the
// submission path before rule matching.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount float64, fromCurrency, toCurrency string) (float64, error)
	BaseCurrency() string
}

// TimeoutScheduler drives escalation timeouts. The engine schedules a
// deadline per active level and the scheduler calls back into the engine when
// it passes; the engine runs no clock thread of its own.
type TimeoutScheduler interface {
	Schedule(expenseID string, level int, deadline time.Time)
	Cancel(expenseID string, level int)
}

// AuditSink persists domain events append-only, one per state transition
type AuditSink interface {
	Record(ctx context.Context, evt *event.Event) error
}

// Notifier delivers human-facing notifications for approval events. Delivery
// failures are logged, never propagated into engine transitions.
type Notifier interface {
	Notify(ctx context.Context, evt *event.Event) error
}
