// Package lark adapts approval domain events into Lark messages for the
// people who need to act on them. Delivery failures never propagate into
// engine transitions; the notification handler logs and swallows them.
package lark

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/event"
	larkclient "github.com/garyjia/approval-engine/internal/lark"
)

// Notifier implements port.Notifier over Lark messaging
type Notifier struct {
	client    *larkclient.Client
	employees port.EmployeeRepository
	logger    *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(client *larkclient.Client, employees port.EmployeeRepository, logger *zap.Logger) *Notifier {
	return &Notifier{client: client, employees: employees, logger: logger}
}

// Notify sends the messages an event calls for. Unknown or purely internal
// event types are ignored.
func (n *Notifier) Notify(ctx context.Context, evt *event.Event) error {
	switch evt.Type {
	case event.TypeLevelActivated:
		return n.messageApprovers(ctx, evt,
			fmt.Sprintf("Expense %s is awaiting your approval (level %d).", evt.ExpenseID, evt.Level))

	case event.TypeEscalated:
		return n.messageApprovers(ctx, evt,
			fmt.Sprintf("Approval of expense %s (level %d) has been escalated to you.", evt.ExpenseID, evt.Level))

	case event.TypeStalled:
		return n.messageApprovers(ctx, evt,
			fmt.Sprintf("Approval of expense %s (level %d) has stalled and needs intervention.", evt.ExpenseID, evt.Level))

	case event.TypeResolved:
		status := evt.GetPayloadString("status")
		return n.messageUser(ctx, evt.GetPayloadString("submitter_id"),
			fmt.Sprintf("Your expense %s has been resolved: %s.", evt.ExpenseID, status))

	case event.TypeCancelled:
		return n.messageUser(ctx, evt.GetPayloadString("submitter_id"),
			fmt.Sprintf("Approval of expense %s was cancelled.", evt.ExpenseID))
	}
	return nil
}

func (n *Notifier) messageApprovers(ctx context.Context, evt *event.Event, text string) error {
	approvers, ok := evt.Payload["approvers"]
	if !ok {
		return nil
	}
	ids, ok := approvers.([]string)
	if !ok {
		return nil
	}
	for _, userID := range ids {
		if err := n.messageUser(ctx, userID, text); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) messageUser(ctx context.Context, userID, text string) error {
	if userID == "" {
		return nil
	}
	emp, err := n.employees.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			n.logger.Warn("Cannot notify unknown user", zap.String("user_id", userID))
			return nil
		}
		return fmt.Errorf("lookup notification recipient %s: %w", userID, err)
	}
	if emp.LarkOpenID == "" {
		n.logger.Warn("User has no Lark open ID, skipping notification",
			zap.String("user_id", userID))
		return nil
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	_, err = n.client.SendMessage(ctx, "open_id", emp.LarkOpenID, "text", string(content))
	return err
}
