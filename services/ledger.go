package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/nexbase/crudgate/broker"
	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/pipeline"
	"github.com/nexbase/crudgate/policies"
	"github.com/nexbase/crudgate/repositories"
)

// Ledger consumes log.credit.action events: it persists a credit event and
// reconciles the owner's balance. The read-then-update here is the
// documented non-atomic step; concurrent reconciliations against the same
// user can interleave.
type Ledger struct {
	broker *broker.Broker
	events repositories.CreditEventRepository
	logger *zap.Logger

	usersGet    pipeline.Ref
	usersUpdate pipeline.Ref
	economyGet  pipeline.Ref
}

// NewLedger creates the ledger reconciler and subscribes it to the credit
// event topic.
func NewLedger(b *broker.Broker, events repositories.CreditEventRepository, logger *zap.Logger) *Ledger {
	l := &Ledger{
		broker:      b,
		events:      events,
		logger:      logger.With(zap.String("service", "ledger")),
		usersGet:    pipeline.Ref{Service: "users", Version: 1, Action: pipeline.ActionGet},
		usersUpdate: pipeline.Ref{Service: "users", Version: 1, Action: pipeline.ActionUpdate},
		economyGet:  pipeline.Ref{Service: "action-economy", Version: 1, Action: pipeline.ActionGet},
	}
	b.Subscribe(policies.CreditEventTopic, l.handle)
	return l
}

func (l *Ledger) handle(ctx context.Context, payload map[string]any) {
	actionName, _ := payload["actionName"].(string)
	ownerID, _ := payload["ownerId"].(string)
	ownerType, _ := payload["ownerType"].(string)
	if actionName == "" || ownerID == "" {
		l.logger.Warn("discarding malformed credit event", zap.Any("payload", payload))
		return
	}

	meta := &pipeline.Meta{}

	entry, err := l.broker.Call(ctx, l.economyGet, map[string]any{"id": actionName}, meta)
	if err != nil {
		l.logger.Error("economy lookup failed",
			zap.String("action", actionName),
			zap.Error(err))
		return
	}
	credit := asInt64(entry["credit"])

	event := models.NewCreditEvent(actionName, ownerID, ownerType, credit)
	if err := l.events.Insert(ctx, event); err != nil {
		l.logger.Error("failed to persist credit event",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return
	}

	user, err := l.broker.Call(ctx, l.usersGet, map[string]any{"id": ownerID}, meta)
	if err != nil {
		l.logger.Error("user lookup failed during reconciliation",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return
	}

	balance := asInt64(user["availableCredits"])
	_, err = l.broker.Call(ctx, l.usersUpdate, map[string]any{
		"id":               ownerID,
		"availableCredits": balance + credit,
	}, meta)
	if err != nil {
		l.logger.Error("balance reconciliation failed",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return
	}

	l.logger.Debug("credit event reconciled",
		zap.String("owner_id", ownerID),
		zap.String("action", actionName),
		zap.Int64("credit", credit))
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
