package policies

import (
	"fmt"

	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/pipeline"
)

// CreditEventTopic is the fire-and-forget event announcing a completed
// creditable action for asynchronous ledger reconciliation.
const CreditEventTopic = "log.credit.action"

// creditAnnotation decodes the "action" param into a billing annotation.
// The gateway sends it as an object; a bare string names the action.
func creditAnnotation(v any) *models.CreditAction {
	switch annotation := v.(type) {
	case string:
		return &models.CreditAction{ActionName: annotation}
	case map[string]any:
		name, _ := annotation["actionName"].(string)
		if name == "" {
			return nil
		}
		reference, _ := annotation["reference"].(string)
		return &models.CreditAction{ActionName: name, Reference: reference}
	default:
		return nil
	}
}

// BeforeCreditableAction gates an action on the caller having a
// non-negative projected balance. The "action" annotation is moved from
// params into request metadata so it is never persisted; the caller's user
// record and the action's economy entry are fetched through the call gate
// and admission succeeds iff availableCredits + credit >= 0. Any fetch
// failure rejects the whole request.
//
// The read-then-admit sequence is not atomic: two concurrent admissions
// against the same user can both read the same balance before either
// ledger event lands.
func BeforeCreditableAction(usersGet, economyGet pipeline.Ref) pipeline.Hook {
	return func(c *pipeline.Context) error {
		annotation := creditAnnotation(c.Params["action"])
		if annotation == nil {
			return nil
		}
		c.Meta.CreditAction = annotation
		delete(c.Params, "action")

		if c.Meta.Caller == nil {
			return pipeline.ErrActionForbidden()
		}

		user, err := c.Call(usersGet, map[string]any{"id": c.Meta.Caller.ID})
		if err != nil {
			return err
		}
		entry, err := c.Call(economyGet, map[string]any{"id": annotation.ActionName})
		if err != nil {
			return err
		}

		balance := asInt64(user["availableCredits"])
		credit := asInt64(entry["credit"])
		if balance+credit < 0 {
			return pipeline.ErrActionForbidden().
				WithDetail("action", annotation.ActionName)
		}
		return nil
	}
}

// AfterCreditableAction announces the completed creditable action on the
// ledger topic. Balance mutation itself is the ledger reconciler's concern;
// this hook only emits.
func AfterCreditableAction() pipeline.Hook {
	return func(c *pipeline.Context) error {
		annotation := c.Meta.CreditAction
		if annotation == nil || c.Meta.Caller == nil {
			return nil
		}
		c.Gate.Emit(CreditEventTopic, map[string]any{
			"actionName": annotation.ActionName,
			"reference":  annotation.Reference,
			"ownerId":    c.Meta.Caller.ID,
			"ownerType":  c.Meta.Caller.Type,
		})
		return nil
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		var parsed int64
		_, _ = fmt.Sscan(n, &parsed)
		return parsed
	default:
		return 0
	}
}
