package policies

import (
	"time"

	"github.com/gosimple/slug"

	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/pipeline"
)

func authorDoc(caller *models.User) map[string]any {
	author := models.AuthorOf(caller)
	doc := map[string]any{"_id": author.ID}
	if author.FirstName != "" {
		doc["firstName"] = author.FirstName
	}
	return doc
}

// AddAuthor stamps the caller as the entity's author, falling back to the
// anonymous author when no caller identity is present.
func AddAuthor() pipeline.Hook {
	return func(c *pipeline.Context) error {
		c.Params["author"] = authorDoc(c.Meta.Caller)
		return nil
	}
}

// AddCreatedAt stamps creation time in epoch milliseconds.
func AddCreatedAt() pipeline.Hook {
	return func(c *pipeline.Context) error {
		c.Params["createdAt"] = time.Now().UnixMilli()
		return nil
	}
}

// AddUpdatedAt stamps update time in epoch milliseconds.
func AddUpdatedAt() pipeline.Hook {
	return func(c *pipeline.Context) error {
		c.Params["updatedAt"] = time.Now().UnixMilli()
		return nil
	}
}

// AddUpdatedBy stamps the caller as the last editor.
func AddUpdatedBy() pipeline.Hook {
	return func(c *pipeline.Context) error {
		c.Params["updatedBy"] = authorDoc(c.Meta.Caller)
		return nil
	}
}

// AddState stamps a fixed initial state onto create params.
func AddState(state string) pipeline.Hook {
	return func(c *pipeline.Context) error {
		c.Params["state"] = state
		return nil
	}
}

// AddSlug derives a URL-safe slug from the name param when one is present.
func AddSlug() pipeline.Hook {
	return func(c *pipeline.Context) error {
		name, _ := c.Params["name"].(string)
		if name != "" {
			c.Params["slug"] = slug.Make(name)
		}
		return nil
	}
}

// IsUpdateByQuery reports whether the params carry both a query and an
// update document, i.e. a bulk update rather than an update by id.
func IsUpdateByQuery(params map[string]any) bool {
	_, hasQuery := params["query"].(map[string]any)
	_, hasUpdate := params["update"].(map[string]any)
	return hasQuery && hasUpdate
}

// UnlessUpdateByQuery skips the hook for bulk updates. Per-entity guards
// fetch the target by id, which a bulk update does not carry; its scoping
// happens through the query instead.
func UnlessUpdateByQuery(hook pipeline.Hook) pipeline.Hook {
	return func(c *pipeline.Context) error {
		if IsUpdateByQuery(c.Params) {
			return nil
		}
		return hook(c)
	}
}

// WhenUpdateByQuery runs the hook only for bulk updates.
func WhenUpdateByQuery(hook pipeline.Hook) pipeline.Hook {
	return func(c *pipeline.Context) error {
		if !IsUpdateByQuery(c.Params) {
			return nil
		}
		return hook(c)
	}
}

// StampUpdateDocument stamps updatedAt/updatedBy into the $set modifier of
// an update-by-query document.
func StampUpdateDocument() pipeline.Hook {
	return func(c *pipeline.Context) error {
		update, ok := c.Params["update"].(map[string]any)
		if !ok {
			return nil
		}
		set, ok := update["$set"].(map[string]any)
		if !ok {
			set = make(map[string]any)
			update["$set"] = set
		}
		set["updatedAt"] = time.Now().UnixMilli()
		set["updatedBy"] = authorDoc(c.Meta.Caller)
		return nil
	}
}

// AddOnlyOwnedToQuery narrows reads to entities authored by the caller.
func AddOnlyOwnedToQuery() pipeline.Hook {
	return func(c *pipeline.Context) error {
		if c.Meta.Caller == nil {
			return pipeline.ErrForbidden()
		}
		c.Query()["author._id"] = c.Meta.Caller.ID
		return nil
	}
}

// AddOnlyOwnedOrAdminToQuery narrows reads to entities authored by the
// caller unless the caller is an admin.
func AddOnlyOwnedOrAdminToQuery() pipeline.Hook {
	return func(c *pipeline.Context) error {
		caller := c.Meta.Caller
		if caller == nil {
			return pipeline.ErrForbidden()
		}
		if caller.IsAdmin() {
			return nil
		}
		c.Query()["author._id"] = caller.ID
		return nil
	}
}

// AddRecipientOrSenderToQuery narrows reads to messages the caller (or the
// caller's business) authored, sent, or received.
func AddRecipientOrSenderToQuery() pipeline.Hook {
	return func(c *pipeline.Context) error {
		caller := c.Meta.Caller
		if caller == nil {
			return pipeline.ErrForbidden()
		}
		alternatives := []any{
			map[string]any{"author._id": caller.ID},
			map[string]any{"senderId": caller.ID},
			map[string]any{"recipientId": caller.ID},
		}
		if caller.BusinessID != "" {
			alternatives = append(alternatives,
				map[string]any{"senderId": caller.BusinessID},
				map[string]any{"recipientId": caller.BusinessID},
			)
		}
		c.Query()["$or"] = alternatives
		return nil
	}
}

// Disable rejects the action outright with crud-action-not-found. Wired
// onto bulk insert, which bypasses per-entity hooks and is unsafe here.
func Disable() pipeline.Hook {
	return func(c *pipeline.Context) error {
		return pipeline.ErrActionNotFound()
	}
}
