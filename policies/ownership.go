package policies

import (
	"fmt"

	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/pipeline"
)

// UsersService is the resource whose entities own themselves: a user is the
// author of their own account record.
const UsersService = "users"

// entityAuthorID resolves the author id of a fetched entity. For the users
// service the entity's own id is its author id.
func entityAuthorID(service string, entity map[string]any) string {
	if service == UsersService {
		return fmt.Sprint(entity["_id"])
	}
	author, _ := entity["author"].(map[string]any)
	if author == nil {
		return ""
	}
	return fmt.Sprint(author["_id"])
}

// EditableOnlyByOwner restricts a mutation to the entity's author. The
// current entity is fetched through the call gate; a lookup failure
// propagates unchanged rather than being rewrapped as forbidden. After the
// check passes, any author field is stripped from the incoming params so an
// update payload cannot reassign authorship.
func EditableOnlyByOwner(getAction pipeline.Ref, service string) pipeline.Hook {
	return func(c *pipeline.Context) error {
		entity, err := c.Call(getAction, map[string]any{"id": paramID(c)})
		if err != nil {
			return err
		}

		callerID := ""
		if c.Meta.Caller != nil {
			callerID = c.Meta.Caller.ID
		}
		if entityAuthorID(service, entity) != callerID {
			return pipeline.ErrForbidden()
		}

		delete(c.Params, "author")
		return nil
	}
}

// EditableOnlyByOwnerOrAdmin admits the entity's author or any caller with
// the admin role. The mismatch only rejects when a role value is present
// and not admin, so a caller with no role at all passes even when not the
// owner.
func EditableOnlyByOwnerOrAdmin(getAction pipeline.Ref, service string) pipeline.Hook {
	return func(c *pipeline.Context) error {
		entity, err := c.Call(getAction, map[string]any{"id": paramID(c)})
		if err != nil {
			return err
		}

		caller := c.Meta.Caller
		callerID := ""
		role := models.UserRole("")
		if caller != nil {
			callerID = caller.ID
			role = caller.Role
		}

		if entityAuthorID(service, entity) != callerID && role != "" && role != models.RoleAdmin {
			return pipeline.ErrForbidden()
		}
		return nil
	}
}
