package policies

import (
	"fmt"

	"github.com/nexbase/crudgate/pipeline"
)

// AssureParent requires that create params carry a resolvable parent
// reference. The key must be present and name an existing record in the
// parent service; otherwise the create fails with a no-parent error.
func AssureParent(service, key string) pipeline.Hook {
	parentGet := pipeline.Ref{Service: service, Version: 1, Action: pipeline.ActionGet}

	return func(c *pipeline.Context) error {
		parentID, ok := c.Params[key]
		if !ok || parentID == nil || parentID == "" {
			return pipeline.ErrNoParent(fmt.Sprintf(
				"record can't be created without a parent: key %s for service %s was not provided and is required",
				key, service)).
				WithDetail("missingField", key)
		}

		if _, err := c.Call(parentGet, map[string]any{"id": fmt.Sprint(parentID)}); err != nil {
			return pipeline.ErrNoParent(fmt.Sprintf(
				"invalid entry for parent id: no record in %s with %s = %v",
				service, key, parentID)).
				WithDetail("invalidEntry", key)
		}
		return nil
	}
}
