package policies

import (
	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/pipeline"
)

// ReverseAction documents how an archived copy could be replayed.
const ReverseAction = "create"

// ArchiveOnRemove snapshots the entity into the deleted service before a
// remove proceeds. The current entity is read through the call gate using
// the service's own get action; the delete runs only after the archive
// write returns successfully, so a failed archive blocks the delete.
func ArchiveOnRemove(getAction pipeline.Ref, service, module string, deletedCreate pipeline.Ref) pipeline.Hook {
	return func(c *pipeline.Context) error {
		entity, err := c.Call(getAction, map[string]any{"id": paramID(c)})
		if err != nil {
			return err
		}
		_, err = c.Call(deletedCreate, models.DeletedCopy{
			Copy:          entity,
			Service:       service,
			Module:        module,
			ReverseAction: ReverseAction,
		}.Params())
		return err
	}
}

// ArchiveObject snapshots the target entity into the generic archive sink,
// keyed by the invoking service's name. Usable on any action whose params
// carry a target id.
func ArchiveObject(archivesCreate pipeline.Ref) pipeline.Hook {
	return func(c *pipeline.Context) error {
		service := c.Ref.Service
		item, err := c.Call(pipeline.Ref{Service: service, Version: c.Ref.Version, Action: pipeline.ActionGet},
			map[string]any{"id": paramID(c)})
		if err != nil {
			return err
		}
		record := models.NewArchiveRecord(paramID(c), service, item)
		_, err = c.Call(archivesCreate, record.Params())
		return err
	}
}
