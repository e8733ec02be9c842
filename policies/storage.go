package policies

import (
	"errors"
	"strings"

	"github.com/nexbase/crudgate/pipeline"
	"github.com/nexbase/crudgate/storage"
)

// NormalizeDuplicateKey rewrites a unique-index violation into the
// crud-unique-index-violation descriptor, carrying the violated index name
// and the offending service/action as structured detail. Anything else
// passes through verbatim.
func NormalizeDuplicateKey() pipeline.ErrorHook {
	return func(c *pipeline.Context, err error) error {
		if alreadyNormalized(err) {
			return err
		}
		var driverErr *storage.DriverError
		if !errors.As(err, &driverErr) || driverErr.Code != storage.CodeDuplicateKey {
			return err
		}
		return pipeline.NewDescriptor(pipeline.KindUniqueIndex, "unique index violation", err).
			WithDetail("index", extractIndexName(driverErr.Message)).
			WithDetail("service", c.Ref.Service).
			WithDetail("action", string(c.Ref.Action))
	}
}

// NormalizeAggregateError rewrites aggregate pipeline failures. The driver's
// unrecognized-stage code gets its own descriptor; any other failure
// carrying both a code and a message becomes a generic aggregate driver
// error. The tenant-scoping stage is stripped from the pipeline reported in
// error detail: it is an implementation detail, not user input.
func NormalizeAggregateError() pipeline.ErrorHook {
	return func(c *pipeline.Context, err error) error {
		if alreadyNormalized(err) {
			return err
		}
		var driverErr *storage.DriverError
		if !errors.As(err, &driverErr) || driverErr.Code == 0 || driverErr.Message == "" {
			return err
		}

		if driverErr.Code == storage.CodeUnrecognizedStage {
			return pipeline.NewDescriptor(pipeline.KindUnrecognizedStage, "unrecognized aggregation pipeline stage", err).
				WithDetail("message", driverErr.Message).
				WithDetail("pipeline", strippedPipeline(c.Params))
		}

		return pipeline.NewDescriptor(pipeline.KindAggregateError, "aggregation pipeline failed", err).
			WithDetail("message", driverErr.Message).
			WithDetail("code", driverErr.Code).
			WithDetail("pipeline", strippedPipeline(c.Params))
	}
}

// NormalizeUpdateWithQueryError rewrites failures flagged as originating
// from the storage driver during an update-by-query.
func NormalizeUpdateWithQueryError() pipeline.ErrorHook {
	return func(c *pipeline.Context, err error) error {
		if alreadyNormalized(err) {
			return err
		}
		var driverErr *storage.DriverError
		if !errors.As(err, &driverErr) || !driverErr.Driver {
			return err
		}
		return pipeline.NewDescriptor(pipeline.KindUpdateWithQuery, "update with query failed", err).
			WithDetail("message", driverErr.Message).
			WithDetail("input", c.Params)
	}
}

// alreadyNormalized reports whether the error is a taxonomy descriptor
// already; re-submitting one through normalization must not re-wrap it.
func alreadyNormalized(err error) bool {
	var d *pipeline.Descriptor
	return errors.As(err, &d)
}

// extractIndexName pulls the violated index name out of the raw driver
// message, e.g. "... index: idx_email" yields "idx_email".
func extractIndexName(message string) string {
	const marker = "index:"
	at := strings.Index(message, marker)
	if at < 0 {
		return ""
	}
	rest := strings.TrimSpace(message[at+len(marker):])
	if end := strings.IndexAny(rest, " \t"); end > 0 {
		rest = rest[:end]
	}
	return rest
}

// strippedPipeline returns the request's aggregate pipeline without the
// prepended tenant $match stage.
func strippedPipeline(params map[string]any) []any {
	stages := aggregateStages(params)
	if len(stages) == 0 {
		return []any{}
	}
	return stages[1:]
}
