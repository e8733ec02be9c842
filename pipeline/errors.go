package pipeline

import (
	"errors"
	"fmt"
)

// Kind names a failure in the pipeline's error taxonomy. Kinds are stable
// codes: callers and gateways dispatch on them.
type Kind string

const (
	KindForbidden         Kind = "forbidden"
	KindActionForbidden   Kind = "actionForbidden"
	KindEntityNotFound    Kind = "crud-entity-not-found"
	KindActionNotFound    Kind = "crud-action-not-found"
	KindUniqueIndex       Kind = "crud-unique-index-violation"
	KindUnrecognizedStage Kind = "services-aggregate-unrecognized-pipeline-stage"
	KindAggregateError    Kind = "services-aggregate-mongo-error"
	KindUpdateWithQuery   Kind = "services-update-with-query-mongo-error"
	KindNoParent          Kind = "no-parent"
)

// Descriptor is a structured pipeline error: a taxonomy kind, a stable
// numeric code, a category tag, and a structured detail payload. Constructed
// on demand, never persisted.
type Descriptor struct {
	Kind    Kind
	Code    int
	Type    string
	Message string
	Err     error
	Details map[string]any
}

// Error implements the error interface
func (e *Descriptor) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *Descriptor) Unwrap() error {
	return e.Err
}

// Is implements errors.Is; two descriptors match when their kinds match.
func (e *Descriptor) Is(target error) bool {
	t, ok := target.(*Descriptor)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail adds a detail to the descriptor
func (e *Descriptor) WithDetail(key string, value any) *Descriptor {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewDescriptor creates a descriptor with the stable code and category tag
// registered for the kind.
func NewDescriptor(kind Kind, message string, err error) *Descriptor {
	code, typ := codeAndType(kind)
	return &Descriptor{
		Kind:    kind,
		Code:    code,
		Type:    typ,
		Message: message,
		Err:     err,
		Details: make(map[string]any),
	}
}

func codeAndType(kind Kind) (int, string) {
	switch kind {
	case KindForbidden:
		return 403, "forbidden"
	case KindActionForbidden:
		return 403, "actionForbidden"
	case KindEntityNotFound:
		return 404, "crud"
	case KindActionNotFound:
		return 404, "crud"
	case KindUniqueIndex:
		return 422, "crud"
	case KindUnrecognizedStage:
		return 400, "aggregate"
	case KindAggregateError:
		return 500, "aggregate"
	case KindUpdateWithQuery:
		return 500, "update"
	case KindNoParent:
		return 403, "no-parent"
	default:
		return 500, "internal"
	}
}

// Descriptor constructors

// ErrForbidden signals a failed ownership or role check.
func ErrForbidden() *Descriptor {
	return NewDescriptor(KindForbidden, "entity can only be modified by its owner", nil)
}

// ErrActionForbidden signals insufficient credit for a billable action.
func ErrActionForbidden() *Descriptor {
	return NewDescriptor(KindActionForbidden, "insufficient credits to perform this action", nil)
}

// ErrEntityNotFound signals a tenant-mismatched or missing entity.
func ErrEntityNotFound() *Descriptor {
	return NewDescriptor(KindEntityNotFound, "entity not found", nil)
}

// ErrActionNotFound signals an explicitly disabled action.
func ErrActionNotFound() *Descriptor {
	return NewDescriptor(KindActionNotFound, "action not found", nil)
}

// ErrNoParent signals an absent or unresolvable required parent reference.
func ErrNoParent(message string) *Descriptor {
	return NewDescriptor(KindNoParent, message, nil)
}

// Error type checking helpers

// KindOf returns the Kind of a descriptor error, or empty string otherwise.
func KindOf(err error) Kind {
	var d *Descriptor
	if errors.As(err, &d) {
		return d.Kind
	}
	return ""
}

// IsKind checks whether an error is a descriptor of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsForbidden checks if an error is an ownership/role failure
func IsForbidden(err error) bool { return IsKind(err, KindForbidden) }

// IsActionForbidden checks if an error is a credit admission failure
func IsActionForbidden(err error) bool { return IsKind(err, KindActionForbidden) }

// IsEntityNotFound checks if an error is an entity-not-found failure
func IsEntityNotFound(err error) bool { return IsKind(err, KindEntityNotFound) }

// IsActionNotFound checks if an error is a disabled-action failure
func IsActionNotFound(err error) bool { return IsKind(err, KindActionNotFound) }

// DetailsOf returns the details map of a descriptor error, or nil otherwise.
func DetailsOf(err error) map[string]any {
	var d *Descriptor
	if errors.As(err, &d) {
		return d.Details
	}
	return nil
}
