package datamapper

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrObjectNotFound is matched by *NotFoundError.
	ErrObjectNotFound = errors.New("object not found")

	// ErrPersistence is matched by *PersistenceError.
	ErrPersistence = errors.New("resource not saved")

	// ErrNoMethod is matched by *NoMethodError.
	ErrNoMethod = errors.New("undefined method")

	// ErrRelationshipNotFound is returned when an association is used before its
	// relationship was registered for the resource's repository.
	ErrRelationshipNotFound = errors.New("relationship does not exist")

	// ErrInvalidArgument is returned for malformed definitions and arguments.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAdapterNotSetUp is returned for repository names without an adapter.
	ErrAdapterNotSetUp = errors.New("adapter not set up")

	// ErrUnknownModel is returned when a model name is not defined.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownProperty is returned when a property name is not defined on a model.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrMalformedQuery is returned when a result tuple does not match the
	// query's field list.
	ErrMalformedQuery = errors.New("malformed query")

	// ErrInvalidDiscriminator is returned when a row names a model that is not
	// the queried model or one of its descendants.
	ErrInvalidDiscriminator = errors.New("invalid discriminator")

	// ErrReadOnly is returned when mutating or saving a read-only resource.
	ErrReadOnly = errors.New("resource is read-only")

	// ErrUnsupported is returned when an adapter lacks an optional capability.
	ErrUnsupported = errors.New("not supported by adapter")
)

// NotFoundError is returned by the failing finders.
type NotFoundError struct {
	Model string
	Key   []any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find %s with key %v", e.Model, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrObjectNotFound }

// PersistenceError describes a resource left unsaved.
type PersistenceError struct {
	Model           string
	NewRecord       bool
	DirtyAttributes map[string]any
}

func (e *PersistenceError) Error() string {
	names := make([]string, 0, len(e.DirtyAttributes))
	for name := range e.DirtyAttributes {
		names = append(names, name)
	}
	sort.Strings(names)
	attrs := make([]string, len(names))
	for i, name := range names {
		attrs[i] = fmt.Sprintf("%s: %v", name, e.DirtyAttributes[name])
	}
	return fmt.Sprintf("%s not saved: new record: %t, dirty attributes: {%s}", e.Model, e.NewRecord, strings.Join(attrs, ", "))
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// NoMethodError is returned when a call names a capability the receiver does
// not have, including calls delegated to an association that resolves to
// nothing.
type NoMethodError struct {
	Name     string
	Receiver string
}

func (e *NoMethodError) Error() string {
	return fmt.Sprintf("undefined method %q for %s", e.Name, e.Receiver)
}

func (e *NoMethodError) Is(target error) bool { return target == ErrNoMethod }
