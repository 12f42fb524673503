package velograph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the error taxonomy.
var (
	// ErrAmbiguousPredicate is returned when two types declare the same
	// predicate name differently.
	ErrAmbiguousPredicate = errors.New("velograph: ambiguous predicate")

	// ErrUnmappedType is returned when an edge or a document references a
	// type without a class map.
	ErrUnmappedType = errors.New("velograph: unmapped type")

	// ErrDuplicateType is returned when two entity types claim the same
	// graph type name.
	ErrDuplicateType = errors.New("velograph: duplicate graph type")

	// ErrFrozen is returned when a frozen registry is modified.
	ErrFrozen = errors.New("velograph: registry is frozen")

	// ErrNotFrozen is returned when a registry is used before Freeze.
	ErrNotFrozen = errors.New("velograph: registry is not frozen")

	// ErrInvalidMapping is returned when a declaration cannot be bound to
	// its entity struct.
	ErrInvalidMapping = errors.New("velograph: invalid mapping")

	// ErrInvalidFilterPattern is returned when a regular expression filter
	// is not valid in the store's regex dialect.
	ErrInvalidFilterPattern = errors.New("velograph: invalid filter pattern")

	// ErrMigrationApply is returned when a migration fails against the store.
	ErrMigrationApply = errors.New("velograph: migration apply failed")

	// ErrNotFound is returned when a requested node does not exist.
	ErrNotFound = errors.New("velograph: node not found")
)

// AmbiguousPredicateError reports a predicate name declared differently by
// several types.
type AmbiguousPredicateError struct {
	// Predicate is the conflicting predicate name.
	Predicate string
	// Types lists every type declaring the predicate, sorted.
	Types []string
	// Renderings maps each type to its rendered declaration.
	Renderings map[string]string
}

// Error returns the error string.
func (e *AmbiguousPredicateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "velograph: ambiguous predicate %q declared by %s", e.Predicate, strings.Join(e.Types, ", "))
	if len(e.Renderings) > 0 {
		types := make([]string, 0, len(e.Renderings))
		for t := range e.Renderings {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(&b, "\n  %s: %s", t, e.Renderings[t])
		}
	}
	return b.String()
}

// Is reports whether the target matches ErrAmbiguousPredicate.
func (e *AmbiguousPredicateError) Is(target error) bool {
	return target == ErrAmbiguousPredicate
}

// IsAmbiguousPredicate reports whether err is an AmbiguousPredicateError.
func IsAmbiguousPredicate(err error) bool {
	var e *AmbiguousPredicateError
	return errors.As(err, &e)
}

// UnmappedTypeError reports a reference to a type without a class map.
type UnmappedTypeError struct {
	// Type is the unmapped Go or graph type name.
	Type string
	// From is the type holding the reference, if any.
	From string
	// Property is the property holding the reference, if any.
	Property string
}

// Error returns the error string.
func (e *UnmappedTypeError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("velograph: unmapped type %q referenced by %s.%s", e.Type, e.From, e.Property)
	}
	return fmt.Sprintf("velograph: unmapped type %q", e.Type)
}

// Is reports whether the target matches ErrUnmappedType.
func (e *UnmappedTypeError) Is(target error) bool {
	return target == ErrUnmappedType
}

// IsUnmappedType reports whether err is an UnmappedTypeError.
func IsUnmappedType(err error) bool {
	var e *UnmappedTypeError
	return errors.As(err, &e)
}

// DuplicateTypeError reports two entity types registered under the same
// graph type name.
type DuplicateTypeError struct {
	Type     string
	Existing string
	Incoming string
}

// Error returns the error string.
func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("velograph: graph type %q already mapped to %s, cannot map %s", e.Type, e.Existing, e.Incoming)
}

// Is reports whether the target matches ErrDuplicateType.
func (e *DuplicateTypeError) Is(target error) bool {
	return target == ErrDuplicateType
}

// MappingError reports a declaration that cannot be bound to its entity.
type MappingError struct {
	Type     string
	Property string
	Message  string
	Cause    error
}

// Error returns the error string.
func (e *MappingError) Error() string {
	var b strings.Builder
	b.WriteString("velograph: mapping error")
	if e.Type != "" {
		b.WriteString(" on type ")
		b.WriteString(e.Type)
	}
	if e.Property != "" {
		b.WriteString(" property ")
		b.WriteString(e.Property)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches ErrInvalidMapping.
func (e *MappingError) Is(target error) bool {
	return target == ErrInvalidMapping
}

// NewMappingError returns a new MappingError.
func NewMappingError(typ, property, message string, cause error) *MappingError {
	return &MappingError{Type: typ, Property: property, Message: message, Cause: cause}
}

// IsMappingError reports whether err is a MappingError.
func IsMappingError(err error) bool {
	var e *MappingError
	return errors.As(err, &e)
}

// InvalidFilterPatternError reports a regular expression rejected before
// it is sent to the store.
type InvalidFilterPatternError struct {
	Predicate string
	Pattern   string
	Cause     error
}

// Error returns the error string.
func (e *InvalidFilterPatternError) Error() string {
	return fmt.Sprintf("velograph: invalid regexp /%s/ on %q: %v", e.Pattern, e.Predicate, e.Cause)
}

// Unwrap returns the underlying error.
func (e *InvalidFilterPatternError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches ErrInvalidFilterPattern.
func (e *InvalidFilterPatternError) Is(target error) bool {
	return target == ErrInvalidFilterPattern
}

// MigrationApplyError reports a migration operation that failed against
// the store. The migration record stays unstamped.
type MigrationApplyError struct {
	// Migration is the name of the failed migration.
	Migration string
	// Op describes the failed operation.
	Op    string
	Cause error
}

// Error returns the error string.
func (e *MigrationApplyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("velograph: migration %s failed at %s: %v", e.Migration, e.Op, e.Cause)
	}
	return fmt.Sprintf("velograph: migration %s failed: %v", e.Migration, e.Cause)
}

// Unwrap returns the underlying error.
func (e *MigrationApplyError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches ErrMigrationApply.
func (e *MigrationApplyError) Is(target error) bool {
	return target == ErrMigrationApply
}

// IsMigrationApply reports whether err is a MigrationApplyError.
func IsMigrationApply(err error) bool {
	var e *MigrationApplyError
	return errors.As(err, &e)
}

// NotFoundError represents a node lookup that returned nothing.
type NotFoundError struct {
	label string
	id    any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("velograph: %s not found (uid=%v)", e.label, e.id)
	}
	return fmt.Sprintf("velograph: %s not found", e.label)
}

// Is reports whether the target matches ErrNotFound.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// NewNotFoundError returns a new NotFoundError for the given type and id.
func NewNotFoundError(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}
