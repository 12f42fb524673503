package velograph_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/velograph"
)

func TestAmbiguousPredicateError(t *testing.T) {
	err := &velograph.AmbiguousPredicateError{
		Predicate: "name",
		Types:     []string{"Company", "Person"},
		Renderings: map[string]string{
			"Person":  "name: int .",
			"Company": "name: string .",
		},
	}
	assert.Equal(t, "velograph: ambiguous predicate \"name\" declared by Company, Person\n"+
		"  Company: name: string .\n"+
		"  Person: name: int .", err.Error())
	assert.ErrorIs(t, err, velograph.ErrAmbiguousPredicate)
	assert.True(t, velograph.IsAmbiguousPredicate(fmt.Errorf("compile: %w", err)))
	assert.False(t, velograph.IsAmbiguousPredicate(velograph.ErrAmbiguousPredicate))
}

func TestUnmappedTypeError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := &velograph.UnmappedTypeError{Type: "Pet"}
		assert.Equal(t, `velograph: unmapped type "Pet"`, err.Error())
		err = &velograph.UnmappedTypeError{Type: "Pet", From: "Person", Property: "Owns"}
		assert.Equal(t, `velograph: unmapped type "Pet" referenced by Person.Owns`, err.Error())
	})
	t.Run("IsUnmappedType", func(t *testing.T) {
		err := fmt.Errorf("wrapper: %w", &velograph.UnmappedTypeError{Type: "Pet"})
		assert.True(t, velograph.IsUnmappedType(err))
		assert.ErrorIs(t, err, velograph.ErrUnmappedType)
		assert.False(t, velograph.IsUnmappedType(errors.New("other error")))
		assert.False(t, velograph.IsUnmappedType(nil))
	})
}

func TestDuplicateTypeError(t *testing.T) {
	err := &velograph.DuplicateTypeError{Type: "Person", Existing: "a.Person", Incoming: "b.Person"}
	assert.Equal(t, `velograph: graph type "Person" already mapped to a.Person, cannot map b.Person`, err.Error())
	assert.ErrorIs(t, err, velograph.ErrDuplicateType)
}

func TestMappingError(t *testing.T) {
	cause := errors.New("unsupported kind chan")
	err := velograph.NewMappingError("Person", "Age", "cannot bind", cause)
	assert.Equal(t, "velograph: mapping error on type Person property Age: cannot bind: unsupported kind chan", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, velograph.ErrInvalidMapping)
	assert.True(t, velograph.IsMappingError(fmt.Errorf("wrapper: %w", err)))
	assert.Equal(t, "velograph: mapping error", velograph.NewMappingError("", "", "", nil).Error())
}

func TestInvalidFilterPatternError(t *testing.T) {
	cause := errors.New("missing closing )")
	err := &velograph.InvalidFilterPatternError{Predicate: "name", Pattern: "a(", Cause: cause}
	assert.Equal(t, `velograph: invalid regexp /a(/ on "name": missing closing )`, err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, velograph.ErrInvalidFilterPattern)
}

func TestMigrationApplyError(t *testing.T) {
	cause := errors.New("unavailable")
	err := &velograph.MigrationApplyError{Migration: "20240101000000_init", Op: "SetType(Person)", Cause: cause}
	assert.Equal(t, "velograph: migration 20240101000000_init failed at SetType(Person): unavailable", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, velograph.IsMigrationApply(err))

	err = &velograph.MigrationApplyError{Migration: "20240101000000_init", Cause: cause}
	assert.Equal(t, "velograph: migration 20240101000000_init failed: unavailable", err.Error())
	assert.False(t, velograph.IsMigrationApply(cause))
}

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		assert.Equal(t, "velograph: Person not found (uid=0x1)", velograph.NewNotFoundError("Person", "0x1").Error())
		assert.Equal(t, "velograph: Person not found", velograph.NewNotFoundError("Person", nil).Error())
	})
	t.Run("IsNotFound", func(t *testing.T) {
		err := velograph.NewNotFoundError("Company", "0x2")
		assert.True(t, errors.Is(err, velograph.ErrNotFound))
		assert.True(t, velograph.IsNotFound(fmt.Errorf("wrapper: %w", err)))
		assert.True(t, velograph.IsNotFound(velograph.ErrNotFound))
		assert.False(t, velograph.IsNotFound(errors.New("other error")))
		assert.False(t, velograph.IsNotFound(nil))
	})
}
