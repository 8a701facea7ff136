// Package apperr holds the sentinel errors shared across packages.
// Callers wrap them with fmt.Errorf("...: %w") and match with errors.Is.
package apperr

import "errors"

// Service-level errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidPath   = errors.New("invalid document path")
)

// Document and model pipeline errors.
var (
	// ErrIO reports an unreadable source path.
	ErrIO = errors.New("io error")
	// ErrParse reports a malformed tree or a failed transform pass.
	ErrParse = errors.New("parse error")
	// ErrMissingType reports document metadata without a "type" key.
	ErrMissingType = errors.New("missing type")
	// ErrUnknownType reports a type with no registered model definition.
	ErrUnknownType = errors.New("unknown type")
	// ErrInvalidRelationship reports an undeclared relationship id or an
	// unresolvable relationship target.
	ErrInvalidRelationship = errors.New("invalid relationship")
	ErrDuplicateType       = errors.New("duplicate type")
	ErrInvalidDefinition   = errors.New("invalid model definition")
	ErrUndeclaredAttribute = errors.New("undeclared attribute")
	ErrMissingAttribute    = errors.New("missing required attribute")
	ErrGroupMismatch       = errors.New("group holds a different type")
)
