package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidKind        = errors.New("invalid entity kind")
	ErrInvalidMode        = errors.New("invalid validation mode")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Rule names the check that rejected a record.
type Rule string

const (
	RuleEmpty            Rule = "empty"
	RuleBadFormat        Rule = "bad_format"
	RuleBadLength        Rule = "bad_length"
	RuleDuplicateKey     Rule = "duplicate_key"
	RuleMissingReference Rule = "missing_reference"
	RuleCapacityExceeded Rule = "capacity_exceeded"
)

// ValidationError reports the first rule a candidate record failed.
type ValidationError struct {
	Kind    Kind
	Field   string
	Rule    Rule
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Kind, e.Field, e.Message)
}

func newValidationError(kind Kind, field string, rule Rule, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// DuplicateKeyError builds the error returned when an insert collides with a stored key.
func DuplicateKeyError(kind Kind, key Fields) *ValidationError {
	names := key.Names()
	return newValidationError(kind, strings.Join(names, ","), RuleDuplicateKey,
		"record with %s already exists", key.String())
}

// MissingReferenceError builds the error returned when a foreign key does not resolve.
func MissingReferenceError(kind Kind, ref Reference, value string) *ValidationError {
	return newValidationError(kind, ref.Field, RuleMissingReference,
		"%s %q does not exist", ref.Parent, value)
}

// AsValidationError unwraps err into a *ValidationError when it carries one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// StorageError wraps a failed storage call. It matches ErrStorageUnavailable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// PayloadViolation is returned when a submitted payload does not have the shape of
// the entity's record. Errors holds machine-readable details.
type PayloadViolation struct {
	Kind   Kind
	Errors []string
}

func (e *PayloadViolation) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.Kind, strings.Join(e.Errors, "; "))
}
