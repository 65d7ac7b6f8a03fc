package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
	"github.com/atvirokodosprendimai/caprepair/internal/core/ports"
)

// Parents holds the referenced records resolved while checking a candidate.
type Parents map[domain.Kind]domain.Record

// IntegrityChecker decides whether a candidate record may be written. It only
// reads from storage.
type IntegrityChecker struct {
	lookup ports.RecordLookup
}

func NewIntegrityChecker(lookup ports.RecordLookup) *IntegrityChecker {
	return &IntegrityChecker{lookup: lookup}
}

// Validate runs the field rules, the insert-time uniqueness lookups and the
// reference lookups, stopping at the first failure.
func (c *IntegrityChecker) Validate(ctx context.Context, rec domain.Record, mode domain.Mode) error {
	_, err := c.Check(ctx, rec, mode)
	return err
}

// Check is Validate that also returns the parent records it resolved.
func (c *IntegrityChecker) Check(ctx context.Context, rec domain.Record, mode domain.Mode) (Parents, error) {
	schema := domain.SchemaFor(rec.Kind)
	if schema.Kind == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, rec.Kind)
	}
	if mode != domain.ModeInsert && mode != domain.ModeUpdate {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMode, mode)
	}

	if err := schema.CheckFields(rec.Fields, mode); err != nil {
		return nil, err
	}

	if mode == domain.ModeInsert {
		for _, unique := range schema.UniqueKeys {
			key := rec.Fields.Pick(unique...)
			exists, err := c.exists(ctx, rec.Kind, key)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, domain.DuplicateKeyError(rec.Kind, key)
			}
		}
	}

	parents := make(Parents)
	for _, ref := range schema.EditableReferences(mode) {
		value := rec.Get(ref.Field)
		parent, err := c.lookup.FindByKey(ctx, ref.Parent, domain.Fields{ref.ParentField: value})
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.MissingReferenceError(rec.Kind, ref, value)
		}
		if err != nil {
			return nil, &domain.StorageError{Op: fmt.Sprintf("find %s", ref.Parent), Err: err}
		}
		parents[ref.Parent] = parent
	}
	return parents, nil
}

func (c *IntegrityChecker) exists(ctx context.Context, kind domain.Kind, key domain.Fields) (bool, error) {
	_, err := c.lookup.FindByKey(ctx, kind, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, &domain.StorageError{Op: fmt.Sprintf("find %s", kind), Err: err}
	}
}
