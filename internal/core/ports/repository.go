package ports

import (
	"context"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
)

// RecordLookup answers the existence and uniqueness questions asked before a write.
// FindByKey matches every given field and returns domain.ErrNotFound when no row does.
type RecordLookup interface {
	FindByKey(ctx context.Context, kind domain.Kind, key domain.Fields) (domain.Record, error)
}

// RecordStore is the storage capability consumed by the record operations.
// Insert returns domain.ErrAlreadyExists on a key collision; Update returns
// domain.ErrNotFound when no row matches key.
type RecordStore interface {
	RecordLookup
	Insert(ctx context.Context, rec domain.Record) error
	Update(ctx context.Context, key domain.Fields, rec domain.Record) error
	Delete(ctx context.Context, kind domain.Kind, key domain.Fields) (bool, error)
	List(ctx context.Context, kind domain.Kind, filter domain.ListFilter) ([]domain.Record, error)
}
