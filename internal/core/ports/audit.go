package ports

import (
	"context"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
)

type ChangeLog interface {
	Append(ctx context.Context, event domain.ChangeEvent) error
	List(ctx context.Context, filter domain.ChangeFilter) ([]domain.ChangeEvent, error)
}
