package usecase

import (
	"context"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
	"github.com/atvirokodosprendimai/caprepair/internal/core/ports"
)

type AuditService struct {
	repo ports.ChangeLog
}

func NewAuditService(repo ports.ChangeLog) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) List(ctx context.Context, filter domain.ChangeFilter) ([]domain.ChangeEvent, error) {
	if filter.Kind != "" {
		if _, err := domain.ParseKind(string(filter.Kind)); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, &domain.StorageError{Op: "list changes", Err: err}
	}
	return events, nil
}
