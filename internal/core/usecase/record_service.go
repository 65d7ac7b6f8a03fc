package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
	"github.com/atvirokodosprendimai/caprepair/internal/core/ports"
)

// RecordService sequences validation and storage writes for every entity kind.
type RecordService struct {
	store     ports.RecordStore
	checker   *IntegrityChecker
	changes   ports.ChangeLog
	publisher ports.ChangePublisher
	metrics   ports.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewRecordService(store ports.RecordStore, changes ports.ChangeLog, publisher ports.ChangePublisher, metrics ports.Metrics, logger *slog.Logger) *RecordService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordService{
		store:     store,
		checker:   NewIntegrityChecker(store),
		changes:   changes,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Validate runs every admission check for rec without writing anything.
func (s *RecordService) Validate(ctx context.Context, rec domain.Record, mode domain.Mode) error {
	_, err := s.admit(ctx, rec, mode)
	return err
}

func (s *RecordService) Insert(ctx context.Context, rec domain.Record, actor string) (domain.Record, error) {
	rec, err := s.admit(ctx, rec, domain.ModeInsert)
	if err != nil {
		return domain.Record{}, err
	}

	started := time.Now()
	err = s.store.Insert(ctx, rec)
	if errors.Is(err, domain.ErrAlreadyExists) {
		err = domain.DuplicateKeyError(rec.Kind, rec.Identity())
	} else if err != nil {
		err = &domain.StorageError{Op: fmt.Sprintf("insert %s", rec.Kind), Err: err}
	}
	s.metrics.ObserveWrite(rec.Kind, domain.ActionInsert, outcomeOf(err), time.Since(started))
	if err != nil {
		return domain.Record{}, err
	}

	s.recordChange(ctx, domain.ActionInsert, rec.Kind, rec.Identity(), rec.Fields, actor)
	return rec, nil
}

// Update rewrites the non-identity fields of the record addressed by rec's identity.
func (s *RecordService) Update(ctx context.Context, rec domain.Record, actor string) (domain.Record, error) {
	schema := domain.SchemaFor(rec.Kind)
	if schema.Kind == "" {
		return domain.Record{}, fmt.Errorf("%w: %q", domain.ErrInvalidKind, rec.Kind)
	}
	key, err := schema.KeyOf(rec.Fields)
	if err != nil {
		return domain.Record{}, err
	}

	rec, err = s.admit(ctx, rec, domain.ModeUpdate)
	if err != nil {
		return domain.Record{}, err
	}

	started := time.Now()
	err = s.store.Update(ctx, key, rec)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		err = &domain.StorageError{Op: fmt.Sprintf("update %s", rec.Kind), Err: err}
	}
	s.metrics.ObserveWrite(rec.Kind, domain.ActionUpdate, outcomeOf(err), time.Since(started))
	if err != nil {
		return domain.Record{}, err
	}

	s.recordChange(ctx, domain.ActionUpdate, rec.Kind, key, rec.Fields, actor)
	return rec, nil
}

// Delete removes the record addressed by key. No admission checks run.
func (s *RecordService) Delete(ctx context.Context, kind domain.Kind, key domain.Fields, actor string) (bool, error) {
	schema := domain.SchemaFor(kind)
	if schema.Kind == "" {
		return false, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	key, err := schema.KeyOf(key)
	if err != nil {
		return false, err
	}

	started := time.Now()
	deleted, err := s.store.Delete(ctx, kind, key)
	if err != nil {
		err = &domain.StorageError{Op: fmt.Sprintf("delete %s", kind), Err: err}
	}
	s.metrics.ObserveWrite(kind, domain.ActionDelete, outcomeOf(err), time.Since(started))
	if err != nil {
		return false, err
	}

	if deleted {
		s.recordChange(ctx, domain.ActionDelete, kind, key, nil, actor)
	}
	return deleted, nil
}

func (s *RecordService) Get(ctx context.Context, kind domain.Kind, key domain.Fields) (domain.Record, error) {
	schema := domain.SchemaFor(kind)
	if schema.Kind == "" {
		return domain.Record{}, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	key, err := schema.KeyOf(key)
	if err != nil {
		return domain.Record{}, err
	}

	rec, err := s.store.FindByKey(ctx, kind, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Record{}, &domain.StorageError{Op: fmt.Sprintf("get %s", kind), Err: err}
	}
	return rec, err
}

// List returns one page of kind ordered by identity. cursor is a token from a
// previous page, empty for the first one. next is empty when the page is short.
func (s *RecordService) List(ctx context.Context, kind domain.Kind, cursor string, limit int) (records []domain.Record, next string, err error) {
	if domain.SchemaFor(kind).Kind == "" {
		return nil, "", fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	after, err := domain.DecodeCursor(kind, cursor)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	records, err = s.store.List(ctx, kind, domain.ListFilter{After: after, Limit: limit})
	if err != nil {
		return nil, "", &domain.StorageError{Op: fmt.Sprintf("list %s", kind), Err: err}
	}
	if len(records) == limit {
		next = domain.EncodeCursor(records[len(records)-1])
	}
	return records, next, nil
}

// admit projects rec onto its schema and runs the integrity checks, then the
// capacity check for flats against the apartment resolved during the lookups.
func (s *RecordService) admit(ctx context.Context, rec domain.Record, mode domain.Mode) (domain.Record, error) {
	rec = domain.NewRecord(rec.Kind, domain.SchemaFor(rec.Kind).Project(rec.Fields))

	parents, err := s.checker.Check(ctx, rec, mode)
	if err == nil && rec.Kind == domain.KindFlat {
		if apartment, ok := parents[domain.KindApartment]; ok {
			err = domain.CheckCapacity(rec, apartment)
		}
	}

	if !errors.Is(err, domain.ErrInvalidKind) && !errors.Is(err, domain.ErrInvalidMode) {
		s.metrics.ObserveValidation(rec.Kind, mode, outcomeOf(err))
	}
	if err != nil {
		s.logger.Debug("record rejected", "kind", rec.Kind, "mode", mode, "error", err)
		return domain.Record{}, err
	}
	return rec, nil
}

func (s *RecordService) recordChange(ctx context.Context, action domain.ChangeAction, kind domain.Kind, key, fields domain.Fields, actor string) {
	if actor == "" {
		actor = "operator"
	}
	event := domain.ChangeEvent{
		EventID:    uuid.NewString(),
		Kind:       kind,
		Action:     action,
		Key:        key,
		Fields:     fields,
		Actor:      actor,
		OccurredAt: s.now(),
	}

	s.logger.Info("record written", "kind", kind, "action", action, "key", key.String(), "actor", actor)

	if s.changes != nil {
		if err := s.changes.Append(ctx, event); err != nil {
			s.logger.Warn("append change log", "event_id", event.EventID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("publish change", "event_id", event.EventID, "error", err)
		}
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if ve, ok := domain.AsValidationError(err); ok {
		return string(ve.Rule)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return "not_found"
	}
	return "storage_error"
}

type noopMetrics struct{}

func (noopMetrics) ObserveValidation(domain.Kind, domain.Mode, string) {}
func (noopMetrics) ObserveWrite(domain.Kind, domain.ChangeAction, string, time.Duration) {}
