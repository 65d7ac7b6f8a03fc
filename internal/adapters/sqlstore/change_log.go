package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/caprepair/internal/adapters/sqlstore/gormdb"
	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
	"github.com/atvirokodosprendimai/caprepair/internal/core/ports"
)

type changeModel struct {
	EventID    string    `gorm:"column:event_id;primaryKey"`
	Kind       string    `gorm:"column:kind;not null"`
	Action     string    `gorm:"column:action;not null"`
	KeyJSON    string    `gorm:"column:key_json;not null"`
	FieldsJSON string    `gorm:"column:fields_json;not null"`
	Actor      string    `gorm:"column:actor;not null"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null"`
}

func (changeModel) TableName() string {
	return "change_log"
}

type ChangeLogRepository struct {
	db *gormdb.DB
}

var _ ports.ChangeLog = (*ChangeLogRepository)(nil)

func NewChangeLogRepository(db *gormdb.DB) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

func (r *ChangeLogRepository) Append(ctx context.Context, event domain.ChangeEvent) error {
	key, err := json.Marshal(event.Key)
	if err != nil {
		return fmt.Errorf("encode change key: %w", err)
	}
	fields := []byte("{}")
	if event.Fields != nil {
		if fields, err = json.Marshal(event.Fields); err != nil {
			return fmt.Errorf("encode change fields: %w", err)
		}
	}

	model := changeModel{
		EventID:    event.EventID,
		Kind:       string(event.Kind),
		Action:     string(event.Action),
		KeyJSON:    string(key),
		FieldsJSON: string(fields),
		Actor:      event.Actor,
		OccurredAt: event.OccurredAt.UTC(),
	}
	if model.OccurredAt.IsZero() {
		model.OccurredAt = time.Now().UTC()
	}

	err = r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// List returns events newest first.
func (r *ChangeLogRepository) List(ctx context.Context, filter domain.ChangeFilter) ([]domain.ChangeEvent, error) {
	var models []changeModel
	err := r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		query := tx.Model(&changeModel{})
		if filter.Kind != "" {
			query = query.Where("kind = ?", string(filter.Kind))
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		return query.Order("occurred_at DESC").Order("event_id DESC").Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list change events: %w", err)
	}

	out := make([]domain.ChangeEvent, 0, len(models))
	for _, m := range models {
		event := domain.ChangeEvent{
			EventID:    m.EventID,
			Kind:       domain.Kind(m.Kind),
			Action:     domain.ChangeAction(m.Action),
			Actor:      m.Actor,
			OccurredAt: m.OccurredAt.UTC(),
		}
		if err := json.Unmarshal([]byte(m.KeyJSON), &event.Key); err != nil {
			return nil, fmt.Errorf("decode change key %s: %w", m.EventID, err)
		}
		if m.FieldsJSON != "{}" {
			if err := json.Unmarshal([]byte(m.FieldsJSON), &event.Fields); err != nil {
				return nil, fmt.Errorf("decode change fields %s: %w", m.EventID, err)
			}
		}
		out = append(out, event)
	}
	return out, nil
}
