// Package memstore keeps registry records in process memory. It satisfies the
// same storage contract as the SQL store and backs tests and throwaway sessions.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
	"github.com/atvirokodosprendimai/caprepair/internal/core/ports"
)

var (
	_ ports.RecordStore = (*Store)(nil)
	_ ports.ChangeLog   = (*ChangeLog)(nil)
)

type Store struct {
	mu   sync.Mutex
	rows map[domain.Kind][]domain.Fields
}

func New() *Store {
	return &Store{rows: make(map[domain.Kind][]domain.Fields)}
}

func (s *Store) FindByKey(_ context.Context, kind domain.Kind, key domain.Fields) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(kind, key); i >= 0 {
		return domain.NewRecord(kind, s.rows[kind][i].Clone()), nil
	}
	return domain.Record{}, domain.ErrNotFound
}

func (s *Store) Insert(_ context.Context, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(rec.Kind, rec.Identity()) >= 0 {
		return domain.ErrAlreadyExists
	}
	s.rows[rec.Kind] = append(s.rows[rec.Kind], domain.SchemaFor(rec.Kind).Project(rec.Fields))
	return nil
}

func (s *Store) Update(_ context.Context, key domain.Fields, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(rec.Kind, key)
	if i < 0 {
		return domain.ErrNotFound
	}
	row := s.rows[rec.Kind][i]
	for name, value := range domain.SchemaFor(rec.Kind).Project(rec.Fields) {
		if _, isKey := key[name]; isKey {
			continue
		}
		row[name] = value
	}
	return nil
}

func (s *Store) Delete(_ context.Context, kind domain.Kind, key domain.Fields) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(kind, key)
	if i < 0 {
		return false, nil
	}
	rows := s.rows[kind]
	s.rows[kind] = append(rows[:i:i], rows[i+1:]...)
	return true, nil
}

func (s *Store) List(_ context.Context, kind domain.Kind, filter domain.ListFilter) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity := domain.SchemaFor(kind).Identity
	sortKey := func(f domain.Fields) []string {
		parts := make([]string, 0, len(identity))
		for _, name := range identity {
			parts = append(parts, f[name])
		}
		return parts
	}

	rows := make([]domain.Fields, 0, len(s.rows[kind]))
	for _, row := range s.rows[kind] {
		if len(filter.After) > 0 && slices.Compare(sortKey(row), filter.After) <= 0 {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return slices.Compare(sortKey(rows[i]), sortKey(rows[j])) < 0 })
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}

	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.NewRecord(kind, row.Clone()))
	}
	return out, nil
}

// ChangeLog keeps change events in memory, newest last.
type ChangeLog struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func NewChangeLog() *ChangeLog {
	return &ChangeLog{}
}

func (l *ChangeLog) Append(_ context.Context, event domain.ChangeEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *ChangeLog) List(_ context.Context, filter domain.ChangeFilter) ([]domain.ChangeEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.ChangeEvent, 0)
	for i := len(l.events) - 1; i >= 0; i-- {
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
		if filter.Kind != "" && l.events[i].Kind != filter.Kind {
			continue
		}
		out = append(out, l.events[i])
	}
	return out, nil
}

// indexOf returns the position of the first row of kind matching every key field.
func (s *Store) indexOf(kind domain.Kind, key domain.Fields) int {
	for i, row := range s.rows[kind] {
		match := true
		for name, value := range key {
			if row[name] != value {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
