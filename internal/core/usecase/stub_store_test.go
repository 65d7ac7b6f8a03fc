package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
)

// stubStore keeps rows per kind and matches FindByKey on every given field.
// Function fields override the default behaviour.
type stubStore struct {
	mu      sync.Mutex
	rows    map[domain.Kind][]domain.Fields
	lookups int
	writes  int

	findFn   func(ctx context.Context, kind domain.Kind, key domain.Fields) (domain.Record, error)
	insertFn func(ctx context.Context, rec domain.Record) error
	listFn   func(ctx context.Context, kind domain.Kind, filter domain.ListFilter) ([]domain.Record, error)
}

func newStubStore(seed ...domain.Record) *stubStore {
	s := &stubStore{rows: map[domain.Kind][]domain.Fields{}}
	for _, rec := range seed {
		s.rows[rec.Kind] = append(s.rows[rec.Kind], rec.Fields.Clone())
	}
	return s
}

func (s *stubStore) FindByKey(ctx context.Context, kind domain.Kind, key domain.Fields) (domain.Record, error) {
	s.mu.Lock()
	s.lookups++
	s.mu.Unlock()
	if s.findFn != nil {
		return s.findFn(ctx, kind, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(kind, key); i >= 0 {
		return domain.NewRecord(kind, s.rows[kind][i].Clone()), nil
	}
	return domain.Record{}, domain.ErrNotFound
}

func (s *stubStore) Insert(ctx context.Context, rec domain.Record) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	if s.insertFn != nil {
		return s.insertFn(ctx, rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[rec.Kind] = append(s.rows[rec.Kind], rec.Fields.Clone())
	return nil
}

func (s *stubStore) Update(_ context.Context, key domain.Fields, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	i := s.indexOf(rec.Kind, key)
	if i < 0 {
		return domain.ErrNotFound
	}
	s.rows[rec.Kind][i] = rec.Fields.Clone()
	return nil
}

func (s *stubStore) Delete(_ context.Context, kind domain.Kind, key domain.Fields) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	i := s.indexOf(kind, key)
	if i < 0 {
		return false, nil
	}
	s.rows[kind] = append(s.rows[kind][:i], s.rows[kind][i+1:]...)
	return true, nil
}

func (s *stubStore) List(ctx context.Context, kind domain.Kind, filter domain.ListFilter) ([]domain.Record, error) {
	if s.listFn != nil {
		return s.listFn(ctx, kind, filter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Record, 0, len(s.rows[kind]))
	for _, row := range s.rows[kind] {
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
		out = append(out, domain.NewRecord(kind, row.Clone()))
	}
	return out, nil
}

func (s *stubStore) indexOf(kind domain.Kind, key domain.Fields) int {
	for i, row := range s.rows[kind] {
		match := true
		for k, v := range key {
			if row[k] != v {
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

type stubChangeLog struct {
	events    []domain.ChangeEvent
	appendErr error
	listErr   error
}

func (l *stubChangeLog) Append(_ context.Context, event domain.ChangeEvent) error {
	if l.appendErr != nil {
		return l.appendErr
	}
	l.events = append(l.events, event)
	return nil
}

func (l *stubChangeLog) List(_ context.Context, filter domain.ChangeFilter) ([]domain.ChangeEvent, error) {
	if l.listErr != nil {
		return nil, l.listErr
	}
	out := make([]domain.ChangeEvent, 0, len(l.events))
	for i := len(l.events) - 1; i >= 0; i-- {
		if filter.Kind != "" && l.events[i].Kind != filter.Kind {
			continue
		}
		out = append(out, l.events[i])
	}
	return out, nil
}

type stubPublisher struct {
	published []domain.ChangeEvent
	err       error
}

func (p *stubPublisher) Publish(_ context.Context, event domain.ChangeEvent) error {
	p.published = append(p.published, event)
	return p.err
}

type observation struct {
	kind    domain.Kind
	label   string
	outcome string
}

type stubMetrics struct {
	validations []observation
	writes      []observation
}

func (m *stubMetrics) ObserveValidation(kind domain.Kind, mode domain.Mode, outcome string) {
	m.validations = append(m.validations, observation{kind: kind, label: string(mode), outcome: outcome})
}

func (m *stubMetrics) ObserveWrite(kind domain.Kind, action domain.ChangeAction, outcome string, _ time.Duration) {
	m.writes = append(m.writes, observation{kind: kind, label: string(action), outcome: outcome})
}

func apartmentRecord() domain.Record {
	return domain.NewRecord(domain.KindApartment, domain.Fields{
		"cod_num_hom": "77:01:0001",
		"address":     "Lenina 1",
		"year":        "1975-06-01",
		"num_of_flrs": "10",
		"num_of_flts": "40",
		"square":      "500.0",
	})
}

func ownerRecord() domain.Record {
	return domain.NewRecord(domain.KindOwner, domain.Fields{
		"uid":     "1234567890",
		"fio":     "Ivanov I.I.",
		"ph_numb": "79001234567",
	})
}

func flatRecord() domain.Record {
	return domain.NewRecord(domain.KindFlat, domain.Fields{
		"cod_flt":    "77:01:0001:40",
		"owner_uid":  "1234567890",
		"aprtmt_uid": "77:01:0001",
		"nom_flt":    "40",
		"floor_flt":  "10",
		"square_flt": "500.0",
	})
}

func currentRepairRecord() domain.Record {
	return domain.NewRecord(domain.KindCurrentRepair, domain.Fields{
		"cod_rep_work": "RW-1",
		"inn_org":      "770000000001",
		"cod_num_hom":  "77:01:0001",
		"name_of_work": "Roof replacement",
		"date_start":   "2024-05-01",
		"date_end":     "2024-06-01",
	})
}
