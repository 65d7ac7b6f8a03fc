package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/caprepair/internal/adapters/sqlstore/gormdb"
	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
	"github.com/atvirokodosprendimai/caprepair/migrations"
)

func openTestDB(t *testing.T) *gormdb.DB {
	t.Helper()

	db, err := gormdb.Open(gormdb.DriverSQLite, filepath.Join(t.TempDir(), "registry.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if err := migrations.Up(context.Background(), sqlDB, db.Dialect()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func apartment(code string) domain.Record {
	return domain.NewRecord(domain.KindApartment, domain.Fields{
		"cod_num_hom": code,
		"address":     "Lenina 1",
		"year":        "1975-06-01",
		"num_of_flrs": "10",
		"num_of_flts": "40",
		"square":      "500.5",
	})
}

func TestRepositoryInsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	if err := repo.Insert(ctx, apartment("77:01:0001")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.FindByKey(ctx, domain.KindApartment, domain.Fields{"cod_num_hom": "77:01:0001"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Get("square") != "500.5" || got.Get("num_of_flts") != "40" || got.Get("year") != "1975-06-01" {
		t.Fatalf("unexpected fields: %v", got.Fields)
	}

	_, err = repo.FindByKey(ctx, domain.KindApartment, domain.Fields{"cod_num_hom": "missing"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryInsertDuplicateMapsToAlreadyExists(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	owner := domain.NewRecord(domain.KindOwner, domain.Fields{"uid": "0000000001", "fio": "Ivanov I.I.", "ph_numb": "79001234567"})
	if err := repo.Insert(ctx, owner); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, owner); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRepositoryFindByNonIdentityColumns(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	flat := domain.NewRecord(domain.KindFlat, domain.Fields{
		"cod_flt": "F-1", "owner_uid": "0000000001", "aprtmt_uid": "77:01:0001",
		"nom_flt": "12", "floor_flt": "3", "square_flt": "54.2",
	})
	if err := repo.Insert(ctx, flat); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.FindByKey(ctx, domain.KindFlat, domain.Fields{
		"cod_flt": "F-1", "owner_uid": "0000000001", "aprtmt_uid": "77:01:0001",
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Get("square_flt") != "54.2" {
		t.Fatalf("unexpected square: %q", got.Get("square_flt"))
	}
}

func TestRepositoryUpdateKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	if err := repo.Insert(ctx, apartment("77:01:0001")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	changed := apartment("77:01:0001")
	changed.Fields["address"] = "Mira 5"
	changed.Fields["num_of_flrs"] = "12"
	if err := repo.Update(ctx, domain.Fields{"cod_num_hom": "77:01:0001"}, changed); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.FindByKey(ctx, domain.KindApartment, domain.Fields{"cod_num_hom": "77:01:0001"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Get("address") != "Mira 5" || got.Get("num_of_flrs") != "12" {
		t.Fatalf("update not applied: %v", got.Fields)
	}

	err = repo.Update(ctx, domain.Fields{"cod_num_hom": "missing"}, changed)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryUpdateIdentityOnlyKind(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	work := domain.NewRecord(domain.KindRepairWork, domain.Fields{"cod_rep_work": "RW1", "type_of_work": "roof"})
	if err := repo.Insert(ctx, work); err != nil {
		t.Fatalf("insert: %v", err)
	}
	work.Fields["type_of_work"] = "facade"
	if err := repo.Update(ctx, work.Identity(), work); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.FindByKey(ctx, domain.KindRepairWork, work.Identity())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Get("type_of_work") != "facade" {
		t.Fatalf("unexpected type: %q", got.Get("type_of_work"))
	}
}

func TestRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	if err := repo.Insert(ctx, apartment("77:01:0001")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	deleted, err := repo.Delete(ctx, domain.KindApartment, domain.Fields{"cod_num_hom": "77:01:0001"})
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v %v", deleted, err)
	}
	deleted, err = repo.Delete(ctx, domain.KindApartment, domain.Fields{"cod_num_hom": "77:01:0001"})
	if err != nil || deleted {
		t.Fatalf("expected no-op delete, got %v %v", deleted, err)
	}
}

func TestRepositoryListOrdersByIdentity(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	for _, code := range []string{"3", "1", "2"} {
		if err := repo.Insert(ctx, apartment(code)); err != nil {
			t.Fatalf("insert %s: %v", code, err)
		}
	}

	items, err := repo.List(ctx, domain.KindApartment, domain.ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 || items[0].Get("cod_num_hom") != "1" || items[2].Get("cod_num_hom") != "3" {
		t.Fatalf("unexpected order: %v", items)
	}

	items, err = repo.List(ctx, domain.KindApartment, domain.ListFilter{After: []string{"1"}, Limit: 1})
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(items) != 1 || items[0].Get("cod_num_hom") != "2" {
		t.Fatalf("unexpected page: %v", items)
	}
}

func TestRepositoryListCompositeCursor(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	for _, work := range []string{"RW1", "RW2"} {
		rec := domain.NewRecord(domain.KindCurrentRepair, domain.Fields{
			"cod_rep_work": work, "inn_org": "770000000001", "cod_num_hom": "77:01:0001",
			"name_of_work": "roof", "date_start": "2024-05-01", "date_end": "2024-06-01",
		})
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("insert %s: %v", work, err)
		}
	}

	items, err := repo.List(ctx, domain.KindCurrentRepair, domain.ListFilter{After: []string{"RW1", "770000000001", "77:01:0001"}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Get("cod_rep_work") != "RW2" {
		t.Fatalf("unexpected page: %v", items)
	}

	_, err = repo.List(ctx, domain.KindCurrentRepair, domain.ListFilter{After: []string{"RW1"}})
	if !errors.Is(err, domain.ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor, got %v", err)
	}
}

func TestRepositoryListComparesIdentityPerColumn(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	for _, work := range []string{"a b", "roof/2", "a"} {
		rec := domain.NewRecord(domain.KindCurrentRepair, domain.Fields{
			"cod_rep_work": work, "inn_org": "770000000001", "cod_num_hom": "77:01:0001",
			"name_of_work": "roof", "date_start": "2024-05-01", "date_end": "2024-06-01",
		})
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("insert %s: %v", work, err)
		}
	}

	items, err := repo.List(ctx, domain.KindCurrentRepair, domain.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, item := range items {
		got = append(got, item.Get("cod_rep_work"))
	}
	if strings.Join(got, "|") != "a|a b|roof/2" {
		t.Fatalf("unexpected order: %q", got)
	}

	items, err = repo.List(ctx, domain.KindCurrentRepair, domain.ListFilter{
		After: []string{"a b", "770000000001", "77:01:0001"},
	})
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(items) != 1 || items[0].Get("cod_rep_work") != "roof/2" {
		t.Fatalf("unexpected page: %v", items)
	}
}

func TestChangeLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	log := NewChangeLogRepository(openTestDB(t))

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []domain.ChangeEvent{
		{EventID: "e1", Kind: domain.KindOwner, Action: domain.ActionInsert, Key: domain.Fields{"uid": "0000000001"}, Fields: domain.Fields{"uid": "0000000001", "fio": "A"}, Actor: "operator", OccurredAt: base},
		{EventID: "e2", Kind: domain.KindApartment, Action: domain.ActionInsert, Key: domain.Fields{"cod_num_hom": "1"}, Actor: "operator", OccurredAt: base.Add(time.Minute)},
		{EventID: "e3", Kind: domain.KindOwner, Action: domain.ActionDelete, Key: domain.Fields{"uid": "0000000001"}, Actor: "clerk", OccurredAt: base.Add(2 * time.Minute)},
	}
	for _, e := range events {
		if err := log.Append(ctx, e); err != nil {
			t.Fatalf("append %s: %v", e.EventID, err)
		}
	}

	got, err := log.List(ctx, domain.ChangeFilter{Kind: domain.KindOwner, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "e3" || got[1].EventID != "e1" {
		t.Fatalf("unexpected events: %+v", got)
	}
	if got[1].Fields["fio"] != "A" || got[0].Fields != nil || got[0].Key["uid"] != "0000000001" {
		t.Fatalf("unexpected payload: %+v", got)
	}

	got, err = log.List(ctx, domain.ChangeFilter{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "e3" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if err := migrations.Up(context.Background(), sqlDB, db.Dialect()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
