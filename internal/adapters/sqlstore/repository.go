package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/caprepair/internal/adapters/sqlstore/gormdb"
	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
	"github.com/atvirokodosprendimai/caprepair/internal/core/ports"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// table is the per-kind persistence behaviour behind Repository.
type table interface {
	find(tx *gorm.DB, key domain.Fields) (domain.Fields, error)
	list(tx *gorm.DB, filter domain.ListFilter) ([]domain.Fields, error)
	insert(tx *gorm.DB, fields domain.Fields) error
	update(tx *gorm.DB, key, fields domain.Fields) (int64, error)
	delete(tx *gorm.DB, key domain.Fields) (int64, error)
}

type gormTable[M any] struct {
	kind   domain.Kind
	encode func(domain.Fields) (M, error)
	decode func(M) domain.Fields
}

func (t gormTable[M]) find(tx *gorm.DB, key domain.Fields) (domain.Fields, error) {
	var model M
	if err := tx.Where(whereMap(key)).Take(&model).Error; err != nil {
		return nil, err
	}
	return t.decode(model), nil
}

func (t gormTable[M]) list(tx *gorm.DB, filter domain.ListFilter) ([]domain.Fields, error) {
	identity := domain.SchemaFor(t.kind).Identity
	query := tx.Model(new(M))
	if len(filter.After) > 0 {
		if len(filter.After) != len(identity) {
			return nil, fmt.Errorf("%w: %s cursor has %d parts", domain.ErrInvalidCursor, t.kind, len(filter.After))
		}
		args := make([]any, len(filter.After))
		for i, v := range filter.After {
			args[i] = v
		}
		cols := strings.Join(identity, ", ")
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(identity)), ", ")
		query = query.Where(fmt.Sprintf("(%s) > (%s)", cols, marks), args...)
	}
	for _, col := range identity {
		query = query.Order(col + " ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []M
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Fields, 0, len(models))
	for _, m := range models {
		out = append(out, t.decode(m))
	}
	return out, nil
}

func (t gormTable[M]) insert(tx *gorm.DB, fields domain.Fields) error {
	model, err := t.encode(fields)
	if err != nil {
		return err
	}
	return tx.Create(&model).Error
}

func (t gormTable[M]) update(tx *gorm.DB, key, fields domain.Fields) (int64, error) {
	schema := domain.SchemaFor(t.kind)
	cols := make([]string, 0, len(schema.Fields))
	for _, name := range schema.FieldNames() {
		if !schema.IsIdentity(name) {
			cols = append(cols, name)
		}
	}
	if len(cols) == 0 {
		var n int64
		err := tx.Model(new(M)).Where(whereMap(key)).Count(&n).Error
		return n, err
	}

	model, err := t.encode(fields)
	if err != nil {
		return 0, err
	}
	res := tx.Model(new(M)).Where(whereMap(key)).Select(cols).Updates(&model)
	return res.RowsAffected, res.Error
}

func (t gormTable[M]) delete(tx *gorm.DB, key domain.Fields) (int64, error) {
	res := tx.Where(whereMap(key)).Delete(new(M))
	return res.RowsAffected, res.Error
}

func whereMap(key domain.Fields) map[string]any {
	out := make(map[string]any, len(key))
	for k, v := range key {
		out[k] = v
	}
	return out
}

var tables = map[domain.Kind]table{
	domain.KindApartment:     apartmentTable,
	domain.KindOwner:         ownerTable,
	domain.KindBuilder:       builderTable,
	domain.KindRepairWork:    repairWorkTable,
	domain.KindFlat:          flatTable,
	domain.KindCurrentRepair: currentRepairTable,
}

// Repository stores registry records in the six entity tables.
type Repository struct {
	db *gormdb.DB
}

var _ ports.RecordStore = (*Repository)(nil)

func NewRepository(db *gormdb.DB) *Repository {
	return &Repository{db: db}
}

func tableFor(kind domain.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	return t, nil
}

func (r *Repository) FindByKey(ctx context.Context, kind domain.Kind, key domain.Fields) (domain.Record, error) {
	t, err := tableFor(kind)
	if err != nil {
		return domain.Record{}, err
	}

	var fields domain.Fields
	err = r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		var findErr error
		fields, findErr = t.find(tx.DB, key)
		return findErr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Record{}, domain.ErrNotFound
		}
		return domain.Record{}, fmt.Errorf("find %s: %w", kind, err)
	}
	return domain.NewRecord(kind, fields), nil
}

func (r *Repository) Insert(ctx context.Context, rec domain.Record) error {
	t, err := tableFor(rec.Kind)
	if err != nil {
		return err
	}

	err = r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return t.insert(tx.DB, rec.Fields)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert %s: %w", rec.Kind, err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, key domain.Fields, rec domain.Record) error {
	t, err := tableFor(rec.Kind)
	if err != nil {
		return err
	}

	var affected int64
	err = r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		var updErr error
		affected, updErr = t.update(tx.DB, key, rec.Fields)
		return updErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("update %s: %w", rec.Kind, err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, kind domain.Kind, key domain.Fields) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}

	var affected int64
	err = r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		var delErr error
		affected, delErr = t.delete(tx.DB, key)
		return delErr
	})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", kind, err)
	}
	return affected > 0, nil
}

func (r *Repository) List(ctx context.Context, kind domain.Kind, filter domain.ListFilter) ([]domain.Record, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var rows []domain.Fields
	err = r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		var listErr error
		rows, listErr = t.list(tx.DB, filter)
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}

	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.NewRecord(kind, row))
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
