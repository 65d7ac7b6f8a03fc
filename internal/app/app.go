package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/caprepair/internal/adapters/events"
	"github.com/atvirokodosprendimai/caprepair/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/caprepair/internal/adapters/memstore"
	"github.com/atvirokodosprendimai/caprepair/internal/adapters/metrics"
	"github.com/atvirokodosprendimai/caprepair/internal/adapters/sqlstore"
	"github.com/atvirokodosprendimai/caprepair/internal/adapters/sqlstore/gormdb"
	"github.com/atvirokodosprendimai/caprepair/internal/core/ports"
	"github.com/atvirokodosprendimai/caprepair/internal/core/usecase"
	"github.com/atvirokodosprendimai/caprepair/migrations"
)

const DriverMemory = "memory"

type Config struct {
	Addr          string
	DBDriver      string
	DSN           string
	WebhookURL    string
	WebhookSecret string
	Logger        *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type storage struct {
	records ports.RecordStore
	changes ports.ChangeLog
	closer  io.Closer
}

// openStorage opens the configured backend and brings its schema up to date.
func openStorage(ctx context.Context, cfg Config) (storage, error) {
	if cfg.DBDriver == DriverMemory {
		return storage{records: memstore.New(), changes: memstore.NewChangeLog(), closer: resourceCloser{}}, nil
	}

	db, err := openMigrated(ctx, cfg)
	if err != nil {
		return storage{}, err
	}
	return storage{
		records: sqlstore.NewRepository(db),
		changes: sqlstore.NewChangeLogRepository(db),
		closer:  db,
	}, nil
}

func openMigrated(ctx context.Context, cfg Config) (*gormdb.DB, error) {
	db, err := gormdb.Open(cfg.DBDriver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(ctx, writeSQLDB, db.Dialect()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies pending migrations and exits. The memory driver has no schema.
func Migrate(ctx context.Context, cfg Config) error {
	if cfg.DBDriver == DriverMemory {
		cfg.logger().Info("memory driver has no schema to migrate")
		return nil
	}
	db, err := openMigrated(ctx, cfg)
	if err != nil {
		return err
	}
	cfg.logger().Info("migrations applied", "driver", cfg.DBDriver)
	return db.Close()
}

func newPublisher(cfg Config) ports.ChangePublisher {
	logPub := events.NewLogPublisher(cfg.logger())
	if cfg.WebhookURL == "" {
		return logPub
	}
	return events.Fanout{logPub, events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)}
}

// NewRecordService opens storage and returns the record operations on top of it,
// without metrics or an HTTP surface.
func NewRecordService(ctx context.Context, cfg Config) (*usecase.RecordService, io.Closer, error) {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	records := usecase.NewRecordService(st.records, st.changes, newPublisher(cfg), nil, cfg.logger())
	return records, st.closer, nil
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	recorder := metrics.NewRecorder()
	recordService := usecase.NewRecordService(st.records, st.changes, newPublisher(cfg), recorder, cfg.logger())
	auditService := usecase.NewAuditService(st.changes)
	handler := httpapi.NewHandler(recordService, auditService, usecase.NewPayloadValidator(), recorder.Handler(), cfg.logger())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{st.closer}}, nil
}
