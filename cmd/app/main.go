package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/atvirokodosprendimai/caprepair/internal/adapters/logger"
	"github.com/atvirokodosprendimai/caprepair/internal/app"
	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "caprepair",
		Usage: "Capital-repair registry with validated writes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Sources: cli.EnvVars("CAPREPAIR_ADDR"),
				Usage:   "HTTP listen address",
			},
			&cli.StringFlag{
				Name:    "db-driver",
				Value:   "sqlite",
				Sources: cli.EnvVars("CAPREPAIR_DB_DRIVER"),
				Usage:   "Storage backend: sqlite, postgres or memory",
			},
			&cli.StringFlag{
				Name:    "db-dsn",
				Value:   "./caprepair.sqlite",
				Sources: cli.EnvVars("CAPREPAIR_DB_DSN"),
				Usage:   "SQLite file path or postgres connection URL",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("CAPREPAIR_LOG_LEVEL"),
				Usage:   "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   logger.FormatText,
				Sources: cli.EnvVars("CAPREPAIR_LOG_FORMAT"),
				Usage:   "text, json or color",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("CAPREPAIR_WEBHOOK_URL"),
				Usage:   "Change notification webhook target URL",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("CAPREPAIR_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations and exit",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := configFrom(c)
					if err != nil {
						return err
					}
					return app.Migrate(ctx, cfg)
				},
			},
			{
				Name:  "check",
				Usage: "Validate one record against the stored registry without writing it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Required: true, Usage: "Entity kind, e.g. flat"},
					&cli.StringFlag{Name: "mode", Value: string(domain.ModeInsert), Usage: "insert or update"},
					&cli.StringSliceFlag{Name: "field", Usage: "Field value as name=value; repeatable"},
				},
				Action: check,
			},
		},
	}
}

func configFrom(c *cli.Command) (app.Config, error) {
	log, err := logger.New(logger.Config{
		Level:  c.String("log-level"),
		Format: c.String("log-format"),
	})
	if err != nil {
		return app.Config{}, err
	}
	slog.SetDefault(log)

	return app.Config{
		Addr:          c.String("addr"),
		DBDriver:      c.String("db-driver"),
		DSN:           c.String("db-dsn"),
		WebhookURL:    c.String("webhook-url"),
		WebhookSecret: c.String("webhook-secret"),
		Logger:        log,
	}, nil
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	log := cfg.Logger

	server, closer, err := app.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			log.Error("close resources", "error", closeErr)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr, "driver", cfg.DBDriver)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case sig := <-sigCh:
		log.Info("received signal", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func check(ctx context.Context, c *cli.Command) error {
	kind, err := domain.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}
	mode, err := domain.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}
	fields, err := parseFields(c.StringSlice("field"))
	if err != nil {
		return err
	}

	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	records, closer, err := app.NewRecordService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := records.Validate(ctx, domain.NewRecord(kind, fields), mode); err != nil {
		return err
	}
	fmt.Fprintf(c.Root().Writer, "%s record is valid for %s\n", kind, mode)
	return nil
}

func parseFields(pairs []string) (domain.Fields, error) {
	fields := domain.Fields{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("field %q must be name=value", pair)
		}
		fields[name] = value
	}
	return fields, nil
}
