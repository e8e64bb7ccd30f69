package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func Open(databaseURL string, pool PoolConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return New(sqlDB), nil
}

// New wraps an already opened connection pool.
func New(sqlDB *sql.DB) *bun.DB {
	return bun.NewDB(sqlDB, pgdialect.New())
}

func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// QueryObserver receives the outcome of every query, e.g. for metrics.
type QueryObserver func(operation string, elapsed time.Duration, err error)

// AddQueryLogging installs a hook that logs each query at debug level and
// failures at warn level.
func AddQueryLogging(db *bun.DB, log *slog.Logger, observe QueryObserver) {
	if log == nil {
		log = slog.Default()
	}
	db.AddQueryHook(&queryHook{log: log.With(slog.String("component", "postgres")), observe: observe})
}

type queryHook struct {
	log     *slog.Logger
	observe QueryObserver
}

func (h *queryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	op := event.Operation()

	err := event.Err
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	if h.observe != nil {
		h.observe(op, elapsed, err)
	}
	if err != nil {
		h.log.Warn("query failed", slog.String("operation", op), slog.Duration("elapsed", elapsed), slog.Any("err", err))
		return
	}
	h.log.Debug("query", slog.String("operation", op), slog.Duration("elapsed", elapsed))
}
