package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/redmonkez12/go-events-app/internal/logging"
)

// Pool sizes the connection pool. Zero values leave database/sql defaults.
type Pool struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects through lib/pq and pings before handing out the bun handle.
func Open(ctx context.Context, dsn string, pool Pool) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

// QueryLogger is a bun.QueryHook that logs failed queries at ERROR and
// queries slower than Threshold at WARN, using the request logger when the
// query carries one.
type QueryLogger struct {
	Logger    *logging.Logger
	Threshold time.Duration
}

var _ bun.QueryHook = (*QueryLogger)(nil)

func (h *QueryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryLogger) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	took := time.Since(event.StartTime)
	failed := event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows)
	if !failed && (h.Threshold <= 0 || took < h.Threshold) {
		return
	}

	logger := h.Logger
	if l, ok := logging.FromContext(ctx); ok {
		logger = l
	}
	if failed {
		logger.Error("query failed", "operation", event.Operation(), "duration_ms", took.Milliseconds(), "error", event.Err.Error())
		return
	}
	logger.Warn("slow query", "operation", event.Operation(), "duration_ms", took.Milliseconds(), "query", event.Query)
}
