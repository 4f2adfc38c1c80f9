package database

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-events-app/internal/logging"
)

func TestQueryLogger(t *testing.T) {
	var buf bytes.Buffer
	hook := &QueryLogger{
		Logger:    &logging.Logger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))},
		Threshold: 100 * time.Millisecond,
	}
	ctx := context.Background()

	tests := []struct {
		name  string
		event *bun.QueryEvent
		want  string
	}{
		{"fast", &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()}, ""},
		{"no rows", &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now(), Err: sql.ErrNoRows}, ""},
		{"slow", &bun.QueryEvent{Query: "SELECT pg_sleep(1)", StartTime: time.Now().Add(-time.Second)}, `"slow query"`},
		{"failed", &bun.QueryEvent{Query: "INSERT INTO x", StartTime: time.Now(), Err: errors.New("boom")}, `"query failed"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			hook.AfterQuery(hook.BeforeQuery(ctx, tt.event), tt.event)
			if tt.want == "" {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
