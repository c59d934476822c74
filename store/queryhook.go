package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
)

// QueryLogger writes every bun query to the global zerolog logger at debug level.
// Failed queries are logged at warn, except for no-rows which is a normal lookup miss.
type QueryLogger struct{}

var _ bun.QueryHook = QueryLogger{}

func (QueryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (QueryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)

	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		log.Warn().
			Err(event.Err).
			Str("operation", event.Operation()).
			Dur("duration", elapsed).
			Str("query", event.Query).
			Msg("query failed")
		return
	}

	log.Debug().
		Str("operation", event.Operation()).
		Dur("duration", elapsed).
		Str("query", event.Query).
		Msg("query")
}
