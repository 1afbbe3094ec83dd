// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"strings"

	"banledger/internal/observability"

	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var dbMetrics = observability.NewDatabaseMetrics()

// instrument opens a repository span and starts the latency timer. The
// returned func must be deferred.
func instrument(ctx context.Context, db *gorm.DB, method, table string) (context.Context, trace.Span, func()) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, db.Dialector.Name(), method, table)
	stop := dbMetrics.TrackQuery(method, table)
	return ctx, span, func() {
		stop()
		span.End()
	}
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505, SQLite "UNIQUE constraint failed"
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
