package database

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// Statements splits the embedded schema into individual statements.
func Statements() []string {
	parts := strings.Split(schemaSQL, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if q := strings.TrimSpace(p); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// EnsureSchema applies the embedded schema. Every statement is idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	stmts := Statements()
	for i, query := range stmts {
		if _, err := pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	logger.Info("schema ensured", zap.Int("statements", len(stmts)))
	return nil
}
