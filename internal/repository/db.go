package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-complaints-api/internal/models"
)

// ErrStaleVersion is returned when an optimistic update lost a race.
var ErrStaleVersion = errors.New("stale version")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func normalisePage(page, size, fallback int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = fallback
	}
	if size > models.MaxPageSize {
		size = models.MaxPageSize
	}
	return page, size
}

func withTx(ctx context.Context, db *sqlx.DB, name string, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", name, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}

func selectBuilt(ctx context.Context, q sqlx.QueryerContext, dest any, b sq.Sqlizer, name string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", name, err)
	}
	if err := sqlx.SelectContext(ctx, q, dest, query, args...); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func getBuilt(ctx context.Context, q sqlx.QueryerContext, dest any, b sq.Sqlizer, name string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", name, err)
	}
	if err := sqlx.GetContext(ctx, q, dest, query, args...); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
