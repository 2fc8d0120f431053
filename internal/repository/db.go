package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

// ConstraintName returns the violated constraint, if err carries one.
func ConstraintName(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// dateRange appends optional inclusive date bounds on column to the query.
func dateRange(column, from, to string, conditions []string, args []interface{}) ([]string, []interface{}) {
	if from != "" {
		args = append(args, from)
		conditions = append(conditions, fmt.Sprintf("%s >= $%d::date", column, len(args)))
	}
	if to != "" {
		args = append(args, to)
		conditions = append(conditions, fmt.Sprintf("%s <= $%d::date", column, len(args)))
	}
	return conditions, args
}
