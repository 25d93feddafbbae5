// Package postgres implements pipeline.Store on PostgreSQL via pgx.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/pipeline"
)

var _ pipeline.Store = (*PGStore)(nil)

// PGStore implements pipeline.Store using PostgreSQL via pgx.
type PGStore struct {
	db *pgxpool.Pool
}

// New creates a new PGStore backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// isNoRows checks if the error is a "no rows" error from pgx.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func orEmptyFields(f pipeline.Fields) pipeline.Fields {
	if f == nil {
		return pipeline.Fields{}
	}
	return f
}

func orEmptySlots(s []pipeline.Slot) []pipeline.Slot {
	if s == nil {
		return []pipeline.Slot{}
	}
	return s
}
