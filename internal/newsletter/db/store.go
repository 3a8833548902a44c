// Package db provides the SQLite backed subscriber store.
package db

import (
	"context"
	"database/sql"

	"github.com/dlokwo/portfolio/internal/newsletter"
)

// Store is responsible for interacting with the subscribers table.
type Store struct {
	db *sql.DB
}

// New creates a new Store.
func New(db *sql.DB) *Store {
	return &Store{
		db: db,
	}
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (newsletter.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{
		tx: tx,
	}, nil
}
