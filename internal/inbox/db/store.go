// Package db provides the SQLite backed submission store.
package db

import (
	"context"
	"database/sql"

	"github.com/dlokwo/portfolio/internal/inbox"
)

// Store persists contact messages and recommendations. Submissions
// don't participate in multi-step transactions, every call is a single
// statement on the pool.
type Store struct {
	db *sql.DB
}

// New creates a new Store.
func New(db *sql.DB) *Store {
	return &Store{
		db: db,
	}
}

// CreateMessage creates a contact message in the database.
func (s *Store) CreateMessage(ctx context.Context, m *inbox.Message) error {
	return insertMessage(ctx, s.db, m)
}

// FindMessages queries for contact messages based on the provided filter.
// It returns an empty slice if no messages are found.
func (s *Store) FindMessages(ctx context.Context, filter *inbox.MessageFilter) ([]inbox.Message, error) {
	return selectMessages(ctx, s.db, filter)
}

// CreateRecommendation creates a recommendation in the database.
func (s *Store) CreateRecommendation(ctx context.Context, r *inbox.Recommendation) error {
	return insertRecommendation(ctx, s.db, r)
}

// FindRecommendations queries for recommendations based on the provided filter.
// It returns an empty slice if no recommendations are found.
func (s *Store) FindRecommendations(ctx context.Context, filter *inbox.RecommendationFilter) ([]inbox.Recommendation, error) {
	return selectRecommendations(ctx, s.db, filter)
}
