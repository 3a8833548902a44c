package db

import (
	"database/sql"

	"github.com/dlokwo/portfolio/internal/krypto"
	"github.com/dlokwo/portfolio/internal/newsletter"
)

type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// CreateSubscriber creates a subscriber in the database.
// It returns errorz.ErrConstraintViolated if the email or token is
// already taken.
func (t *Tx) CreateSubscriber(s *newsletter.Subscriber) error {
	return insertSubscriber(t.tx.Exec, s)
}

// UpdateSubscriber updates a subscriber in the database, guarded on
// currentToken. It returns errorz.ErrNotFound if no stored subscriber
// carries currentToken anymore.
func (t *Tx) UpdateSubscriber(s *newsletter.Subscriber, currentToken krypto.Token) error {
	return updateSubscriber(t.tx.Exec, s, currentToken)
}

// FindSubscribers queries for subscribers based on the provided filter.
// It returns an empty slice if no subscribers are found.
func (t *Tx) FindSubscribers(filter *newsletter.SubscriberFilter) ([]newsletter.Subscriber, error) {
	return selectSubscribers(t.tx.Query, filter)
}
