package newsletter

import (
	"context"

	"github.com/google/uuid"

	"github.com/dlokwo/portfolio/internal/email"
	"github.com/dlokwo/portfolio/internal/krypto"
)

// SubscriberFilter is used to filter subscribers.
// Returned subscribers must match all the provided fields.
// If a field is empty or nil, it's ignored.
type SubscriberFilter struct {
	IDs []uuid.UUID
	// Emails are matched against the normalized email column.
	Emails []email.Address
	// Tokens are matched exactly, there is no partial or
	// case-insensitive token matching.
	Tokens []krypto.Token
	States []State
}

// Store provides access to the subscriber store.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a transaction. If an error occurs on any of the Create/Update/Find
// methods, the transaction is considered to have failed and should be rolled
// back. Tx is not safe for concurrent use.
type Tx interface {
	Commit() error
	Rollback() error

	// CreateSubscriber creates a new subscriber.
	CreateSubscriber(s *Subscriber) error

	// UpdateSubscriber writes the subscriber guarded on currentToken.
	// The state transition and token rotation land as a single write,
	// if currentToken no longer matches the stored token the update
	// affects no rows and errorz.ErrNotFound is returned. This is what
	// makes two racing transitions on the same token resolve to
	// exactly one winner.
	UpdateSubscriber(s *Subscriber, currentToken krypto.Token) error

	// FindSubscribers queries for subscribers based on the provided filter.
	// It returns an empty slice if no subscribers are found.
	FindSubscribers(filter *SubscriberFilter) ([]Subscriber, error)
}
