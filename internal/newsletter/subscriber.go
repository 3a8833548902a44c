// Package newsletter implements the double opt-in subscription
// lifecycle. A subscriber only becomes active after following a
// confirmation link sent to their email address.
package newsletter

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dlokwo/portfolio/internal/email"
	"github.com/dlokwo/portfolio/internal/krypto"
)

// State is the lifecycle state of a subscriber.
//
// Legal transitions are:
//
//	unconfirmed -> active       (Confirm)
//	active      -> unsubscribed (Unsubscribe)
//	unconfirmed, unsubscribed -> unconfirmed (Subscribe re-entry)
type State string

const (
	StateUnconfirmed  State = "unconfirmed"
	StateActive       State = "active"
	StateUnsubscribed State = "unsubscribed"
)

// ParseState parses a state from its string representation.
func ParseState(raw string) (State, error) {
	switch State(raw) {
	case StateUnconfirmed, StateActive, StateUnsubscribed:
		return State(raw), nil
	}
	return State(""), fmt.Errorf("unknown subscriber state %q", raw)
}

// Subscriber contains the data for a newsletter subscriber.
//
// Token authorizes exactly the pending action for the current state:
// confirming while unconfirmed, unsubscribing while active. It is
// rotated on every accepted transition, so a consumed token can never
// be replayed.
//
// Subscribers are never deleted, unsubscribing transitions them to
// StateUnsubscribed and a later subscribe request re-enters the
// lifecycle on the same record.
type Subscriber struct {
	ID        uuid.UUID
	Email     email.Address
	State     State
	Token     krypto.Token
	CreatedAt time.Time
	UpdatedAt time.Time
}
