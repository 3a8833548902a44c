package newsletter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dlokwo/portfolio/internal/email"
	"github.com/dlokwo/portfolio/internal/errorz"
	"github.com/dlokwo/portfolio/internal/krypto"
	"github.com/dlokwo/portfolio/internal/ratelimit"
)

var (
	// ErrInvalidToken indicates a token is unknown, was rotated away or
	// was already consumed. The caller can't distinguish between these
	// cases on purpose.
	ErrInvalidToken = errors.New("invalid token")

	// ErrAlreadySubscribed indicates the email address already belongs
	// to an active subscriber. It is informational, the subscription is
	// unchanged.
	ErrAlreadySubscribed = errors.New("already subscribed")
)

// Emailer is used to send templated emails.
type Emailer interface {
	Send(ctx context.Context, template string, to email.Address, data any) error
}

// ErrFunc is a function that handles errors from worker goroutines.
type ErrFunc func(error)

// ServiceConfig is the configuration for the Service.
type ServiceConfig struct {
	// WorkerTimeout is the max duration worker goroutines are allowed
	// to take before they are cancelled.
	WorkerTimeout time.Duration

	// BaseURL is the public base URL of the site, used to build
	// confirmation and unsubscribe links. No trailing slash.
	BaseURL string

	// ReissueLimit and ReissueWindow rate limit how often a
	// confirmation token may be (re)issued per email address.
	// Without this a third party could flood a victim's inbox with
	// confirmation emails by repeatedly subscribing their address.
	ReissueLimit  int
	ReissueWindow time.Duration
}

// Service implements the subscription lifecycle rules.
type Service struct {
	store      Store
	emailer    Emailer
	limiter    *ratelimit.Limiter
	wg         *sync.WaitGroup
	errHandler ErrFunc
	cfg        ServiceConfig

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(s Store, emailer Emailer, limiter *ratelimit.Limiter, errHandler ErrFunc, cfg ServiceConfig) *Service {
	return &Service{
		store:      s,
		emailer:    emailer,
		limiter:    limiter,
		wg:         &sync.WaitGroup{},
		errHandler: errHandler,
		cfg:        cfg,
		NowFunc:    time.Now,
	}
}

// Wait waits for all open workers to finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// confirmationData is the template data for the confirmation email.
type confirmationData struct {
	ConfirmURL string
}

// welcomeData is the template data for the welcome email.
type welcomeData struct {
	UnsubscribeURL string
}

// Subscribe begins or restarts the opt-in process for the provided
// email address:
//   - No subscriber yet: a new unconfirmed subscriber is created.
//   - Unconfirmed or unsubscribed subscriber: the record is reused and a
//     fresh token is issued, the subscriber is (back) in unconfirmed.
//   - Active subscriber: nothing changes and ErrAlreadySubscribed is
//     returned as an informational signal.
//
// On success a confirmation email is sent from a worker goroutine.
// Delivery failure does not undo the persisted subscriber, the user can
// simply subscribe again to receive a new confirmation email.
//
// An address that does not parse is rejected before any other step. A
// subscriber row with a broken address would be unreachable by email
// and would break every store read that scans it.
func (s *Service) Subscribe(ctx context.Context, addr email.Address) error {
	parsed, err := email.ParseAddress(string(addr))
	if err != nil {
		return errorz.InvalidInput{errorz.Keyed{
			Key: "Email",
			Err: errors.New("a valid email address is required"),
		}}
	}
	addr = parsed.Normalize()

	// Issuing a token means sending an email to addr. That is rate
	// limited per email address, not only per submitting actor, so that
	// repeated subscribes can't flood a victim's inbox. Rejections are
	// silent to avoid turning the limiter into an enumeration oracle.
	if !s.limiter.Admit("subscribe-email|"+string(addr), s.cfg.ReissueLimit, s.cfg.ReissueWindow) {
		return nil
	}

	token, err := krypto.GenerateToken()
	if err != nil {
		return err
	}

	now := s.NowFunc()

	err = s.inTx(ctx, func(tx Tx) error {
		subs, txErr := tx.FindSubscribers(&SubscriberFilter{
			Emails: []email.Address{addr},
		})
		if txErr != nil {
			return txErr
		}

		if len(subs) == 0 {
			return tx.CreateSubscriber(&Subscriber{
				ID:        uuid.New(),
				Email:     addr,
				State:     StateUnconfirmed,
				Token:     token,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}

		sub := subs[0]
		if sub.State == StateActive {
			return ErrAlreadySubscribed
		}

		// Reuse the record, reissue the token. The old token is
		// invalid from here on.
		currentToken := sub.Token
		sub.State = StateUnconfirmed
		sub.Token = token
		sub.UpdatedAt = now

		return tx.UpdateSubscriber(&sub, currentToken)
	})
	if err != nil {
		return err
	}

	s.sendAsync("subscribe-confirmation", addr, confirmationData{
		ConfirmURL: fmt.Sprintf("%s/subscribe/confirm/%s", s.cfg.BaseURL, token),
	})

	return nil
}

// Confirm activates the subscriber identified by the token. The token
// is consumed, a second Confirm with the same token fails with
// ErrInvalidToken. On success a welcome email carrying the unsubscribe
// link is sent from a worker goroutine.
func (s *Service) Confirm(ctx context.Context, token krypto.Token) error {
	sub, err := s.transition(ctx, token, StateUnconfirmed, StateActive)
	if err != nil {
		return err
	}

	s.sendAsync("subscribe-welcome", sub.Email, welcomeData{
		UnsubscribeURL: fmt.Sprintf("%s/unsubscribe/%s", s.cfg.BaseURL, sub.Token),
	})

	return nil
}

// Unsubscribe deactivates the subscriber identified by the token. The
// token is rotated so a leaked unsubscribe link can't be replayed to
// tamper with a future resubscription. No email is sent.
func (s *Service) Unsubscribe(ctx context.Context, token krypto.Token) error {
	_, err := s.transition(ctx, token, StateActive, StateUnsubscribed)
	return err
}

// transition moves the subscriber identified by token from the expected
// state to the next state and rotates the token. Both changes are
// applied as a single guarded write, there is no observable state where
// the record has the new state but the old token or vice versa.
//
// Any lookup or guard failure is reported as ErrInvalidToken, two
// concurrent transitions racing on the same token result in exactly one
// success.
func (s *Service) transition(ctx context.Context, token krypto.Token, from, to State) (Subscriber, error) {
	newToken, err := krypto.GenerateToken()
	if err != nil {
		return Subscriber{}, err
	}

	var sub Subscriber

	err = s.inTx(ctx, func(tx Tx) error {
		subs, txErr := tx.FindSubscribers(&SubscriberFilter{
			Tokens: []krypto.Token{token},
		})
		if txErr != nil {
			return txErr
		}

		if len(subs) != 1 || subs[0].State != from {
			return ErrInvalidToken
		}

		sub = subs[0]
		sub.State = to
		sub.Token = newToken
		sub.UpdatedAt = s.NowFunc()

		txErr = tx.UpdateSubscriber(&sub, token)
		if errors.Is(txErr, errorz.ErrNotFound) {
			// Lost a race against a concurrent transition.
			return ErrInvalidToken
		}

		return txErr
	})
	if err != nil {
		return Subscriber{}, err
	}

	return sub, nil
}

// sendAsync sends an email from a worker goroutine so delivery doesn't
// block the response path. Failures are reported to the error handler,
// never to the caller, the state change preceding the send is already
// durable and must not be rolled back.
func (s *Service) sendAsync(template string, to email.Address, data any) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WorkerTimeout)
		defer cancel()

		if err := s.emailer.Send(ctx, template, to, data); err != nil {
			s.errHandler(fmt.Errorf("failed to send %s email: %w", template, err))
		}
	}()
}

func (s *Service) inTx(ctx context.Context, f func(tx Tx) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	err = f(tx)
	if err != nil {
		rBackErr := tx.Rollback()
		if rBackErr != nil {
			err = errors.Join(err, rBackErr)
		}
		return err
	}

	return tx.Commit()
}
