package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dlokwo/portfolio/internal/email"
	"github.com/dlokwo/portfolio/internal/errorz"
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

	// AdminEmail receives a notification for every new submission.
	AdminEmail email.Address
}

// Service accepts public submissions. Submissions are persisted first,
// notification emails are sent afterwards and are strictly best-effort:
// a failed delivery is reported to the error handler while the
// submission remains stored for later inspection.
type Service struct {
	store      Store
	emailer    Emailer
	wg         *sync.WaitGroup
	errHandler ErrFunc
	cfg        ServiceConfig

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(store Store, emailer Emailer, errHandler ErrFunc, cfg ServiceConfig) *Service {
	return &Service{
		store:      store,
		emailer:    emailer,
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

// MessageInput is a validated-on-submit contact message.
type MessageInput struct {
	Name       string
	Email      email.Address
	Body       string
	Attachment string
}

// Validate reports the field errors that make the input unsubmittable.
func (in MessageInput) Validate() error {
	var invalid errorz.InvalidInput

	if strings.TrimSpace(in.Name) == "" {
		invalid = append(invalid, errorz.Keyed{Key: "Name", Err: errors.New("name is required")})
	}
	if in.Email == "" {
		invalid = append(invalid, errorz.Keyed{Key: "Email", Err: errors.New("email is required")})
	}
	if strings.TrimSpace(in.Body) == "" {
		invalid = append(invalid, errorz.Keyed{Key: "Body", Err: errors.New("message is required")})
	}

	if len(invalid) > 0 {
		return invalid
	}
	return nil
}

// messageData is the template data for contact related emails.
type messageData struct {
	Name       string
	Email      email.Address
	Body       string
	Attachment string
}

// SubmitMessage validates and persists a contact message and then
// notifies the site owner and the sender. Validation failures have no
// side effects. A storage failure is returned as-is, it breaks the
// durability guarantee and can't be recovered here.
func (s *Service) SubmitMessage(ctx context.Context, in MessageInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	m := Message{
		ID:         uuid.New(),
		Name:       in.Name,
		Email:      in.Email,
		Body:       in.Body,
		Attachment: in.Attachment,
		Processed:  false,
		ReceivedAt: s.NowFunc(),
	}

	if err := s.store.CreateMessage(ctx, &m); err != nil {
		return err
	}

	data := messageData{
		Name:       m.Name,
		Email:      m.Email,
		Body:       m.Body,
		Attachment: m.Attachment,
	}

	// The admin notification and the acknowledgment are independent,
	// failure of one must not prevent attempting the other.
	s.sendAsync("contact-notify-admin", s.cfg.AdminEmail, data)
	s.sendAsync("contact-received", m.Email, data)

	return nil
}

// RecommendationInput is a validated-on-submit testimonial.
type RecommendationInput struct {
	Name    string
	Role    string
	Email   email.Address
	Content string
}

// Validate reports the field errors that make the input unsubmittable.
func (in RecommendationInput) Validate() error {
	var invalid errorz.InvalidInput

	if strings.TrimSpace(in.Name) == "" {
		invalid = append(invalid, errorz.Keyed{Key: "Name", Err: errors.New("name is required")})
	}
	if in.Email == "" {
		invalid = append(invalid, errorz.Keyed{Key: "Email", Err: errors.New("email is required")})
	}
	if strings.TrimSpace(in.Content) == "" {
		invalid = append(invalid, errorz.Keyed{Key: "Content", Err: errors.New("recommendation is required")})
	}

	if len(invalid) > 0 {
		return invalid
	}
	return nil
}

// recommendationData is the template data for recommendation related emails.
type recommendationData struct {
	Name    string
	Role    string
	Email   email.Address
	Content string
}

// SubmitRecommendation validates and persists a testimonial. New
// recommendations are never featured until reviewed. On success the
// site owner is notified and the requester receives an acknowledgment,
// both best-effort and independent of each other.
func (s *Service) SubmitRecommendation(ctx context.Context, in RecommendationInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	r := Recommendation{
		ID:         uuid.New(),
		Name:       in.Name,
		Role:       in.Role,
		Email:      in.Email,
		Content:    in.Content,
		Featured:   false,
		ReceivedAt: s.NowFunc(),
	}

	if err := s.store.CreateRecommendation(ctx, &r); err != nil {
		return err
	}

	data := recommendationData{
		Name:    r.Name,
		Role:    r.Role,
		Email:   r.Email,
		Content: r.Content,
	}

	s.sendAsync("recommend-notify-admin", s.cfg.AdminEmail, data)
	s.sendAsync("recommend-received", r.Email, data)

	return nil
}

// sendAsync sends an email from a worker goroutine so delivery doesn't
// block the response path. Failures are reported to the error handler,
// the submission preceding the send is already durable.
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
