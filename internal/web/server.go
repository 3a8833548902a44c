// Package web exposes the public site over HTTP: the pages, the
// submission forms and the newsletter token endpoints.
//
// Every mutating route runs the same admission pipeline: honeypot
// first, then the sliding window rate limits, then form decoding and
// the service call. Spam and rate rejections happen before anything
// is persisted or emailed.
package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/schema"

	"github.com/dlokwo/portfolio/internal"
	"github.com/dlokwo/portfolio/internal/errorz"
	"github.com/dlokwo/portfolio/internal/inbox"
	"github.com/dlokwo/portfolio/internal/krypto"
	"github.com/dlokwo/portfolio/internal/newsletter"
	"github.com/dlokwo/portfolio/internal/ratelimit"
	"github.com/dlokwo/portfolio/internal/web/sessions"
)

const (
	csrfTokenCookieName = "pf-csrf"
	csrfTokenField      = "pf-csrf-token"
)

// ViewRenderer renders named views with the given data.
type ViewRenderer interface {
	Render(w io.Writer, name string, data any) error
}

// RateRule is a sliding window admission rule: at most Limit admitted
// requests per key per Window.
type RateRule struct {
	Limit  int
	Window time.Duration
}

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger       *slog.Logger
	ViewRenderer ViewRenderer
	Inbox        *inbox.Service
	Newsletter   *newsletter.Service
	Limiter      *ratelimit.Limiter
	SessionStore *sessions.Store
	DistFS       http.FileSystem
}

// ServerConfig is the configuration for the server.
type ServerConfig struct {
	CSRFKey      krypto.Key
	SecureCookie bool

	// PostRule applies to every form POST per client IP.
	PostRule RateRule
	// ContactRule additionally applies to contact submissions.
	ContactRule RateRule
	// RecommendRule additionally applies to recommendations.
	RecommendRule RateRule
}

type Server struct {
	deps    *ServerDeps
	cfg     ServerConfig
	mux     *http.ServeMux
	decoder *schema.Decoder
	handler http.Handler
}

func NewServer(deps *ServerDeps, cfg ServerConfig) *Server {
	s := &Server{
		deps:    deps,
		cfg:     cfg,
		mux:     http.NewServeMux(),
		decoder: schema.NewDecoder(),
	}

	s.mux.HandleFunc("GET /{$}", s.viewHandler("home"))

	s.mux.HandleFunc("GET /contact", s.viewHandler("contact"))
	s.mux.HandleFunc("POST /contact", s.handleContact)

	s.mux.HandleFunc("GET /recommend", s.viewHandler("recommend"))
	s.mux.HandleFunc("POST /recommend", s.handleRecommend)

	s.mux.HandleFunc("POST /subscribe", s.handleSubscribe)
	s.mux.HandleFunc("GET /subscribe/confirm/{token}", s.handleConfirm)
	s.mux.HandleFunc("GET /unsubscribe/{token}", s.handleUnsubscribe)

	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(deps.DistFS)))

	csrfMW := csrf.Protect(
		cfg.CSRFKey.SecretValue(),
		csrf.CookieName(csrfTokenCookieName),
		csrf.FieldName(csrfTokenField),
		csrf.Secure(cfg.SecureCookie),
	)

	s.handler = csrfMW(s.session(s.mux))

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	const flash = "Thanks, your message was sent. I'll get back to you soon."

	// Decode and validate before the spam and rate checks. A rejected
	// submission must not consume an admission slot.
	var form contactForm
	if err := s.decodeForm(r, &form); err != nil {
		s.handleInvalid(w, r, "contact", form, err)
		return
	}

	input := inbox.MessageInput{
		Name:       form.Name,
		Email:      form.Email,
		Body:       form.Body,
		Attachment: form.Attachment,
	}
	if err := input.Validate(); err != nil {
		s.handleInvalid(w, r, "contact", form, err)
		return
	}

	if s.trapped(w, r, "/contact", flash) {
		return
	}
	if !s.admit(w, r, "contact", s.cfg.ContactRule) {
		return
	}

	if err := s.deps.Inbox.SubmitMessage(r.Context(), input); err != nil {
		s.handleInvalid(w, r, "contact", form, err)
		return
	}

	s.flashAndRedirect(w, r, flash, "/contact")
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	const flash = "Thanks for the recommendation, it will show up after review."

	var form recommendForm
	if err := s.decodeForm(r, &form); err != nil {
		s.handleInvalid(w, r, "recommend", form, err)
		return
	}

	input := inbox.RecommendationInput{
		Name:    form.Name,
		Role:    form.Role,
		Email:   form.Email,
		Content: form.Content,
	}
	if err := input.Validate(); err != nil {
		s.handleInvalid(w, r, "recommend", form, err)
		return
	}

	if s.trapped(w, r, "/recommend", flash) {
		return
	}
	if !s.admit(w, r, "recommend", s.cfg.RecommendRule) {
		return
	}

	if err := s.deps.Inbox.SubmitRecommendation(r.Context(), input); err != nil {
		s.handleInvalid(w, r, "recommend", form, err)
		return
	}

	s.flashAndRedirect(w, r, flash, "/recommend")
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	// The flash is deliberately the same whether the address is new,
	// pending or already subscribed. The response must not become an
	// oracle for the subscriber list.
	const flash = "Almost there, check your inbox to confirm your subscription."

	var form subscribeForm
	if err := s.decodeForm(r, &form); err != nil {
		s.handleError(w, r, err)
		return
	}
	if form.Email == "" {
		s.handleError(w, r, errorz.InvalidInput{errorz.Keyed{
			Key: "Email",
			Err: errors.New("email is required"),
		}})
		return
	}

	// The trap answer must match the success answer exactly, redirect
	// target included.
	target := localTarget(form.Redirect)
	if s.trapped(w, r, target, flash) {
		return
	}
	if !s.admit(w, r, "subscribe", RateRule{}) {
		return
	}

	err := s.deps.Newsletter.Subscribe(r.Context(), form.Email)
	if err != nil && !errors.Is(err, newsletter.ErrAlreadySubscribed) {
		s.handleError(w, r, err)
		return
	}

	s.flashAndRedirect(w, r, flash, target)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	token, err := krypto.ParseToken(r.PathValue("token"))
	if err != nil {
		s.handleError(w, r, newsletter.ErrInvalidToken)
		return
	}

	if err := s.deps.Newsletter.Confirm(r.Context(), token); err != nil {
		s.handleError(w, r, err)
		return
	}

	err = s.writeView(w, r, "subscribe-confirmed", nil)
	if err != nil {
		s.handleError(w, r, err)
	}
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token, err := krypto.ParseToken(r.PathValue("token"))
	if err != nil {
		s.handleError(w, r, newsletter.ErrInvalidToken)
		return
	}

	if err := s.deps.Newsletter.Unsubscribe(r.Context(), token); err != nil {
		s.handleError(w, r, err)
		return
	}

	err = s.writeView(w, r, "unsubscribed", nil)
	if err != nil {
		s.handleError(w, r, err)
	}
}

// trapped checks the honeypot field. A triggered trap gets exactly the
// response a successful submission would have gotten, with no service
// call behind it. Reports true if the request was answered.
func (s *Server) trapped(w http.ResponseWriter, r *http.Request, target, flash string) bool {
	if err := r.ParseForm(); err != nil {
		s.handleError(w, r, err)
		return true
	}

	if r.PostFormValue(honeypotField) == "" {
		return false
	}

	s.flashAndRedirect(w, r, flash, target)
	return true
}

// admit runs the global POST rule and the route rule for the client.
// A zero route rule means only the global rule applies.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, scope string, rule RateRule) bool {
	ip := clientIP(r)

	ok := s.deps.Limiter.Admit("post|"+ip, s.cfg.PostRule.Limit, s.cfg.PostRule.Window)
	if ok && rule.Limit > 0 {
		ok = s.deps.Limiter.Admit(scope+"|"+ip, rule.Limit, rule.Window)
	}

	if !ok {
		s.handleError(w, r, errorz.ErrRateLimited)
		return false
	}
	return true
}

// handleInvalid re-renders the submitted form with its field errors.
// Other errors go to the generic error handler.
func (s *Server) handleInvalid(w http.ResponseWriter, r *http.Request, name string, form any, err error) {
	var invalidInput errorz.InvalidInput
	if !errors.As(err, &invalidInput) {
		s.handleError(w, r, err)
		return
	}

	fieldErrs := make(map[string]string, len(invalidInput))
	for _, e := range invalidInput {
		var keyed errorz.Keyed
		if errors.As(e, &keyed) {
			fieldErrs[keyed.Key] = keyed.Err.Error()
		}
	}

	data := struct {
		Form   any
		Errors map[string]string
	}{
		Form:   form,
		Errors: fieldErrs,
	}

	wErr := s.writeViewStatus(w, r, name, data, http.StatusUnprocessableEntity)
	if wErr != nil {
		s.handleError(w, r, wErr)
	}
}

func (s *Server) flashAndRedirect(w http.ResponseWriter, r *http.Request, flash, target string) {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	sess.AddFlash(flash)
	if err := s.deps.SessionStore.Save(r, w, sess); err != nil {
		s.handleError(w, r, err)
		return
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) viewHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.writeView(w, r, name, nil)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
	}
}

func (s *Server) writeView(w http.ResponseWriter, r *http.Request, name string, data any) error {
	return s.writeViewStatus(w, r, name, data, http.StatusOK)
}

func (s *Server) writeViewStatus(w http.ResponseWriter, r *http.Request, name string, data any, status int) error {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		return err
	}

	viewData := struct {
		Global any
		View   any
	}{
		Global: struct {
			Version   string
			CSRFToken string
			Flashes   []any
		}{
			Version:   internal.BuildRevision,
			CSRFToken: csrf.Token(r),
			Flashes:   sess.Flashes(),
		},
		View: data,
	}

	// Flashes mutate the session, save before writing the body.
	err = s.deps.SessionStore.Save(r, w, sess)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return s.deps.ViewRenderer.Render(w, name, viewData)
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errorz.ErrRateLimited):
		wErr := s.writeViewStatus(w, r, "rate-limited", nil, http.StatusTooManyRequests)
		if wErr != nil {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}
	case errors.Is(err, newsletter.ErrInvalidToken):
		wErr := s.writeViewStatus(w, r, "invalid-token", nil, http.StatusNotFound)
		if wErr != nil {
			http.Error(w, "invalid or expired link", http.StatusNotFound)
		}
	case errors.Is(err, errorz.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		var invalidInput errorz.InvalidInput
		if errors.As(err, &invalidInput) {
			http.Error(w, "invalid input", http.StatusBadRequest)
			return
		}

		s.deps.Logger.Error("internal server error", "url", r.URL.String(), "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
