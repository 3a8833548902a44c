package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dlokwo/portfolio/assets"
	"github.com/dlokwo/portfolio/internal"
	"github.com/dlokwo/portfolio/internal/db"
	"github.com/dlokwo/portfolio/internal/email"
	"github.com/dlokwo/portfolio/internal/email/postmark"
	emailview "github.com/dlokwo/portfolio/internal/email/view"
	"github.com/dlokwo/portfolio/internal/inbox"
	inboxdb "github.com/dlokwo/portfolio/internal/inbox/db"
	"github.com/dlokwo/portfolio/internal/migrate"
	"github.com/dlokwo/portfolio/internal/newsletter"
	newsletterdb "github.com/dlokwo/portfolio/internal/newsletter/db"
	"github.com/dlokwo/portfolio/internal/ratelimit"
	"github.com/dlokwo/portfolio/internal/web"
	websessions "github.com/dlokwo/portfolio/internal/web/sessions"
	webview "github.com/dlokwo/portfolio/internal/web/view"
	"github.com/dlokwo/portfolio/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	logger := slog.New(slog.NewTextHandler(w, nil))

	// A missing .env file is fine, the environment may be set up
	// directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Error("failed to load .env file", "error", err)
		return 1
	}

	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("failed to get config from environment", "error", err)
		return 1
	}

	writeDB, err := db.OpenSQLite(cfg.dbFile, true)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return 1
	}
	defer writeDB.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	migrated, err := migrate.RunFS(migrateCtx, writeDB, migrations.FS, migrate.Metadata{
		AppVersion: internal.BuildRevision,
		Timestamp:  time.Now(),
	})
	if err != nil {
		logger.Error("failed to run migrations", "error", err)
		return 1
	}

	for _, m := range migrated {
		logger.Info("ran migration", "sequence", m.Sequence, "filename", m.Filename)
	}

	var sender email.Sender
	switch cfg.email.sender {
	case "postmark":
		sender = postmark.NewSender(&http.Client{}, postmark.Settings{
			APIURL:        cfg.email.postmarkURL,
			ServerToken:   cfg.email.postmarkTok,
			MessageStream: cfg.email.messageStream,
		})
	default:
		sender = email.NewLogSender(logger)
	}

	emailSvc := email.NewService(emailview.NewFSRenderer(assets.EmailFS), sender, email.ServiceConfig{
		From:        cfg.email.from,
		SendTimeout: cfg.email.sendTimeout,
	})

	errHandler := func(err error) {
		logger.Error("background worker error", "error", err)
	}

	limiter := ratelimit.NewLimiter()

	newsSvc := newsletter.NewService(newsletterdb.New(writeDB), emailSvc, limiter, errHandler, newsletter.ServiceConfig{
		WorkerTimeout: cfg.workerTimeout,
		BaseURL:       cfg.baseURL,
		ReissueLimit:  cfg.limits.reissueLimit,
		ReissueWindow: cfg.limits.reissueWindow,
	})

	inboxSvc := inbox.NewService(inboxdb.New(writeDB), emailSvc, errHandler, inbox.ServiceConfig{
		WorkerTimeout: cfg.workerTimeout,
		AdminEmail:    cfg.adminEmail,
	})

	sessionStore := sessions.NewCookieStore(cfg.sessionKey.SecretValue())
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.secureCookie
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	handler := web.NewServer(&web.ServerDeps{
		Logger:       logger,
		ViewRenderer: webview.NewFSRenderer(assets.TemplateFS),
		Inbox:        inboxSvc,
		Newsletter:   newsSvc,
		Limiter:      limiter,
		SessionStore: websessions.NewStore(sessionStore),
		DistFS:       http.FS(assets.DistFS),
	}, web.ServerConfig{
		CSRFKey:       cfg.csrfKey,
		SecureCookie:  cfg.secureCookie,
		PostRule:      cfg.limits.post,
		ContactRule:   cfg.limits.contact,
		RecommendRule: cfg.limits.recommend,
	})

	srv := &http.Server{
		Addr:         cfg.http.addr,
		ReadTimeout:  cfg.http.readTimeout,
		WriteTimeout: cfg.http.writeTimeout,
		IdleTimeout:  cfg.http.idleTimeout,
		Handler:      handler,
	}

	// Two concurrent tasks:
	// - Listen and serving of the HTTP server.
	// - Waiting for a signal to stop the server.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"addr", cfg.http.addr,
			"buildRevision", internal.BuildRevision,
			"buildRevisionTime", internal.BuildRevisionTime,
		)
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutine.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.http.shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()

	// In-flight email workers get to finish before the process exits.
	newsSvc.Wait()
	inboxSvc.Wait()

	if err != nil && err != http.ErrServerClosed {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}
