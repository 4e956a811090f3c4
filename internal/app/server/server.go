package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	authdomain "payslips/internal/domain/auth"
	"payslips/internal/domain/notifications"
	"payslips/internal/domain/payroll"
	"payslips/internal/domain/workbooks"
	"payslips/internal/platform/config"
	"payslips/internal/platform/crypto"
	"payslips/internal/platform/email"
	"payslips/internal/platform/jobs"
	"payslips/internal/platform/metrics"
	"payslips/internal/transport/http/api"
	authhandler "payslips/internal/transport/http/handlers/auth"
	payrollhandler "payslips/internal/transport/http/handlers/payroll"
	"payslips/internal/transport/http/middleware"
	"payslips/internal/web"
)

const (
	shutdownTimeout = 15 * time.Second
	jsonBodyLimit   = 64 << 10
)

type App struct {
	Config    config.Config
	Router    http.Handler
	Jobs      *jobs.Service
	Workbooks *workbooks.Store
	Metrics   *metrics.Collector
}

// smtpDialer adapts the relay dialer to the session shape the payroll
// handlers depend on.
type smtpDialer struct {
	dialer *email.Dialer
}

func (d smtpDialer) Open(ctx context.Context, creds email.Credentials) (payroll.Session, error) {
	sess, err := d.dialer.Dial(ctx, creds)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// New wires the application. The job worker is started on ctx and stops
// when ctx is cancelled.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	authService, err := authdomain.NewService(cfg.AdminUsername, cfg.AdminPassword, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("auth setup: %w", err)
	}

	letterhead := payroll.Letterhead{
		Name:         cfg.Org.Name,
		Address:      cfg.Org.Address,
		Phone:        cfg.Org.Phone,
		Email:        cfg.Org.Email,
		SupportEmail: cfg.Org.SupportEmail,
	}
	renderer := payroll.NewRenderer(payroll.Template{
		Letterhead: letterhead,
		Currency:   cfg.PayCurrency,
		PayType:    cfg.PayType,
		Layout:     payroll.Layout(cfg.PayslipLayout),
	})
	pipeline := payroll.NewPipeline(renderer, crypto.NewProtector(), payroll.Composer{
		Letterhead: letterhead,
		IncludePIN: cfg.EmailIncludePIN,
	})

	store := workbooks.NewStore(cfg.WorkbookTTL)
	jobService := jobs.New(cfg.JobQueueSize, cfg.JobRetention)
	jobService.Start(ctx)
	collector := metrics.New()

	payrollHandler := &payrollhandler.Handler{
		Workbooks:      workbooks.NewService(store),
		Pipeline:       pipeline,
		Orchestrator:   payroll.NewOrchestrator(pipeline),
		Jobs:           jobService,
		Dialer:         smtpDialer{dialer: email.NewDialer(cfg.SMTPHost, cfg.SMTPPort, email.Security(cfg.SMTPSecurity), cfg.SMTPTimeout, cfg.SMTPSendRate)},
		Metrics:        collector,
		Notifier:       notifications.New(cfg.Org.Name, cfg.BatchSummaryEmail),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(jsonBodyLimit, cfg.MaxUploadBytes))
	router.Use(middleware.Auth(authService))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(authService, cfg.IsProduction()).RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			payrollHandler.RegisterRoutes(r)
			if cfg.MetricsEnabled {
				r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
					api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
				})
			}
		})
	})

	router.Mount("/", web.Handler())

	return &App{
		Config:    cfg,
		Router:    router,
		Jobs:      jobService,
		Workbooks: store,
		Metrics:   collector,
	}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	jobs.Schedule(ctx, cfg.SweepInterval, "sweeper", func(now time.Time) {
		dropped := app.Workbooks.Sweep(now)
		expired := app.Jobs.Sweep(now)
		if dropped > 0 || expired > 0 {
			slog.Info("expired state swept", "workbooks", dropped, "jobs", expired)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("payslip server listening", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("payslip server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
