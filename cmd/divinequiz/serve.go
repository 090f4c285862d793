package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/divine-quiz/internal/auth"
	"github.com/HendryAvila/divine-quiz/internal/config"
	"github.com/HendryAvila/divine-quiz/internal/httpapi"
	"github.com/HendryAvila/divine-quiz/internal/logging"
	"github.com/HendryAvila/divine-quiz/internal/observability"
	quizserver "github.com/HendryAvila/divine-quiz/internal/server"
	"github.com/HendryAvila/divine-quiz/internal/session"
	"github.com/HendryAvila/divine-quiz/internal/updater"
)

func newServeCmd(a *app) *cobra.Command {
	var checkUpdates bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the funnel and admin API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			defer a.logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a, checkUpdates)
		},
	}
	cmd.Flags().String("addr", config.Default().HTTP.Addr, "listen address")
	cmd.Flags().BoolVar(&checkUpdates, "check-updates", true, "look for a newer release on startup")
	return cmd
}

func runServe(ctx context.Context, a *app, checkUpdates bool) error {
	cfg := a.cfg
	if strings.EqualFold(cfg.Log.Mode, "prod") || strings.EqualFold(cfg.Log.Mode, "production") {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Metrics ---

	reg := prometheus.NewRegistry()
	var (
		metrics  *observability.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := observability.NewMetrics(cfg.Metrics.Namespace, reg)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		metrics, gatherer = m, reg
	}

	// --- Services ---

	svc, err := a.openServices(ctx, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			a.logger.Warn("closing store", "error", err)
		}
	}()

	sessions, err := session.NewManager(svc.questions,
		session.WithConfig(cfg.Sessions()),
		session.WithTransitions(svc.settings),
		session.WithTracker(svc.analytics),
		session.WithMetrics(metrics),
		session.WithLogger(a.logger.Named("session")),
	)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	defer sessions.Stop()

	authn := auth.New(cfg.Admin.Username, cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	if !authn.Enabled() {
		a.logger.Warn("admin API disabled, set admin.password_hash and admin.jwt_secret to enable it")
	}

	router, err := httpapi.NewRouter(httpapi.Deps{
		Sessions:  sessions,
		Questions: svc.questions,
		Settings:  svc.settings,
		Analytics: svc.analytics,
		Auth:      authn,
		Metrics:   metrics,
		Gatherer:  gatherer,
		Logger:    a.logger.Named("http"),
	}, httpapi.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimit:      cfg.HTTP.RateLimit,
		RateBurst:      cfg.HTTP.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}

	// --- Run ---

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpapi.Serve(gctx, cfg.HTTP.Addr, router, cfg.HTTP.ShutdownTimeout, a.logger)
	})
	g.Go(func() error {
		sweep(gctx, sessions, cfg.Session.SweepInterval, a.logger)
		return nil
	})
	if checkUpdates {
		g.Go(func() error {
			checkForUpdates(gctx, a.logger)
			return nil
		})
	}
	return g.Wait()
}

// sweep closes idle sessions every interval until ctx is done.
func sweep(ctx context.Context, m *session.Manager, interval time.Duration, logger *logging.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Info("swept idle sessions", "count", n, "remaining", m.Len())
			}
		}
	}
}

// checkForUpdates logs a notice when a newer release exists. Failures are
// logged at debug level only.
func checkForUpdates(ctx context.Context, logger *logging.Logger) {
	result, err := updater.NewChecker().Check(ctx, quizserver.Version)
	if err != nil {
		logger.Debug("update check failed", "error", err)
		return
	}
	if result.UpdateAvailable {
		logger.Info("update available",
			"current", result.CurrentVersion,
			"latest", result.LatestVersion,
			"release", result.ReleaseURL,
		)
	}
}
