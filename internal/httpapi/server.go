// Package httpapi exposes the funnel and its admin surface over HTTP.
//
// Public routes under /api drive one visitor's session. Admin routes
// under /admin require a bearer token from POST /admin/login.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HendryAvila/divine-quiz/internal/analytics"
	"github.com/HendryAvila/divine-quiz/internal/auth"
	"github.com/HendryAvila/divine-quiz/internal/logging"
	"github.com/HendryAvila/divine-quiz/internal/observability"
	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/HendryAvila/divine-quiz/internal/session"
	"github.com/HendryAvila/divine-quiz/internal/settings"
)

// Deps are the services the routes call into. Sessions, Questions and
// Settings are required; the rest may be nil.
type Deps struct {
	Sessions  *session.Manager
	Questions *questions.Repository
	Settings  *settings.Service
	Analytics *analytics.Recorder
	Auth      *auth.Authenticator
	Metrics   *observability.Metrics
	// Gatherer backs GET /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
}

// Options tune the router.
type Options struct {
	AllowedOrigins []string
	// RateLimit is requests per second per client IP on session creation
	// and login. Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(deps Deps, opts Options) (*gin.Engine, error) {
	if deps.Sessions == nil || deps.Questions == nil || deps.Settings == nil {
		return nil, errors.New("httpapi: sessions, questions and settings are required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	h := &handler{deps: deps}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(deps.Logger))
	r.Use(metricsMiddleware(deps.Metrics))
	r.Use(corsMiddleware(opts.AllowedOrigins))

	limit, err := rateLimit(opts.RateLimit, opts.RateBurst)
	if err != nil {
		return nil, err
	}

	r.GET("/healthz", h.health)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.GET("/code", h.computeCode)
		api.GET("/settings/pixel", h.publicPixel)
		api.GET("/settings/transitions", h.publicTransitions)

		api.POST("/sessions", limit, h.createSession)
		s := api.Group("/sessions/:id")
		s.GET("", h.getSession)
		s.POST("/advance", h.advance)
		s.PUT("/birthdate", h.setBirthDate)
		s.PUT("/name", h.setName)
		s.PUT("/color", h.setColor)
		s.PUT("/favorite-number", h.setFavoriteNumber)
		s.POST("/answers", h.answer)
		s.POST("/block-transition/complete", h.completeBlockTransition)
		s.POST("/abandon", h.abandon)
		s.POST("/conversion", h.convert)
	}

	r.POST("/admin/login", limit, h.login)
	admin := r.Group("/admin", requireAdmin(deps.Auth))
	{
		q := admin.Group("/questions")
		q.GET("", h.listQuestions)
		q.PUT("", h.saveQuestions)
		q.POST("", h.addQuestion)
		q.GET("/stats", h.questionStats)
		q.GET("/validate", h.validateQuestions)
		q.GET("/export", h.exportQuestions)
		q.POST("/import", h.importQuestions)
		q.POST("/restore", h.restoreQuestions)
		q.PUT("/order", h.reorderQuestions)
		q.GET("/:qid", h.getQuestion)
		q.PATCH("/:qid", h.updateQuestion)
		q.DELETE("/:qid", h.deleteQuestion)
		q.POST("/:qid/toggle", h.toggleQuestion)
		q.POST("/:qid/duplicate", h.duplicateQuestion)

		st := admin.Group("/settings")
		st.GET("/pixel", h.getPixel)
		st.PUT("/pixel", h.savePixel)
		st.GET("/transitions", h.getTransitions)
		st.PUT("/transitions", h.saveTransitions)
		st.DELETE("/transitions", h.resetTransitions)

		an := admin.Group("/analytics")
		an.GET("", h.analyticsSummary)
		an.GET("/leads", h.analyticsLeads)
		an.GET("/export", h.analyticsExport)
		an.DELETE("", h.analyticsClear)
	}
	return r, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	return cors.New(cfg)
}

// Serve runs handler on addr until ctx is cancelled, then drains in-flight
// requests for at most shutdownTimeout.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, logger *logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http: %w", err)
	}
	<-errCh
	logger.Info("http server stopped")
	return nil
}
