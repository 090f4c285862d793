package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/HendryAvila/divine-quiz/internal/auth"
	"github.com/HendryAvila/divine-quiz/internal/logging"
	"github.com/HendryAvila/divine-quiz/internal/observability"
)

// limiterCacheSize bounds how many client IPs keep their own bucket.
const limiterCacheSize = 4096

const ctxAdmin = "admin"

func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", route(c),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, "session_id", id)
		}

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Debug("http request", fields...)
		}
	}
}

func metricsMiddleware(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveHTTP(c.Request.Method, route(c), c.Writer.Status(), time.Since(start))
	}
}

// route is the matched pattern, so ids do not explode label cardinality.
func route(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}

// rateLimit returns a per-client-IP token bucket middleware.
func rateLimit(perSecond float64, burst int) (gin.HandlerFunc, error) {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }, nil
	}
	if burst <= 0 {
		burst = 1
	}
	buckets, err := lru.New[string, *rate.Limiter](limiterCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating limiter cache: %w", err)
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		lim, ok := buckets.Get(ip)
		if !ok {
			lim = rate.NewLimiter(rate.Limit(perSecond), burst)
			buckets.Add(ip, lim)
		}
		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}, nil
}

func requireAdmin(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil || !a.Enabled() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": auth.ErrDisabled.Error()})
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}
		claims, err := a.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		c.Set(ctxAdmin, claims.Username)
		c.Next()
	}
}
