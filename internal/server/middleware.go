package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/railbook/internal/identity"
	"github.com/smallbiznis/railbook/internal/observability/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	contextCallerEmailKey = "caller_email"
	contextSubjectKey     = "caller_subject"
)

// IdentityRequired validates the bearer token and stores the caller email.
func (s *Server) IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := identity.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		meta, err := s.identity.ValidateUser(c.Request.Context(), token)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("bearer token rejected", zap.Error(err))
			AbortWithError(c, err)
			return
		}

		c.Set(contextCallerEmailKey, meta.Email)
		c.Set(contextSubjectKey, meta.Subject)
		c.Next()
	}
}

func callerEmail(c *gin.Context) string {
	return c.GetString(contextCallerEmailKey)
}

// AdminRequired compares the bearer token against the configured bcrypt hash.
// Without a hash the admin surface does not exist.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := strings.TrimSpace(s.cfg.AdminTokenHash)
		if hash == "" {
			AbortWithError(c, ErrNotFound)
			return
		}

		token, err := identity.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// RateLimit enforces the per-client request budget and advertises it in
// RateLimit-* headers.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(ceilSeconds(result.Reset.Seconds())))

		if !result.Allowed {
			endpoint := normalizeRateLimitEndpoint(c)
			logger.FromContext(ctx).Warn("rate limit exceeded", zap.String("endpoint", endpoint))
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)

			c.Header("Retry-After", strconv.Itoa(max(ceilSeconds(result.RetryAfter.Seconds()), 1)))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func ceilSeconds(seconds float64) int {
	whole := int(seconds)
	if float64(whole) < seconds {
		whole++
	}
	return max(whole, 0)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
