package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/railbook/internal/config"
	"github.com/smallbiznis/railbook/internal/observability/logger"
	"github.com/smallbiznis/railbook/internal/webhook"
	"go.uber.org/zap"
)

const (
	signatureHeader     = "x-square-signature"
	maxWebhookBodyBytes = 1 << 20
)

// HandleEvent receives a commerce platform notification. The body is read
// raw because the signature covers the exact bytes.
func (s *Server) HandleEvent(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	result, err := s.webhooks.Ingest(ctx, webhook.Delivery{
		Host:      c.Request.Host,
		Signature: c.GetHeader(signatureHeader),
		RawBody:   body,
	})
	if errors.Is(err, webhook.ErrSignatureMismatch) {
		c.String(http.StatusNotFound, "Signature doesn't match")
		return
	}
	if result.EventType != "" {
		c.Set("event_type", result.EventType)
	}

	if err != nil {
		if s.ackPolicy() == config.AckPolicyAlways {
			logger.FromContext(ctx).Warn("webhook failure acknowledged", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) ackPolicy() string {
	if s.policy == nil {
		return config.AckPolicyStrict
	}
	return s.policy.Get().AckPolicy
}
