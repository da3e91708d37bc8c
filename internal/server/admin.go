package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/railbook/internal/observability/logger"
	"go.uber.org/zap"
)

type reconcileRequest struct {
	PaymentLinkID string `json:"paymentLinkId"`
	PaymentID     string `json:"paymentId"`
}

// ReconcilePaymentLink re-runs reconciliation for a record whose webhook
// was missed or failed. Nothing is dispatched to live subscribers.
func (s *Server) ReconcilePaymentLink(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paymentLinkID := strings.TrimSpace(req.PaymentLinkID)
	if paymentLinkID == "" {
		AbortWithError(c, newValidationError("paymentLinkId", "required", "paymentLinkId is required"))
		return
	}

	ctx := c.Request.Context()
	result, err := s.webhooks.Reconcile(ctx, paymentLinkID, strings.TrimSpace(req.PaymentID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.FromContext(ctx).Info("manual reconciliation completed",
		zap.String("payment_link_id", paymentLinkID),
		zap.String("outcome", string(result.Outcome)),
	)
	c.JSON(http.StatusOK, result)
}

// GetPolicy shows the reconciliation policy currently in effect.
func (s *Server) GetPolicy(c *gin.Context) {
	policy := s.policy.Get()
	c.JSON(http.StatusOK, gin.H{
		"strategy":  policy.Strategy,
		"ackPolicy": policy.AckPolicy,
		"lockTtl":   policy.LockTTL.String(),
		"lockWait":  policy.LockWait.String(),
	})
}
