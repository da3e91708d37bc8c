package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/railbook/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx, deliveryID := obscontext.EnsureDeliveryID(ctx)
	ctx = obscontext.WithCorrelationKey(ctx, "PL123")

	WithContext(ctx, base).Info("reconciled")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, deliveryID, fields["delivery_id"])
	assert.Equal(t, "PL123", fields["correlation_key"])
	assert.NotContains(t, fields, "trace_id")
}

func TestWithContextWithoutFieldsReturnsBase(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithContext(context.Background(), base))
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("  select * from booking_records"))
	assert.Equal(t, "UPDATE", operationFromSQL(`UPDATE "booking_records" SET order_status = ?`))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
