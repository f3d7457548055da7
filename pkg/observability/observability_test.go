package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestDisabledProviderIsNoOp(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, &Config{Enabled: false})
	require.NoError(t, err)

	// No exporters run; tracking must still be safe to call.
	opCtx, done := p.TrackOperation(ctx, "ledger.append",
		attribute.String("event.type", "exam_attempt_start"))
	assert.NotNil(t, opCtx)
	done(nil)

	_, done = p.TrackOperation(ctx, "ledger.verify")
	done(errors.New("boom"))

	require.NoError(t, p.Shutdown(ctx))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "examledger", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.True(t, cfg.Enabled)
}
