package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-blog-cms/internal/config"
)

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), config.Config{})
	require.NoError(t, err)
	assert.Nil(t, shutdown)
}

func TestSetupTracing_WithEndpoint(t *testing.T) {
	cfg := config.Config{OTLPEndpoint: "localhost:4317", OTELServiceName: "blog-test"}
	// The gRPC exporter dials lazily, so construction succeeds without a collector.
	shutdown, err := SetupTracing(context.Background(), cfg)
	if err != nil {
		assert.Nil(t, shutdown)
		return
	}
	require.NotNil(t, shutdown)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestSamplingRatioFor(t *testing.T) {
	assert.Equal(t, 0.25, samplingRatioFor(config.Config{AppEnv: "prod"}))
	assert.Equal(t, 1.0, samplingRatioFor(config.Config{AppEnv: "dev"}))
}
