package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabled(t *testing.T) {
	provider, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestInitStdoutExporter(t *testing.T) {
	provider, err := Init(context.Background(), Config{
		Enabled:     true,
		Endpoint:    "",
		Environment: "test",
	})
	require.NoError(t, err)
	require.NotNil(t, provider)

	tracer := GetPipelineTracer()
	_, span := tracer.Start(context.Background(), "clustering")
	span.End()

	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestTracersAreNamed(t *testing.T) {
	assert.NotNil(t, GetHTTPTracer())
	assert.NotNil(t, GetPipelineTracer())
}

func TestProviderShutdownNilSafe(t *testing.T) {
	var provider *Provider
	assert.NoError(t, provider.Shutdown(context.Background()))
}
