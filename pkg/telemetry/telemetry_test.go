package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"mlengine/pkg/config"
)

func TestSetupWithoutEndpointKeepsGlobal(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)
	assert.Equal(t, before, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func TestResourceNamesService(t *testing.T) {
	res := Resource()
	v, ok := res.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, ServiceName, v.AsString())
}
