package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitExportsSpans(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	shutdown, err := Init(ctx, Config{ServiceVersion: "test", Writer: &buf})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "generate-audio")
	span.End()

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, buf.String(), `"Name":"generate-audio"`)
	assert.Contains(t, buf.String(), "storymap")
}

func TestInitWithoutExporter(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, Config{ServiceName: "quiet"})
	require.NoError(t, err)
	_, span := otel.Tracer("test").Start(ctx, "noop")
	span.End()
	assert.NoError(t, shutdown(ctx))
}
