package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitFromConfigMissingFile(t *testing.T) {
	sdk, err := InitFromConfig(context.Background(), filepath.Join(t.TempDir(), "otel.yaml"), discardLogger())
	require.NoError(t, err)
	assert.Nil(t, sdk)
	assert.NoError(t, sdk.Shutdown(context.Background()))
}

func TestInitFromConfigDisabledByEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "otel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))
	t.Setenv("OTEL_SDK_DISABLED", "true")

	sdk, err := InitFromConfig(context.Background(), path, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, sdk)
}

func TestInitFromConfigBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "otel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("file_format: [oops"), 0o644))

	_, err := InitFromConfig(context.Background(), path, discardLogger())
	assert.Error(t, err)
}

func TestTracer(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "test")
	defer span.End()
	assert.NotNil(t, span)
}
