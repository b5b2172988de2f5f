package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ga4gh/htsget-core/internal/config"
	"github.com/ga4gh/htsget-core/internal/storage/local"
)

func TestExitCodeForBootstrapError(t *testing.T) {
	assert.Equal(t, 1, exitCodeFor(&bootstrapError{cause: errors.New("bad config")}))
	assert.Equal(t, 2, exitCodeFor(errors.New("boom")))
}

func TestBuildBackendLocal(t *testing.T) {
	cfg := config.Default()
	cfg.LocalRoot = t.TempDir()

	backend, err := buildBackend(context.Background(), cfg, nil)
	require.NoError(t, err)
	_, ok := backend.(*local.Backend)
	assert.True(t, ok)
}

func TestBuildBackendUnknownKind(t *testing.T) {
	cfg := config.Default()
	cfg.Storage = "nonsense"

	_, err := buildBackend(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestPrintDefaultConfigCommand(t *testing.T) {
	cmd := newPrintDefaultConfigCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "listen:")
	assert.Contains(t, out.String(), ":8080")
}
