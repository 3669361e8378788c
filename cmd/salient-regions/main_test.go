package main

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/salient-regions/internal/config"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestPrintConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Analyzer.Keep = 4

	var buf bytes.Buffer
	require.NoError(t, printConfig(&buf, cfg))

	parsed, err := config.Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 4, parsed.Analyzer.Keep)
}

func TestPrintConfig_WriteError(t *testing.T) {
	err := printConfig(failingWriter{}, config.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write configuration")
	assert.Contains(t, err.Error(), "disk full")
}
