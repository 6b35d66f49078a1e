package node

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrDefaultUsesValuePositive(t *testing.T) {
	require.Equal(t, 42, orDefault(42, 100))
}

func TestOrDefaultFallsBackOnZeroOrNegative(t *testing.T) {
	require.Equal(t, 100, orDefault(0, 100))
	require.Equal(t, 100, orDefault(-5, 100))
}

func TestNewZapErrorSinkStderrOnlyDoesNotPanic(t *testing.T) {
	sink, closeFn, err := NewZapErrorSink(LogConfig{})
	require.NoError(t, err)
	require.NotNil(t, sink)

	require.NotPanics(t, func() {
		sink(CodeBadBlock, "test event")
	})
	_ = closeFn() // zap.Sync on stderr can itself error on some platforms; not asserted
}

func TestNewZapErrorSinkWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "node.log")

	sink, closeFn, err := NewZapErrorSink(LogConfig{LogFile: logPath})
	require.NoError(t, err)

	sink(CodeIoError, "disk event")
	require.NoError(t, closeFn())

	require.FileExists(t, logPath)
}
