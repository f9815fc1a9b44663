package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
}

func TestNewWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solver.log")
	log, err := New(Config{
		Level:       "debug",
		Encoding:    "console",
		OutputPaths: []string{filepath.Join(dir, "console.log")},
		File:        &FileConfig{Path: path, MaxSizeMB: 1},
	})
	require.NoError(t, err)

	log.Info("history row written", zap.Int("inner_iter", 3))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"history row written"`)
	assert.Contains(t, string(data), `"inner_iter":3`)
}

func TestWithContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), ZoneKey, 1)
	ctx = context.WithValue(ctx, RankKey, 0)
	ctx = context.WithValue(ctx, RunIDKey, "run-1")

	assert.NotNil(t, WithContext(ctx))
	assert.NotNil(t, Get())
}
