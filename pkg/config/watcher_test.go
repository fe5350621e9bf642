package config

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	var reloads atomic.Int32
	w, err := NewPipelineWatcher(dir, func(string) error {
		reloads.Add(1)
		return nil
	}, nil)
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	writeFile(t, dir, "p.yaml", "name: p\nsteps: [{type: moderate}]")

	assert.Eventually(t, func() bool {
		return reloads.Load() >= 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestPipelineWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	var reloads atomic.Int32
	w, err := NewPipelineWatcher(dir, func(string) error {
		reloads.Add(1)
		return nil
	}, nil)
	require.NoError(t, err)
	w.debounce = 30 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	writeFile(t, dir, "README.md", "not a pipeline")

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, reloads.Load())
}

func TestPipelineWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewPipelineWatcher(dir, func(string) error { return nil }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
