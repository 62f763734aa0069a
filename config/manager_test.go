package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestManagerCreatesAndUpdates(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)

	path := filepath.Join(dir, "config.json")
	_, err = os.Stat(path)
	require.NoError(t, err, "config file not created")

	cfg := mgr.Get()
	cfg.ResultsDir = filepath.Join(dir, "results")
	cfg.MaxIterations = 5

	data, _ := json.Marshal(cfg)
	require.NoError(t, mgr.UpdateFromJSON(string(data)))

	updated := mgr.Get()
	assert.Equal(t, cfg.ResultsDir, updated.ResultsDir)
	assert.Equal(t, 5, updated.MaxIterations)

	reopened, err := NewManager(WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, 5, reopened.Get().MaxIterations)
}

func TestManagerRejectsInvalidUpdate(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)

	cfg := mgr.Get()
	cfg.ScoreWeights = map[string]float64{"valuation": 1}
	assert.ErrorIs(t, mgr.Update(cfg), ErrInvalidConfig)
	assert.Nil(t, mgr.Get().ScoreWeights)
}

func TestManagerReloadKeepsDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(mgr.Path(), []byte(`{"max_iterations":2}`), 0o644))
	require.NoError(t, mgr.Reload())

	cfg := mgr.Get()
	assert.Equal(t, 2, cfg.MaxIterations)
	assert.Equal(t, 50.0, cfg.QualityThreshold)
	assert.Equal(t, 120, cfg.CallTimeout)
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir), WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Config, 1)
	require.NoError(t, mgr.Watch(ctx, func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}))

	cfg := mgr.Get()
	cfg.QualityThreshold = 70
	require.NoError(t, writeConfigFile(mgr.Path(), cfg))

	select {
	case got := <-reloaded:
		assert.Equal(t, 70.0, got.QualityThreshold)
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on config change")
	}
}

func TestManagerIgnoresOwnWrites(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	var calls atomic.Int32
	require.NoError(t, mgr.Watch(context.Background(), func(Config) { calls.Add(1) }))

	cfg := mgr.Get()
	cfg.NewsLimit = 8
	require.NoError(t, mgr.Update(cfg))
	time.Sleep(200 * time.Millisecond)
	mgr.Close()

	assert.Equal(t, int32(1), calls.Load(), "own write must notify exactly once")
}

func TestManagerInvalidFileKeepsCurrent(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mgr.Path(), []byte(`{"max_iterations":0}`), 0o644))

	assert.ErrorIs(t, mgr.Reload(), ErrInvalidConfig)
	assert.Equal(t, 3, mgr.Get().MaxIterations)
}

func TestManagerCloseStopsWatcher(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, mgr.Watch(context.Background(), nil))
	mgr.Close()
}

func TestUpdateFromJSONRejectsGarbage(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.UpdateFromJSON("{not json"), ErrInvalidConfig)
}

func TestManagerNotifiesEveryListener(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)
	defer mgr.Close()

	var first, second atomic.Int32
	require.NoError(t, mgr.Watch(context.Background(), func(Config) { first.Add(1) }))
	require.NoError(t, mgr.Watch(context.Background(), func(Config) { second.Add(1) }))

	cfg := mgr.Get()
	cfg.NewsLimit = 9
	require.NoError(t, mgr.Update(cfg))

	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())
}
