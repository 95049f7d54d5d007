package app

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, at, at))
}

func TestConfigWatcherFiresOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "screenpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	w, err := NewConfigWatcher(path, 5*time.Millisecond)
	require.NoError(t, err)

	var fired atomic.Int32
	w.OnChange(func() { fired.Add(1) })
	w.Start()
	w.Start()
	defer w.Stop()

	touch(t, path, time.Now().Add(time.Hour))
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Unchanged files do not fire again.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())

	touch(t, path, time.Now().Add(2*time.Hour))
	assert.Eventually(t, func() bool { return fired.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestConfigWatcherResetBaseline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screenpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	w, err := NewConfigWatcher(path, time.Second)
	require.NoError(t, err)

	later := time.Now().Add(time.Hour).Truncate(time.Second)
	touch(t, path, later)
	w.ResetBaseline()
	assert.True(t, w.Baseline().Equal(later))
	assert.False(t, w.checkForUpdate())

	touch(t, path, later.Add(time.Minute))
	assert.True(t, w.checkForUpdate())
	assert.False(t, w.checkForUpdate())
}

func TestConfigWatcherStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "screenpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	w, err := NewConfigWatcher(path, time.Millisecond)
	require.NoError(t, err)
	w.Stop()
	w.Start()
	w.Stop()
	w.Stop()

	// A stopped watcher can be started again.
	w.Start()
	w.Stop()
}

func TestNewConfigWatcherErrors(t *testing.T) {
	_, err := NewConfigWatcher(filepath.Join(t.TempDir(), "missing.yaml"), time.Second)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "screenpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, err = NewConfigWatcher(path, 0)
	assert.Error(t, err)
}
