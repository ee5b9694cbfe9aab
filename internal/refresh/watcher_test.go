package refresh

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"orgpulse/internal/personnel"
)

const baseRegistry = `
people:
  - id: ceo-1
    name: Dana
    role: ceo
    score: 78
`

const grownRegistry = `
people:
  - id: ceo-1
    name: Dana
    role: ceo
    score: 78
  - id: coo-1
    name: Sam
    role: coo
    score: 64
    manager_id: ceo-1
`

type recorder struct {
	mu   sync.Mutex
	regs []*personnel.Registry
}

func (r *recorder) reload(reg *personnel.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs = append(r.regs, reg)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.regs)
}

func (r *recorder) last() *personnel.Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[len(r.regs)-1]
}

func writeRegistry(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "people.yml"), []byte(contents), 0o644))
}

func TestCheckReloadsOnlyOnContentChange(t *testing.T) {
	dir := t.TempDir()
	writeRegistry(t, dir, baseRegistry)

	rec := &recorder{}
	w, err := NewWatcher(dir, 10*time.Millisecond, rec.reload, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	reloaded, err := w.Check()
	require.NoError(t, err)
	assert.False(t, reloaded, "baseline content should not reload")

	writeRegistry(t, dir, grownRegistry)
	reloaded, err = w.Check()
	require.NoError(t, err)
	assert.True(t, reloaded)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, 2, rec.last().Len())

	reloaded, err = w.Check()
	require.NoError(t, err)
	assert.False(t, reloaded)

	stats := w.Stats()
	assert.Equal(t, 1, stats.Reloads)
	assert.Equal(t, 2, stats.Skipped)
}

func TestCheckKeepsPreviousSnapshotOnInvalidRegistry(t *testing.T) {
	dir := t.TempDir()
	writeRegistry(t, dir, baseRegistry)

	rec := &recorder{}
	w, err := NewWatcher(dir, 10*time.Millisecond, rec.reload, nil)
	require.NoError(t, err)
	defer w.Stop()

	writeRegistry(t, dir, "people:\n  - id: x\n    name: X\n    role: ceo\n    score: 50\n    manager_id: ghost\n")
	reloaded, err := w.Check()
	require.Error(t, err)
	assert.False(t, reloaded)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, 1, w.Stats().Errors)

	writeRegistry(t, dir, grownRegistry)
	reloaded, err = w.Check()
	require.NoError(t, err)
	assert.True(t, reloaded)
}

func TestWatcherReloadsAfterWrite(t *testing.T) {
	dir := t.TempDir()
	writeRegistry(t, dir, baseRegistry)

	rec := &recorder{}
	w, err := NewWatcher(dir, 20*time.Millisecond, rec.reload, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeRegistry(t, dir, grownRegistry)

	require.Eventually(t, func() bool { return rec.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, rec.last().Len())
	assert.GreaterOrEqual(t, w.Stats().Events, 1)
}

func TestNewWatcherRequiresCallback(t *testing.T) {
	_, err := NewWatcher(t.TempDir(), time.Millisecond, nil, nil)
	require.Error(t, err)
}

func TestStopAfterFailedStartReturns(t *testing.T) {
	dir := t.TempDir()
	writeRegistry(t, dir, baseRegistry)

	w, err := NewWatcher(dir, 10*time.Millisecond, (&recorder{}).reload, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	require.Error(t, w.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked after a failed Start")
	}
}
