package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "credsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Baseline_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	// Empty before any run recorded one
	baseline, err := s.Baseline()
	require.NoError(t, err)
	assert.Empty(t, baseline)

	require.NoError(t, s.SetBaseline("abc123"))

	baseline, err = s.Baseline()
	require.NoError(t, err)
	assert.Equal(t, "abc123", baseline)
}

func TestStore_TargetFingerprints_PerTarget(t *testing.T) {
	// Given: two targets synced at different fingerprints
	s := openTestStore(t)
	require.NoError(t, s.SetTargetFingerprint("org/a", "fp-1"))
	require.NoError(t, s.SetTargetFingerprint("org/b", "fp-2"))

	// Then: each target keeps its own fingerprint
	fp, err := s.TargetFingerprint("org/a")
	require.NoError(t, err)
	assert.Equal(t, "fp-1", fp)

	fp, err = s.TargetFingerprint("org/b")
	require.NoError(t, err)
	assert.Equal(t, "fp-2", fp)

	// And: an unknown target reads as never-synced
	fp, err = s.TargetFingerprint("org/unknown")
	require.NoError(t, err)
	assert.Empty(t, fp)
}

func TestStore_Targets_ListsAll(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetTargetFingerprint("org/a", "fp-1"))
	require.NoError(t, s.SetTargetFingerprint("org/b", "fp-2"))

	targets, err := s.Targets()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"org/a": "fp-1", "org/b": "fp-2"}, targets)
}

func TestStore_DeleteTarget_ForcesResync(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetTargetFingerprint("org/a", "fp-1"))

	require.NoError(t, s.DeleteTarget("org/a"))

	fp, err := s.TargetFingerprint("org/a")
	require.NoError(t, err)
	assert.Empty(t, fp)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	// Given: state written and closed
	path := filepath.Join(t.TempDir(), "credsync.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetBaseline("fp-base"))
	require.NoError(t, s.SetTargetFingerprint("org/a", "fp-1"))
	require.NoError(t, s.Close())

	// When: reopened
	s, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// Then: everything survived
	baseline, err := s.Baseline()
	require.NoError(t, err)
	assert.Equal(t, "fp-base", baseline)

	fp, err := s.TargetFingerprint("org/a")
	require.NoError(t, err)
	assert.Equal(t, "fp-1", fp)
}

func TestInstanceLock_SecondAcquireFails(t *testing.T) {
	dir := t.TempDir()

	first := NewInstanceLock(dir)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	t.Cleanup(func() { _ = first.Unlock() })

	second := NewInstanceLock(dir)
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired, "second instance acquired the lock")
}

func TestInstanceLock_UnlockWithoutLock_Safe(t *testing.T) {
	l := NewInstanceLock(t.TempDir())

	assert.NoError(t, l.Unlock())
}

func TestInstanceLock_ReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()

	first := NewInstanceLock(dir)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, first.Unlock())

	second := NewInstanceLock(dir)
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	_ = second.Unlock()
}
