package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credsync/credsync/internal/creds"
)

type changeEvent struct {
	file        creds.File
	raw         []byte
	fingerprint string
}

// testOptions keeps watcher tests fast while leaving real margin for fsnotify
// delivery latency.
func testOptions() Options {
	return Options{
		DebounceWindow: 40 * time.Millisecond,
		SettleWindow:   5 * time.Millisecond,
		SettleAttempts: 10,
	}
}

func newTestWatcher(t *testing.T, path string, opts Options) (*Watcher, chan changeEvent, chan error) {
	t.Helper()

	changes := make(chan changeEvent, 16)
	errs := make(chan error, 16)

	w, err := New(path, Callbacks{
		OnChange: func(file creds.File, raw []byte, fingerprint string) {
			changes <- changeEvent{file: file, raw: raw, fingerprint: fingerprint}
		},
		OnError: func(err error) {
			errs <- err
		},
	}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	return w, changes, errs
}

func waitChange(t *testing.T, changes <-chan changeEvent) changeEvent {
	t.Helper()
	select {
	case ev := <-changes:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change callback")
		return changeEvent{}
	}
}

func assertSilence(t *testing.T, changes <-chan changeEvent, d time.Duration) {
	t.Helper()
	select {
	case ev := <-changes:
		t.Fatalf("unexpected change callback with fingerprint %s", ev.fingerprint)
	case <-time.After(d):
	}
}

func writeAtomic(t *testing.T, path string, content []byte) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, content, 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func oauthContent(access string) []byte {
	return []byte(fmt.Sprintf(`{"anthropic":{"type":"oauth","access":%q,"refresh":"rt","expires":1767225600}}`, access))
}

func TestWatcher_ExistingFile_FiresInitialChange(t *testing.T) {
	// Given: a credential file that exists before watching starts
	path := filepath.Join(t.TempDir(), "credentials.json")
	content := oauthContent("tok-initial")
	writeAtomic(t, path, content)

	// When: a watcher starts with no baseline
	_, changes, _ := newTestWatcher(t, path, testOptions())

	// Then: exactly one change fires with the file's own fingerprint
	ev := waitChange(t, changes)
	assert.Equal(t, creds.Fingerprint(content), ev.fingerprint)
	assert.Equal(t, content, ev.raw)
	assert.Contains(t, ev.file, "anthropic")
	assertSilence(t, changes, 200*time.Millisecond)
}

func TestWatcher_BaselineMatchesExisting_SuppressesInitial(t *testing.T) {
	// Given: a file whose fingerprint is already known from a prior run
	path := filepath.Join(t.TempDir(), "credentials.json")
	content := oauthContent("tok-known")
	writeAtomic(t, path, content)

	opts := testOptions()
	opts.Baseline = creds.Fingerprint(content)

	// When: watching starts with that baseline
	_, changes, _ := newTestWatcher(t, path, opts)

	// Then: no change callback fires for the unchanged content
	assertSilence(t, changes, 300*time.Millisecond)
}

func TestWatcher_IdenticalRewrites_NoFurtherCallbacks(t *testing.T) {
	// Given: a watched file that already produced its initial change
	path := filepath.Join(t.TempDir(), "credentials.json")
	content := oauthContent("tok-same")
	writeAtomic(t, path, content)

	_, changes, _ := newTestWatcher(t, path, testOptions())
	waitChange(t, changes)

	// When: the same bytes are written again several times
	for i := 0; i < 3; i++ {
		writeAtomic(t, path, content)
		time.Sleep(100 * time.Millisecond)
	}

	// Then: no further callbacks fire
	assertSilence(t, changes, 300*time.Millisecond)
}

func TestWatcher_ContentChange_FiresWithNewFingerprint(t *testing.T) {
	// Given: a watcher whose baseline matches the current content
	path := filepath.Join(t.TempDir(), "credentials.json")
	before := oauthContent("tok-before")
	writeAtomic(t, path, before)

	opts := testOptions()
	opts.Baseline = creds.Fingerprint(before)
	_, changes, _ := newTestWatcher(t, path, opts)

	// When: different content is written
	after := oauthContent("tok-after")
	writeAtomic(t, path, after)

	// Then: exactly one change fires, carrying the new raw text and fingerprint
	ev := waitChange(t, changes)
	assert.Equal(t, creds.Fingerprint(after), ev.fingerprint)
	assert.Equal(t, after, ev.raw)
	assertSilence(t, changes, 200*time.Millisecond)
}

func TestWatcher_RapidBurst_CoalescesToFinalContent(t *testing.T) {
	// Given: a watched file past its initial change
	path := filepath.Join(t.TempDir(), "credentials.json")
	writeAtomic(t, path, oauthContent("tok-0"))

	opts := testOptions()
	opts.DebounceWindow = 100 * time.Millisecond
	_, changes, _ := newTestWatcher(t, path, opts)
	waitChange(t, changes)

	// When: five distinct writes land within the debounce window
	var last []byte
	for i := 1; i <= 5; i++ {
		last = oauthContent(fmt.Sprintf("tok-%d", i))
		writeAtomic(t, path, last)
		time.Sleep(5 * time.Millisecond)
	}

	// Then: at most two callbacks fire and the final one sees the last write
	var got []changeEvent
	deadline := time.After(time.Second)
collect:
	for {
		select {
		case ev := <-changes:
			got = append(got, ev)
		case <-deadline:
			break collect
		}
	}
	require.NotEmpty(t, got, "burst produced no callback")
	assert.LessOrEqual(t, len(got), 2, "burst was not coalesced")
	assert.Equal(t, creds.Fingerprint(last), got[len(got)-1].fingerprint)
}

func TestWatcher_Stop_NoCallbacksAfterward(t *testing.T) {
	// Given: a running watcher
	path := filepath.Join(t.TempDir(), "credentials.json")
	writeAtomic(t, path, oauthContent("tok-live"))

	w, changes, _ := newTestWatcher(t, path, testOptions())
	waitChange(t, changes)

	// When: the watcher is stopped and the file changes again
	require.NoError(t, w.Stop())
	writeAtomic(t, path, oauthContent("tok-after-stop"))

	// Then: silence
	assertSilence(t, changes, 300*time.Millisecond)
}

func TestWatcher_Stop_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	writeAtomic(t, path, oauthContent("tok"))

	w, _, _ := newTestWatcher(t, path, testOptions())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatcher_MalformedContent_ReportsErrorWithoutPoisoningState(t *testing.T) {
	// Given: a watcher past its initial change
	path := filepath.Join(t.TempDir(), "credentials.json")
	writeAtomic(t, path, oauthContent("tok-good"))

	_, changes, errs := newTestWatcher(t, path, testOptions())
	waitChange(t, changes)

	// When: a malformed document lands
	writeAtomic(t, path, []byte(`{"anthropic":{"type":`))

	// Then: the error callback fires and no change is reported
	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error callback")
	}
	assertSilence(t, changes, 100*time.Millisecond)

	// And: a later valid write still produces a change
	fixed := oauthContent("tok-fixed")
	writeAtomic(t, path, fixed)
	ev := waitChange(t, changes)
	assert.Equal(t, creds.Fingerprint(fixed), ev.fingerprint)
}

func TestWatcher_FileAbsentAtStart_FiresOnCreation(t *testing.T) {
	// Given: a watcher for a path that does not exist yet
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")

	_, changes, _ := newTestWatcher(t, path, testOptions())
	assertSilence(t, changes, 150*time.Millisecond)

	// When: the file appears
	content := oauthContent("tok-new")
	writeAtomic(t, path, content)

	// Then: the creation produces a change
	ev := waitChange(t, changes)
	assert.Equal(t, creds.Fingerprint(content), ev.fingerprint)
}

func TestWatcher_UnrelatedSiblingFiles_Ignored(t *testing.T) {
	// Given: a watched file in a directory with other churn
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	writeAtomic(t, path, oauthContent("tok"))

	_, changes, _ := newTestWatcher(t, path, testOptions())
	waitChange(t, changes)

	// When: sibling files in the same directory change
	for i := 0; i < 3; i++ {
		writeAtomic(t, filepath.Join(dir, fmt.Sprintf("other-%d.txt", i)), []byte("noise"))
	}

	// Then: no callback fires
	assertSilence(t, changes, 300*time.Millisecond)
}

func TestNew_MissingChangeCallback_Errors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "credentials.json"), Callbacks{}, Options{})

	assert.ErrorIs(t, err, ErrNoChangeCallback)
}
