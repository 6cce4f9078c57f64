package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credsync/credsync/internal/config"
)

func TestStatusCmd_MissingConfig_SuggestsSetup(t *testing.T) {
	// Given: no configuration file
	useTestConfig(t)

	cmd := newStatusCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	// When: executing
	err := cmd.Execute()

	// Then: the error points at setup
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credsync setup")
}

func TestStatusCmd_CredentialFileAbsent_Warns(t *testing.T) {
	// Given: a config whose credential file does not exist yet
	useTestConfig(t)
	writeTestConfig(t, nil)

	cmd := newStatusCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)

	// When: executing
	err := cmd.Execute()

	// Then: it reports the missing file without failing
	require.NoError(t, err)
	assert.Contains(t, out.String(), "does not exist")
}

func TestStatusCmd_NeverPushedTargets_ReportedStale(t *testing.T) {
	// Given: a credential file on disk but no recorded state
	useTestConfig(t)
	cfg := writeTestConfig(t, func(cfg *config.Config) {
		cfg.Targets = []string{"acme/api", "acme/web"}
	})
	require.NoError(t, os.WriteFile(cfg.Credentials.Path, []byte(testCredentialContent), 0o600))

	cmd := newStatusCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)

	// When: executing
	err := cmd.Execute()

	// Then: both targets show as never pushed and the summary is stale
	require.NoError(t, err)
	output := out.String()
	assert.Contains(t, output, "acme/api: never pushed")
	assert.Contains(t, output, "acme/web: never pushed")
	assert.Contains(t, output, "2 target(s) out of date")
}

func TestShortFingerprint_Abbreviates(t *testing.T) {
	// Given: a full-length digest and a short string
	long := "0123456789abcdef0123456789abcdef"

	// When/Then: the digest is truncated, short strings pass through
	assert.Equal(t, "0123456789ab", shortFingerprint(long))
	assert.Equal(t, "abc", shortFingerprint("abc"))
}
