package wizard

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credsync/credsync/internal/config"
)

func pressEnter(m model) model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(model)
}

func filledModel(t *testing.T) model {
	t.Helper()
	m := newModel(config.Default())
	m.inputs[fieldCredentialsPath].SetValue("/home/u/.claude/.credentials.json")
	m.inputs[fieldSecretName].SetValue("CLAUDE_CREDENTIALS")
	m.inputs[fieldTargets].SetValue("org/alpha, org/beta")
	m.inputs[fieldTransport].SetValue("api")
	return m
}

func TestModel_EnterAdvancesThroughFieldsAndAccepts(t *testing.T) {
	// Given: a fully filled wizard
	m := filledModel(t)

	// When: pressing enter through every field
	for i := 0; i < fieldCount; i++ {
		assert.Equal(t, i, m.focus)
		m = pressEnter(m)
	}

	// Then: the wizard is accepted with the collected values applied
	assert.True(t, m.accepted)
	cfg := m.apply()
	assert.Equal(t, "/home/u/.claude/.credentials.json", cfg.Credentials.Path)
	assert.Equal(t, []string{"org/alpha", "org/beta"}, cfg.Targets)
	assert.Equal(t, config.TransportAPI, cfg.Transport.Kind)
	require.NoError(t, cfg.Validate())
}

func TestModel_EmptyRequiredField_BlocksAdvance(t *testing.T) {
	// Given: a wizard with an empty credentials path
	m := newModel(config.Default())

	// When: pressing enter on the empty first field
	m = pressEnter(m)

	// Then: focus stays and an error is shown
	assert.Equal(t, fieldCredentialsPath, m.focus)
	assert.NotEmpty(t, m.errMsg)
}

func TestModel_InvalidTarget_BlocksAdvance(t *testing.T) {
	m := filledModel(t)
	m.inputs[fieldTargets].SetValue("not-a-repo")
	m.focus = fieldTargets

	m = pressEnter(m)

	assert.Equal(t, fieldTargets, m.focus)
	assert.Contains(t, m.errMsg, "not-a-repo")
}

func TestModel_InvalidTransport_BlocksAccept(t *testing.T) {
	m := filledModel(t)
	m.inputs[fieldTransport].SetValue("smtp")
	m.focus = fieldTransport

	m = pressEnter(m)

	assert.False(t, m.accepted)
	assert.NotEmpty(t, m.errMsg)
}

func TestModel_EscCancels(t *testing.T) {
	m := filledModel(t)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.False(t, next.(model).accepted)
	assert.NotNil(t, cmd)
}

func TestModel_TabCyclesFocus(t *testing.T) {
	m := filledModel(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(model)
	assert.Equal(t, fieldSecretName, m.focus)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(model)
	assert.Equal(t, fieldCredentialsPath, m.focus)
}

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"comma separated", "org/a,org/b", []string{"org/a", "org/b"}},
		{"comma with spaces", "org/a, org/b", []string{"org/a", "org/b"}},
		{"whitespace separated", "org/a org/b", []string{"org/a", "org/b"}},
		{"trailing comma", "org/a,", []string{"org/a"}},
		{"empty", "", nil},
		{"only separators", " , ,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTargets(tt.raw)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
