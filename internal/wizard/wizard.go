// Package wizard implements the interactive first-run setup flow.
//
// It collects the credential file path, the secret name, the target
// repositories, and the transport choice, then hands back a validated
// configuration for the caller to persist. The wizard refuses to run without
// a terminal; scripted environments use `credsync setup` flags instead.
package wizard

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/credsync/credsync/internal/config"
)

// ErrNotInteractive is returned when stdin is not a terminal.
var ErrNotInteractive = errors.New("setup wizard requires an interactive terminal (use flags instead)")

const (
	fieldCredentialsPath = iota
	fieldSecretName
	fieldTargets
	fieldTransport
	fieldCount
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	focusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var fieldLabels = [fieldCount]string{
	"Credential file to watch",
	"Secret name",
	"Target repositories (owner/repo, comma separated)",
	"Transport (gh or api)",
}

// Run executes the wizard on the current terminal. It returns the completed
// configuration and true when the user accepted, or the unmodified base and
// false when they cancelled.
func Run(base *config.Config) (*config.Config, bool, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return base, false, ErrNotInteractive
	}

	final, err := tea.NewProgram(newModel(base)).Run()
	if err != nil {
		return base, false, fmt.Errorf("run setup wizard: %w", err)
	}

	m, ok := final.(model)
	if !ok || !m.accepted {
		return base, false, nil
	}

	cfg := m.apply()
	if err := cfg.Validate(); err != nil {
		return base, false, err
	}
	return cfg, true, nil
}

type model struct {
	inputs   [fieldCount]textinput.Model
	focus    int
	errMsg   string
	accepted bool
	base     *config.Config
}

func newModel(base *config.Config) model {
	m := model{base: base}

	defaults := [fieldCount]string{
		base.Credentials.Path,
		base.Credentials.SecretName,
		strings.Join(base.Targets, ", "),
		base.Transport.Kind,
	}
	placeholders := [fieldCount]string{
		"~/.claude/.credentials.json",
		"CLAUDE_CREDENTIALS",
		"org/repo, org/other-repo",
		config.TransportGH,
	}

	for i := 0; i < fieldCount; i++ {
		in := textinput.New()
		in.Placeholder = placeholders[i]
		in.SetValue(defaults[i])
		in.CharLimit = 512
		m.inputs[i] = in
	}
	m.inputs[0].Focus()
	return m
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.accepted = false
			return m, tea.Quit

		case tea.KeyEnter:
			if err := m.validateField(m.focus); err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
			m.errMsg = ""
			if m.focus == fieldCount-1 {
				m.accepted = true
				return m, tea.Quit
			}
			return m.setFocus(m.focus + 1)

		case tea.KeyTab, tea.KeyDown:
			return m.setFocus((m.focus + 1) % fieldCount)

		case tea.KeyShiftTab, tea.KeyUp:
			return m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m model) setFocus(i int) (tea.Model, tea.Cmd) {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m, m.inputs[i].Focus()
}

func (m model) validateField(i int) error {
	value := strings.TrimSpace(m.inputs[i].Value())
	switch i {
	case fieldCredentialsPath:
		if value == "" {
			return errors.New("credential file path is required")
		}
	case fieldSecretName:
		if value == "" {
			return errors.New("secret name is required")
		}
	case fieldTargets:
		targets := ParseTargets(value)
		if len(targets) == 0 {
			return errors.New("at least one target repository is required")
		}
		for _, target := range targets {
			if err := config.ValidateTarget(target); err != nil {
				return err
			}
		}
	case fieldTransport:
		if value != config.TransportGH && value != config.TransportAPI {
			return fmt.Errorf("transport must be %q or %q", config.TransportGH, config.TransportAPI)
		}
	}
	return nil
}

// apply copies the collected answers onto a clone of the base config.
func (m model) apply() *config.Config {
	cfg := *m.base
	cfg.Credentials.Path = expandHome(strings.TrimSpace(m.inputs[fieldCredentialsPath].Value()))
	cfg.Credentials.SecretName = strings.TrimSpace(m.inputs[fieldSecretName].Value())
	cfg.Targets = ParseTargets(m.inputs[fieldTargets].Value())
	cfg.Transport.Kind = strings.TrimSpace(m.inputs[fieldTransport].Value())
	return &cfg
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("credsync setup"))
	b.WriteString("\n\n")

	for i := 0; i < fieldCount; i++ {
		label := labelStyle
		if i == m.focus {
			label = focusStyle
		}
		b.WriteString(label.Render(fieldLabels[i]))
		b.WriteString("\n")
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n\n")
	}

	if m.errMsg != "" {
		b.WriteString(errStyle.Render(m.errMsg))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("enter: next field • tab/↑↓: move • esc: cancel"))
	b.WriteString("\n")
	return b.String()
}

// ParseTargets splits a comma or whitespace separated repository list.
func ParseTargets(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	targets := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			targets = append(targets, f)
		}
	}
	return targets
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + strings.TrimPrefix(path, "~")
		}
	}
	return path
}
