package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sercano/qahub/api"
	"github.com/sercano/qahub/session"
)

// loginDoneMsg signals a successful registration.
type loginDoneMsg struct{}

// loginFailedMsg carries the registration failure message.
type loginFailedMsg struct {
	message string
}

// LoginModel is the public-gate page: name plus optional email, submitted
// as a device registration.
type LoginModel struct {
	session *session.Manager
	styles  Styles

	name    textinput.Model
	email   textinput.Model
	focused int
	busy    bool
	errMsg  string
}

// NewLoginModel creates the login page
func NewLoginModel(sess *session.Manager) LoginModel {
	name := textinput.New()
	name.Placeholder = "your name"
	name.CharLimit = 64
	name.Focus()

	email := textinput.New()
	email.Placeholder = "email (optional)"
	email.CharLimit = 128

	return LoginModel{
		session: sess,
		styles:  DefaultStyles(),
		name:    name,
		email:   email,
	}
}

// Init implements the page contract
func (m LoginModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m LoginModel) Update(msg tea.Msg) (LoginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case loginFailedMsg:
		m.busy = false
		m.errMsg = msg.message
		return m, nil

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "tab", "shift+tab":
			m.focused = (m.focused + 1) % 2
			if m.focused == 0 {
				m.name.Focus()
				m.email.Blur()
			} else {
				m.email.Focus()
				m.name.Blur()
			}
			return m, nil
		case "enter":
			m.busy = true
			m.errMsg = ""
			return m, m.registerCmd(m.name.Value(), m.email.Value())
		}
	}

	var cmds [2]tea.Cmd
	m.name, cmds[0] = m.name.Update(msg)
	m.email, cmds[1] = m.email.Update(msg)
	return m, tea.Batch(cmds[0], cmds[1])
}

// registerCmd performs the registration off the UI loop
func (m LoginModel) registerCmd(name, email string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.session.Register(context.Background(), name, email); err != nil {
			var apiErr *api.Error
			if errors.As(err, &apiErr) {
				return loginFailedMsg{message: apiErr.Message}
			}
			return loginFailedMsg{message: err.Error()}
		}
		return loginDoneMsg{}
	}
}

// View renders the page
func (m LoginModel) View() string {
	out := "\n  " + m.styles.Title.Render("qahub") + "\n\n"
	out += "  " + m.styles.Label.Render("This device is not registered yet.") + "\n\n"
	out += "  " + m.name.View() + "\n"
	out += "  " + m.email.View() + "\n\n"
	if m.busy {
		out += "  " + m.styles.Muted.Render("registering...") + "\n"
	}
	if m.errMsg != "" {
		out += "  " + m.styles.Error.Render(m.errMsg) + "\n"
	}
	out += "\n" + m.styles.Help.Render("  tab to switch fields, enter to register, ctrl+c to quit") + "\n"
	return out
}
