package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sercano/qahub/api"
	"github.com/sercano/qahub/coverage"
	"github.com/sercano/qahub/session"
	"github.com/sercano/qahub/store"
)

type page int

const (
	pageMenu page = iota
	pageLogin
	pageWorkflow
	pageTree
)

// sessionValidatedMsg signals that the backend device check finished.
type sessionValidatedMsg struct{}

// menuEntry is one selectable line of the main menu.
type menuEntry struct {
	title    string
	desc     string
	kind     workflowKind
	isTree   bool
	isQuit   bool
	isLogout bool
}

func menuEntries() []menuEntry {
	return []menuEntry{
		{title: "Jira Generator", desc: "validate and create Jira tests from JSON", kind: kindJiraGen},
		{title: "Bug Link", desc: "link failed test results to bug tickets", kind: kindBugLink},
		{title: "Cycle Add", desc: "compose a test cycle from executions", kind: kindCycleAdd},
		{title: "API Rerun", desc: "re-run API tests for a cycle", kind: kindAPIRerun},
		{title: "Test Analysis", desc: "streamed test-result analysis table", kind: kindTestAnalysis},
		{title: "API Analysis", desc: "streamed API-result analysis table", kind: kindAPIAnalysis},
		{title: "Coverage Tree", desc: "run product-tree analysis and browse coverage", kind: kindProductTree, isTree: true},
		{title: "Logout", desc: "clear the cached user, keep this device id", isLogout: true},
		{title: "Quit", desc: "leave qahub", isQuit: true},
	}
}

// App is the root model: it owns the auth gate and routes between pages.
type App struct {
	session  *session.Manager
	client   *api.Client
	coverage *coverage.Model
	store    *store.Store
	styles   Styles

	width, height int
	validated     bool
	page          page
	cursor        int
	entries       []menuEntry

	login    LoginModel
	workflow WorkflowModel
	tree     TreeModel
}

// NewApp wires the root model
func NewApp(client *api.Client, sess *session.Manager, st *store.Store) App {
	return App{
		session:  sess,
		client:   client,
		coverage: coverage.NewModel(client),
		store:    st,
		styles:   DefaultStyles(),
		entries:  menuEntries(),
		login:    NewLoginModel(sess),
	}
}

// Init kicks off the background device check
func (a App) Init() tea.Cmd {
	return tea.Batch(a.validateSession, a.login.Init())
}

// validateSession reconciles the rehydrated user with the backend
func (a App) validateSession() tea.Msg {
	a.session.Validate(context.Background())
	return sessionValidatedMsg{}
}

// Update implements tea.Model
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.workflow.SetSize(msg.Width, msg.Height)
		a.tree.SetSize(msg.Width, msg.Height)
		return a, nil

	case sessionValidatedMsg:
		a.validated = true
		return a, nil

	case loginDoneMsg:
		a.page = pageMenu
		return a, nil

	case workflowClosedMsg:
		a.page = pageMenu
		return a, nil

	case openTreeMsg:
		a.coverage.SetData(msg.data)
		a.tree = NewTreeModel(a.coverage, a.store, a.styles)
		a.tree.SetSize(a.width, a.height)
		a.page = pageTree
		return a, nil

	case treeClosedMsg:
		a.page = pageMenu
		return a, nil
	}

	// Gate: while the device check is pending over a rehydrated user,
	// swallow input; the placeholder view is already showing.
	if a.session.Loading() && !a.validated {
		return a, nil
	}
	if a.session.User() == nil {
		return a.updateLogin(msg)
	}

	switch a.page {
	case pageWorkflow:
		var cmd tea.Cmd
		a.workflow, cmd = a.workflow.Update(msg)
		return a, cmd
	case pageTree:
		var cmd tea.Cmd
		a.tree, cmd = a.tree.Update(msg)
		return a, cmd
	default:
		return a.updateMenu(msg)
	}
}

func (a App) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	a.page = pageLogin
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
		return a, tea.Quit
	}
	var cmd tea.Cmd
	a.login, cmd = a.login.Update(msg)
	return a, cmd
}

func (a App) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}

	switch key.String() {
	case "ctrl+c", "q":
		return a, tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.entries)-1 {
			a.cursor++
		}
	case "enter":
		entry := a.entries[a.cursor]
		switch {
		case entry.isQuit:
			return a, tea.Quit
		case entry.isLogout:
			a.session.Logout()
			a.page = pageLogin
			return a, nil
		default:
			a.workflow = NewWorkflowModel(a.client, a.store, entry.kind, a.styles)
			a.workflow.SetSize(a.width, a.height)
			a.page = pageWorkflow
			return a, a.workflow.Init()
		}
	}
	return a, nil
}

// View implements tea.Model
func (a App) View() string {
	// Protected gate: neutral placeholder while loading, login when no
	// user, content otherwise.
	if a.session.Loading() && !a.validated {
		return a.styles.Muted.Render("\n  Checking session...\n")
	}
	if a.session.User() == nil {
		return a.login.View()
	}

	switch a.page {
	case pageWorkflow:
		return a.workflow.View()
	case pageTree:
		return a.tree.View()
	default:
		return a.menuView()
	}
}

func (a App) menuView() string {
	user := a.session.User()

	out := "\n  " + a.styles.Title.Render("qahub") + "  " +
		a.styles.Subtitle.Render("signed in as "+user.Name) + "\n\n"
	for i, entry := range a.entries {
		line := "  " + entry.title
		if i == a.cursor {
			line = a.styles.Selected.Render("> " + entry.title)
		}
		out += line + "  " + a.styles.Muted.Render(entry.desc) + "\n"
	}
	out += "\n" + a.styles.Help.Render("  up/down to move, enter to select, q to quit") + "\n"
	return out
}
