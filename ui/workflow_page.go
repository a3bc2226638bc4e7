package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sercano/qahub/api"
	"github.com/sercano/qahub/models"
	"github.com/sercano/qahub/store"
	"github.com/sercano/qahub/workflow"
)

// workflowKind selects which backend workflow a page drives.
type workflowKind int

const (
	kindJiraGen workflowKind = iota
	kindBugLink
	kindCycleAdd
	kindAPIRerun
	kindTestAnalysis
	kindAPIAnalysis
	kindProductTree
)

type pageMode int

const (
	modeForm pageMode = iota
	modeRunning
	modeSettled
)

// workflowClosedMsg returns control to the menu.
type workflowClosedMsg struct{}

// openTreeMsg opens the coverage browser over a finished product-tree run.
type openTreeMsg struct {
	data models.ProductTreeData
}

// wfUpdateMsg is one bus update pumped into the UI loop.
type wfUpdateMsg struct {
	update workflow.Update
	ok     bool
}

// wfSettledMsg signals that Start or Execute returned.
type wfSettledMsg struct{}

type formField struct {
	key   string
	label string
	input textinput.Model
}

// WorkflowModel drives one workflow: input form, live log console,
// confirm-execute prompt, result summary.
type WorkflowModel struct {
	client *api.Client
	store  *store.Store
	kind   workflowKind
	styles Styles

	runner      *workflow.Runner
	updates     <-chan workflow.Update
	unsubscribe func()

	mode    pageMode
	fields  []formField
	focused int

	viewport viewport.Model
	spinner  spinner.Model
	logLines []string

	width, height int
}

// NewWorkflowModel creates the page for one workflow kind
func NewWorkflowModel(client *api.Client, st *store.Store, kind workflowKind, styles Styles) WorkflowModel {
	m := WorkflowModel{
		client:   client,
		store:    st,
		kind:     kind,
		styles:   styles,
		viewport: viewport.New(80, 16),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		fields:   formFieldsFor(kind, st),
	}
	if len(m.fields) > 0 {
		m.fields[0].input.Focus()
	}
	return m
}

func formFieldsFor(kind workflowKind, st *store.Store) []formField {
	newField := func(key, label, placeholder, prefill string) formField {
		input := textinput.New()
		input.Placeholder = placeholder
		input.CharLimit = 0
		if prefill != "" {
			input.SetValue(prefill)
		}
		return formField{key: key, label: label, input: input}
	}

	switch kind {
	case kindJiraGen:
		lastSource := st.GetString(store.KeyLastWorkflowSource)
		if lastSource == "" {
			lastSource = "api"
		}
		return []formField{
			newField("type", "Source type", "api | ui | manual", lastSource),
			newField("jsonData", "Test JSON", `[{"summary":"..."}]`, ""),
			newField("projectKey", "Project key", "PRJ", ""),
		}
	case kindBugLink, kindAPIRerun:
		return []formField{
			newField("cycleId", "Cycle id", "12345", ""),
		}
	case kindCycleAdd:
		return []formField{
			newField("cycleName", "Cycle name", "REG-2025-08", ""),
			newField("projectKey", "Project key", "PRJ", ""),
			newField("version", "Version", "1.4.0", ""),
		}
	case kindProductTree:
		return []formField{
			newField("project", "Project", "billing", st.GetString(store.KeyTreeProject)),
			newField("version", "Version", "1.4.0", st.GetString(store.KeyTreeVersion)),
			newField("environment", "Environment", "uat", st.GetString(store.KeyTreeEnvironment)),
		}
	default: // test and API analysis
		return []formField{
			newField("project", "Project", "billing", ""),
			newField("version", "Version", "1.4.0", ""),
			newField("environment", "Environment", "uat", ""),
		}
	}
}

// Init implements the page contract
func (m WorkflowModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// SetSize resizes the console viewport
func (m *WorkflowModel) SetSize(width, height int) {
	m.width, m.height = width, height
	m.viewport.Width = max(20, width-4)
	m.viewport.Height = max(5, height-8)
}

func (m WorkflowModel) fieldValue(key string) string {
	for _, f := range m.fields {
		if f.key == key {
			return strings.TrimSpace(f.input.Value())
		}
	}
	return ""
}

// buildRunner constructs the runner and request from the form values
func (m *WorkflowModel) buildRunner() (interface{}, error) {
	bus := workflow.NewBus()
	switch m.kind {
	case kindJiraGen:
		m.runner = workflow.NewJiraGenRunner(m.client, bus, m.fieldValue("projectKey"))
		m.store.Remember(store.KeyLastWorkflowSource, m.fieldValue("type"))
		return &models.JiraGenRequest{
			SourceType: m.fieldValue("type"),
			JSONData:   m.fieldValue("jsonData"),
			ProjectKey: m.fieldValue("projectKey"),
		}, nil
	case kindBugLink:
		m.runner = workflow.NewBugLinkRunner(m.client, bus)
		return &models.BugLinkRequest{CycleID: m.fieldValue("cycleId")}, nil
	case kindCycleAdd:
		m.runner = workflow.NewCycleAddRunner(m.client, bus)
		return &models.CycleAddRequest{
			CycleName:  m.fieldValue("cycleName"),
			ProjectKey: m.fieldValue("projectKey"),
			Version:    m.fieldValue("version"),
		}, nil
	case kindAPIRerun:
		m.runner = workflow.NewAPIRerunRunner(m.client, bus)
		return &models.APIRerunRequest{CycleID: m.fieldValue("cycleId")}, nil
	case kindTestAnalysis:
		m.runner = workflow.NewTestAnalysisRunner(m.client, bus)
		return m.analysisRequest(), nil
	case kindAPIAnalysis:
		m.runner = workflow.NewAPIAnalysisRunner(m.client, bus)
		return m.analysisRequest(), nil
	case kindProductTree:
		m.runner = workflow.NewProductTreeRunner(m.client, bus)
		m.persistTreePrefs()
		return &models.ProductTreeRequest{
			Project:     m.fieldValue("project"),
			Version:     m.fieldValue("version"),
			Environment: m.fieldValue("environment"),
			UseCache:    true,
		}, nil
	}
	return nil, fmt.Errorf("unknown workflow kind %d", m.kind)
}

func (m WorkflowModel) analysisRequest() *models.AnalysisRequest {
	return &models.AnalysisRequest{
		Project:     m.fieldValue("project"),
		Version:     m.fieldValue("version"),
		Environment: m.fieldValue("environment"),
	}
}

// persistTreePrefs remembers the last product-tree form values
func (m WorkflowModel) persistTreePrefs() {
	m.store.Remember(store.KeyTreeProject, m.fieldValue("project"))
	m.store.Remember(store.KeyTreeVersion, m.fieldValue("version"))
	m.store.Remember(store.KeyTreeEnvironment, m.fieldValue("environment"))
}

// waitUpdate pumps the next bus update into the UI loop
func (m WorkflowModel) waitUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		update, ok := <-updates
		return wfUpdateMsg{update: update, ok: ok}
	}
}

func (m WorkflowModel) startCmd(body interface{}) tea.Cmd {
	runner := m.runner
	return func() tea.Msg {
		runner.Start(context.Background(), body)
		return wfSettledMsg{}
	}
}

func (m WorkflowModel) executeCmd() tea.Cmd {
	runner := m.runner
	return func() tea.Msg {
		runner.Execute(context.Background())
		return wfSettledMsg{}
	}
}

// Update handles messages
func (m WorkflowModel) Update(msg tea.Msg) (WorkflowModel, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case wfUpdateMsg:
		if !msg.ok {
			return m, nil
		}
		if msg.update.Kind == workflow.UpdateLog {
			m.logLines = append(m.logLines, msg.update.Line)
			m.viewport.SetContent(strings.Join(m.logLines, "\n"))
			m.viewport.GotoBottom()
		}
		return m, m.waitUpdate()

	case wfSettledMsg:
		m.mode = modeSettled
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m WorkflowModel) handleKey(msg tea.KeyMsg) (WorkflowModel, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.teardown()
		return m, tea.Quit
	}

	switch m.mode {
	case modeForm:
		return m.handleFormKey(msg)

	case modeRunning:
		if msg.String() == "esc" || msg.String() == "c" {
			m.runner.Cancel()
			m.teardown()
			return m, func() tea.Msg { return workflowClosedMsg{} }
		}
		return m, nil

	default:
		return m.handleSettledKey(msg)
	}
}

func (m WorkflowModel) handleFormKey(msg tea.KeyMsg) (WorkflowModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, func() tea.Msg { return workflowClosedMsg{} }
	case "tab", "down":
		return m.focusField((m.focused + 1) % len(m.fields)), nil
	case "shift+tab", "up":
		return m.focusField((m.focused + len(m.fields) - 1) % len(m.fields)), nil
	case "enter":
		if m.focused < len(m.fields)-1 {
			return m.focusField(m.focused + 1), nil
		}
		body, err := m.buildRunner()
		if err != nil {
			return m, nil
		}
		m.updates, m.unsubscribe = m.runner.Bus().Subscribe()
		m.mode = modeRunning
		m.logLines = nil
		m.viewport.SetContent("")
		return m, tea.Batch(m.startCmd(body), m.waitUpdate(), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.fields[m.focused].input, cmd = m.fields[m.focused].input.Update(msg)
	return m, cmd
}

func (m WorkflowModel) focusField(idx int) WorkflowModel {
	m.fields[m.focused].input.Blur()
	m.focused = idx
	m.fields[m.focused].input.Focus()
	return m
}

func (m WorkflowModel) handleSettledKey(msg tea.KeyMsg) (WorkflowModel, tea.Cmd) {
	state := m.runner.State()

	switch msg.String() {
	case "esc", "q":
		m.teardown()
		return m, func() tea.Msg { return workflowClosedMsg{} }

	case "y":
		if state.Phase == workflow.PhaseReady {
			m.mode = modeRunning
			return m, tea.Batch(m.executeCmd(), m.spinner.Tick)
		}

	case "n":
		if state.Phase == workflow.PhaseReady {
			m.runner.Reset()
			m.teardown()
			return m, func() tea.Msg { return workflowClosedMsg{} }
		}

	case "enter":
		if m.kind == kindProductTree && state.Phase == workflow.PhaseDone {
			if tree, ok := state.Partial.(models.ProductTreeData); ok {
				m.teardown()
				return m, func() tea.Msg { return openTreeMsg{data: tree} }
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// teardown releases the bus subscription
func (m *WorkflowModel) teardown() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// View renders the page
func (m WorkflowModel) View() string {
	title := "  " + m.styles.Title.Render(workflowTitle(m.kind)) + "\n\n"

	if m.mode == modeForm {
		out := title
		for i, f := range m.fields {
			label := m.styles.Label.Render(f.label + ": ")
			if i == m.focused {
				label = m.styles.Selected.Render(f.label + ": ")
			}
			out += "  " + label + f.input.View() + "\n"
		}
		out += "\n" + m.styles.Help.Render("  enter to run, tab to move, esc to go back") + "\n"
		return out
	}

	state := m.runner.State()
	out := title
	out += "  " + m.phaseLine(state) + "\n\n"
	out += m.styles.Border.Render(m.viewport.View()) + "\n"

	switch state.Phase {
	case workflow.PhaseReady:
		out += "\n  " + m.summaryLine(state)
		out += "\n" + m.styles.Help.Render("  y to execute, n to discard, esc to go back") + "\n"
	case workflow.PhaseDone:
		out += "\n  " + m.styles.Success.Render("Completed.") + " " + m.summaryLine(state)
		if m.kind == kindProductTree {
			out += "\n" + m.styles.Help.Render("  enter to browse the coverage tree, esc to go back") + "\n"
		} else {
			out += "\n" + m.styles.Help.Render("  esc to go back") + "\n"
		}
	case workflow.PhaseFailed:
		out += "\n  " + m.styles.Error.Render("Failed: "+state.Err)
		out += "\n" + m.styles.Help.Render("  esc to go back") + "\n"
	default:
		out += "\n" + m.styles.Help.Render("  esc to cancel") + "\n"
	}
	return out
}

func (m WorkflowModel) phaseLine(state workflow.State) string {
	if state.Phase == workflow.PhaseAnalyzing || state.Phase == workflow.PhaseExecuting {
		return m.spinner.View() + " " + m.styles.Subtitle.Render(string(state.Phase))
	}
	return m.styles.Subtitle.Render(string(state.Phase))
}

// summaryLine renders the workflow-specific result line
func (m WorkflowModel) summaryLine(state workflow.State) string {
	switch partial := state.Partial.(type) {
	case *models.JiraGenResult:
		created := 0
		for _, t := range partial.Tests {
			if t.Created {
				created++
			}
		}
		if state.Phase == workflow.PhaseReady {
			return m.styles.Value.Render(fmt.Sprintf("%d tests, %d valid, %d invalid",
				partial.Stats.Total, partial.Stats.Valid, partial.Stats.Invalid))
		}
		return m.styles.Value.Render(fmt.Sprintf("%d of %d tests created", created, partial.Stats.Valid))
	case *models.BugLinkResult:
		return m.styles.Value.Render(fmt.Sprintf("cycle %s: %d results, %d to bind",
			partial.CycleID, partial.Stats.Total, partial.Stats.ToBind))
	case *models.CycleAddResult:
		return m.styles.Value.Render(fmt.Sprintf("%d executions, %d to add, %d to skip",
			partial.Stats.Total, partial.Stats.ToAdd, partial.Stats.ToSkip))
	case *models.APIRerunResult:
		return m.styles.Value.Render(partial.Output)
	case *workflow.AnalysisSnapshot:
		return m.styles.Value.Render(fmt.Sprintf("%d rows", len(partial.Rows)))
	case models.ProductTreeData:
		return m.styles.Value.Render(fmt.Sprintf("%d projects analyzed", len(partial)))
	}
	return ""
}

func workflowTitle(kind workflowKind) string {
	switch kind {
	case kindJiraGen:
		return "Jira Generator"
	case kindBugLink:
		return "Bug Link"
	case kindCycleAdd:
		return "Cycle Add"
	case kindAPIRerun:
		return "API Rerun"
	case kindTestAnalysis:
		return "Test Analysis"
	case kindAPIAnalysis:
		return "API Analysis"
	default:
		return "Coverage Tree"
	}
}
