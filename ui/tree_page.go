package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sercano/qahub/coverage"
	"github.com/sercano/qahub/store"
)

// treeClosedMsg returns control to the menu.
type treeClosedMsg struct{}

// refreshDoneMsg reports the outcome of a controller refresh.
type refreshDoneMsg struct {
	controller string
	err        error
}

type rowKind int

const (
	rowProject rowKind = iota
	rowApp
	rowController
	rowEndpoint
)

// treeRow is one visible line of the flattened coverage tree.
type treeRow struct {
	kind    rowKind
	depth   int
	label   string
	percent int

	project, app, controller string
}

// TreeModel browses the derived coverage tree with expand/collapse,
// per-controller refresh and an only-uncovered filter.
type TreeModel struct {
	model  *coverage.Model
	store  *store.Store
	styles Styles

	expanded      map[string]bool
	onlyUncovered bool
	rows          []treeRow
	cursor        int
	offset        int
	busy          bool
	status        string

	width, height int
}

// NewTreeModel creates the browser over an already-populated model
func NewTreeModel(model *coverage.Model, st *store.Store, styles Styles) TreeModel {
	m := TreeModel{
		model:         model,
		store:         st,
		styles:        styles,
		expanded:      map[string]bool{},
		onlyUncovered: st.GetString(store.KeyTreeOnlyUncovered) == "true",
	}
	m.rebuild()
	return m
}

// SetSize updates the visible window
func (m *TreeModel) SetSize(width, height int) {
	m.width, m.height = width, height
}

// rebuild flattens the current tree into visible rows
func (m *TreeModel) rebuild() {
	tree := m.model.Tree()
	if tree == nil {
		m.rows = nil
		return
	}
	if m.onlyUncovered {
		tree = coverage.FilterUncovered(tree)
	}

	var rows []treeRow
	for _, project := range tree.Projects {
		rows = append(rows, treeRow{
			kind: rowProject, label: project.Name,
			percent: project.CoveragePercent, project: project.Name,
		})
		if !m.expanded[project.Name] {
			continue
		}
		for _, app := range project.Apps {
			appPath := project.Name + "/" + app.Name
			rows = append(rows, treeRow{
				kind: rowApp, depth: 1, label: app.Name,
				percent: app.CoveragePercent,
				project: project.Name, app: app.Name,
			})
			if !m.expanded[appPath] {
				continue
			}
			for _, ctrl := range app.Controllers {
				ctrlPath := appPath + "/" + ctrl.Name
				rows = append(rows, treeRow{
					kind: rowController, depth: 2, label: ctrl.Name,
					percent: ctrl.CoveragePercent,
					project: project.Name, app: app.Name, controller: ctrl.Name,
				})
				if !m.expanded[ctrlPath] {
					continue
				}
				for _, endpoint := range ctrl.Endpoints {
					rows = append(rows, treeRow{
						kind: rowEndpoint, depth: 3,
						label:   fmt.Sprintf("%-6s %s  %s", endpoint.Method, endpoint.FullPath, categoryMarks(endpoint)),
						percent: endpoint.CoveragePercent,
						project: project.Name, app: app.Name, controller: ctrl.Name,
					})
				}
			}
		}
	}
	m.rows = rows
	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// categoryMarks renders the three per-endpoint category verdicts
func categoryMarks(e coverage.EndpointNode) string {
	mark := func(label string, ok bool) string {
		if ok {
			return "[" + label + "]"
		}
		return "[ ]"
	}
	return mark("H", e.HasHappyPassed) + mark("A", e.HasAlternatifPassed) + mark("N", e.HasNegatifPassed)
}

func (m TreeModel) rowPath(row treeRow) string {
	switch row.kind {
	case rowApp:
		return row.project + "/" + row.app
	case rowController:
		return row.project + "/" + row.app + "/" + row.controller
	default:
		return row.project
	}
}

// refreshCmd re-analyzes the controller under the cursor
func (m TreeModel) refreshCmd(row treeRow) tea.Cmd {
	model := m.model
	return func() tea.Msg {
		err := model.RefreshController(context.Background(), row.project, row.app, row.controller)
		return refreshDoneMsg{controller: row.controller, err: err}
	}
}

// Update handles messages
func (m TreeModel) Update(msg tea.Msg) (TreeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = m.styles.Error.Render("refresh failed: " + msg.err.Error())
		} else {
			m.status = m.styles.Success.Render(msg.controller + " refreshed")
			m.rebuild()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m TreeModel) handleKey(msg tea.KeyMsg) (TreeModel, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc", "q":
		return m, func() tea.Msg { return treeClosedMsg{} }

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case "enter", " ":
		if m.cursor < len(m.rows) {
			row := m.rows[m.cursor]
			if row.kind != rowEndpoint {
				path := m.rowPath(row)
				m.expanded[path] = !m.expanded[path]
				m.rebuild()
			}
		}

	case "u":
		m.onlyUncovered = !m.onlyUncovered
		m.store.Remember(store.KeyTreeOnlyUncovered, fmt.Sprintf("%t", m.onlyUncovered))
		m.rebuild()

	case "r":
		if m.busy || m.cursor >= len(m.rows) {
			break
		}
		row := m.rows[m.cursor]
		if row.kind == rowController {
			m.busy = true
			m.status = m.styles.Muted.Render("refreshing " + row.controller + "...")
			return m, m.refreshCmd(row)
		}
	}
	return m, nil
}

// View renders the browser
func (m TreeModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + m.styles.Title.Render("Coverage Tree"))
	if m.onlyUncovered {
		b.WriteString("  " + m.styles.Subtitle.Render("(uncovered only)"))
	}
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString("  " + m.styles.Muted.Render("nothing to show") + "\n")
	}

	visible := max(5, m.height-7)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}

	end := min(len(m.rows), m.offset+visible)
	for i := m.offset; i < end; i++ {
		row := m.rows[i]
		band := m.styles.BandStyle(coverage.BandFor(row.percent))
		line := strings.Repeat("  ", row.depth) + row.label
		pct := band.Render(fmt.Sprintf("%3d%%", row.percent))
		if i == m.cursor {
			line = m.styles.Selected.Render(line)
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", pct, line))
	}

	if m.status != "" {
		b.WriteString("\n  " + m.status + "\n")
	}
	b.WriteString("\n" + m.styles.Help.Render("  enter to expand, r to refresh controller, u to toggle uncovered, esc to go back") + "\n")
	return b.String()
}
