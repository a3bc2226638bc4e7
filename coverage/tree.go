// Package coverage derives the test-coverage tree from the backend's flat
// endpoint listing: project → app → controller → endpoint, with coverage
// metrics at every level.
package coverage

import (
	"math"
	"sort"
	"strings"

	"github.com/sercano/qahub/models"
)

// The three coverage categories every endpoint is measured against.
const categoryCount = 3

// Band is a render hint derived from a coverage percentage.
type Band string

const (
	BandGreen Band = "green"
	BandAmber Band = "amber"
	BandRed   Band = "red"
)

// BandFor maps a coverage percentage to its color band
func BandFor(percent int) Band {
	switch {
	case percent >= 80:
		return BandGreen
	case percent >= 50:
		return BandAmber
	default:
		return BandRed
	}
}

// EndpointNode is one endpoint with its computed category coverage
type EndpointNode struct {
	Method   string
	FullPath string
	Tests    []models.EndpointTest

	HasHappyPassed      bool
	HasAlternatifPassed bool
	HasNegatifPassed    bool

	// Tested reports whether at least one execution passed, whatever
	// its type.
	Tested bool

	SatisfiedCategories int
	CoveragePercent     int
}

// ControllerNode groups the endpoints of one controller
type ControllerNode struct {
	Name            string
	Endpoints       []EndpointNode
	TotalEndpoints  int
	TestedEndpoints int
	CoveragePercent int
}

// AppNode groups the controllers of one application. Its percentage reuses
// the backend-supplied tested-endpoint ratio; the endpoint counters are
// always derived from descendants.
type AppNode struct {
	Name            string
	Controllers     []ControllerNode
	TotalEndpoints  int
	TestedEndpoints int
	CoveragePercent int
}

// ProjectNode groups the apps of one project
type ProjectNode struct {
	Name            string
	Apps            []AppNode
	TotalEndpoints  int
	TestedEndpoints int
	CoveragePercent int
}

// Tree is the fully derived coverage tree, ordered by name at every level
type Tree struct {
	Projects []ProjectNode
}

// Build derives the coverage tree from the backend payload
func Build(data models.ProductTreeData) *Tree {
	tree := &Tree{Projects: make([]ProjectNode, 0, len(data))}
	for _, name := range sortedKeys(data) {
		tree.Projects = append(tree.Projects, buildProject(name, data[name]))
	}
	return tree
}

func buildProject(name string, data models.ProjectData) ProjectNode {
	project := ProjectNode{
		Name:            name,
		Apps:            make([]AppNode, 0, len(data.Apps)),
		CoveragePercent: ratioPercent(data.TestedEndpoints, data.TotalEndpoints),
	}
	for _, appName := range sortedKeys(data.Apps) {
		app := buildApp(appName, data.Apps[appName])
		project.TotalEndpoints += app.TotalEndpoints
		project.TestedEndpoints += app.TestedEndpoints
		project.Apps = append(project.Apps, app)
	}
	return project
}

func buildApp(name string, data models.AppData) AppNode {
	app := AppNode{
		Name:            name,
		Controllers:     make([]ControllerNode, 0, len(data.Controllers)),
		CoveragePercent: ratioPercent(data.TestedEndpoints, data.TotalEndpoints),
	}
	for _, ctrlName := range sortedKeys(data.Controllers) {
		ctrl := BuildController(ctrlName, data.Controllers[ctrlName])
		app.TotalEndpoints += ctrl.TotalEndpoints
		app.TestedEndpoints += ctrl.TestedEndpoints
		app.Controllers = append(app.Controllers, ctrl)
	}
	return app
}

// BuildController derives one controller node. The controller percentage
// is computed from its descendants: satisfied categories over three per
// endpoint.
func BuildController(name string, data models.ControllerData) ControllerNode {
	ctrl := ControllerNode{
		Name:           name,
		Endpoints:      make([]EndpointNode, 0, len(data.EndPoints)),
		TotalEndpoints: len(data.EndPoints),
	}

	satisfied := 0
	for _, endpoint := range data.EndPoints {
		node := buildEndpoint(endpoint)
		satisfied += node.SatisfiedCategories
		if node.Tested {
			ctrl.TestedEndpoints++
		}
		ctrl.Endpoints = append(ctrl.Endpoints, node)
	}
	ctrl.CoveragePercent = ratioPercent(satisfied, categoryCount*ctrl.TotalEndpoints)
	return ctrl
}

func buildEndpoint(endpoint models.Endpoint) EndpointNode {
	node := EndpointNode{
		Method:              endpoint.Method,
		FullPath:            endpoint.FullPath,
		Tests:               endpoint.Tests,
		HasHappyPassed:      endpoint.Happy || hasPassedOfType(endpoint.Tests, "happy"),
		HasAlternatifPassed: endpoint.Alternatif || hasPassedOfType(endpoint.Tests, "alternatif", "alternative"),
		HasNegatifPassed:    endpoint.Negatif || hasPassedOfType(endpoint.Tests, "negatif", "negative"),
		Tested:              hasAnyPassed(endpoint.Tests),
	}
	for _, ok := range []bool{node.HasHappyPassed, node.HasAlternatifPassed, node.HasNegatifPassed} {
		if ok {
			node.SatisfiedCategories++
		}
	}
	node.CoveragePercent = ratioPercent(node.SatisfiedCategories, categoryCount)
	return node
}

// hasAnyPassed reports whether the endpoint has at least one passed
// execution of any type
func hasAnyPassed(tests []models.EndpointTest) bool {
	for _, test := range tests {
		if test.Status == models.TestStatusPassed {
			return true
		}
	}
	return false
}

// hasPassedOfType reports whether any PASSED test's type contains one of
// the category keywords. Test names are never consulted.
func hasPassedOfType(tests []models.EndpointTest, keywords ...string) bool {
	for _, test := range tests {
		if test.Status != models.TestStatusPassed {
			continue
		}
		testType := strings.ToLower(test.TestType)
		for _, keyword := range keywords {
			if strings.Contains(testType, keyword) {
				return true
			}
		}
	}
	return false
}

// ratioPercent rounds numerator/denominator to the nearest whole percent
func ratioPercent(numerator, denominator int) int {
	if denominator == 0 {
		return 0
	}
	return int(math.Round(float64(numerator) / float64(denominator) * 100))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FilterUncovered returns a copy of the tree keeping only endpoints below
// full coverage, pruning controllers, apps and projects left empty.
// Aggregate metrics keep their original values.
func FilterUncovered(tree *Tree) *Tree {
	filtered := &Tree{}
	for _, project := range tree.Projects {
		prunedProject := project
		prunedProject.Apps = nil
		for _, app := range project.Apps {
			prunedApp := app
			prunedApp.Controllers = nil
			for _, ctrl := range app.Controllers {
				prunedCtrl := ctrl
				prunedCtrl.Endpoints = nil
				for _, endpoint := range ctrl.Endpoints {
					if endpoint.CoveragePercent < 100 {
						prunedCtrl.Endpoints = append(prunedCtrl.Endpoints, endpoint)
					}
				}
				if len(prunedCtrl.Endpoints) > 0 {
					prunedApp.Controllers = append(prunedApp.Controllers, prunedCtrl)
				}
			}
			if len(prunedApp.Controllers) > 0 {
				prunedProject.Apps = append(prunedProject.Apps, prunedApp)
			}
		}
		if len(prunedProject.Apps) > 0 {
			filtered.Projects = append(filtered.Projects, prunedProject)
		}
	}
	return filtered
}
