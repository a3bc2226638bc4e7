package coverage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sercano/qahub/models"
)

// fakeRefresher serves canned controller payloads and records calls.
type fakeRefresher struct {
	mu        sync.Mutex
	responses map[string]models.ControllerData
	failing   map[string]bool
	calls     []string
}

func (f *fakeRefresher) RefreshController(_ context.Context, req *models.RefreshControllerRequest) (*models.RefreshControllerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Controller)
	if f.failing[req.Controller] {
		return nil, fmt.Errorf("backend exploded")
	}
	return &models.RefreshControllerResponse{Controller: f.responses[req.Controller]}, nil
}

func coveredEndpoint(path string) models.Endpoint {
	return models.Endpoint{
		Method: "GET", FullPath: path,
		Happy: true, Alternatif: true, Negatif: true,
	}
}

func testData() models.ProductTreeData {
	return models.ProductTreeData{
		"billing": {Apps: map[string]models.AppData{
			"core": {Controllers: map[string]models.ControllerData{
				"AccountController": {EndPoints: []models.Endpoint{
					{Method: "GET", FullPath: "/v1/accounts"},
				}},
				"CardController": {EndPoints: []models.Endpoint{
					{Method: "GET", FullPath: "/v1/cards"},
				}},
			}},
		}},
	}
}

func TestModel_RefreshController(t *testing.T) {
	refresher := &fakeRefresher{responses: map[string]models.ControllerData{
		"AccountController": {EndPoints: []models.Endpoint{
			coveredEndpoint("/v1/accounts"),
			coveredEndpoint("/v1/accounts/history"),
		}},
	}}

	model := NewModel(refresher)
	model.SetData(testData())

	require.NoError(t, model.RefreshController(context.Background(), "billing", "core", "AccountController"))

	ctrls := model.Tree().Projects[0].Apps[0].Controllers
	require.Len(t, ctrls, 2)

	// Refreshed subtree replaced and recomputed.
	assert.Equal(t, "AccountController", ctrls[0].Name)
	assert.Equal(t, 2, ctrls[0].TotalEndpoints)
	assert.Equal(t, 100, ctrls[0].CoveragePercent)

	// Sibling untouched.
	assert.Equal(t, "CardController", ctrls[1].Name)
	assert.Equal(t, 1, ctrls[1].TotalEndpoints)
	assert.Equal(t, 0, ctrls[1].CoveragePercent)
}

func TestModel_RefreshControllerUnknownPath(t *testing.T) {
	model := NewModel(&fakeRefresher{})
	model.SetData(testData())

	err := model.RefreshController(context.Background(), "billing", "core", "NoSuchController")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown controller")
}

func TestModel_RefreshControllerFailureLeavesModelUntouched(t *testing.T) {
	refresher := &fakeRefresher{failing: map[string]bool{"AccountController": true}}
	model := NewModel(refresher)
	model.SetData(testData())

	before := model.Tree()
	err := model.RefreshController(context.Background(), "billing", "core", "AccountController")
	require.Error(t, err)
	assert.Same(t, before, model.Tree())
}

func TestModel_RefreshApp(t *testing.T) {
	refresher := &fakeRefresher{responses: map[string]models.ControllerData{
		"AccountController": {EndPoints: []models.Endpoint{coveredEndpoint("/v1/accounts")}},
		"CardController":    {EndPoints: []models.Endpoint{coveredEndpoint("/v1/cards")}},
	}}
	model := NewModel(refresher)
	model.SetData(testData())

	require.NoError(t, model.RefreshApp(context.Background(), "billing", "core"))

	ctrls := model.Tree().Projects[0].Apps[0].Controllers
	require.Len(t, ctrls, 2)
	for _, ctrl := range ctrls {
		assert.Equal(t, 100, ctrl.CoveragePercent, ctrl.Name)
	}
	assert.ElementsMatch(t, []string{"AccountController", "CardController"}, refresher.calls)
}

func TestModel_RefreshAppPartialFailureLeavesModelUntouched(t *testing.T) {
	refresher := &fakeRefresher{
		responses: map[string]models.ControllerData{
			"AccountController": {EndPoints: []models.Endpoint{coveredEndpoint("/v1/accounts")}},
		},
		failing: map[string]bool{"CardController": true},
	}
	model := NewModel(refresher)
	model.SetData(testData())

	before := model.Tree()
	err := model.RefreshApp(context.Background(), "billing", "core")
	require.Error(t, err)
	assert.Same(t, before, model.Tree())
}
