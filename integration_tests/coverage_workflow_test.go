package integration_tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sercano/qahub/api"
	"github.com/sercano/qahub/coverage"
	"github.com/sercano/qahub/models"
	"github.com/sercano/qahub/workflow"
)

func billingPayload() models.ProductTreeData {
	return models.ProductTreeData{
		"billing": {
			TotalEndpoints:  2,
			TestedEndpoints: 1,
			Apps: map[string]models.AppData{
				"core": {
					TotalEndpoints:  2,
					TestedEndpoints: 1,
					Controllers: map[string]models.ControllerData{
						"AccountController": {EndPoints: []models.Endpoint{
							{
								Method:   "GET",
								FullPath: "/v1/accounts",
								Tests: []models.EndpointTest{
									{Key: "PRJ-T1", Status: models.TestStatusPassed, TestType: "Happy Path"},
									{Key: "PRJ-T2", Status: models.TestStatusPassed, TestType: "Negatif"},
									{Key: "PRJ-T3", Status: models.TestStatusFailed, TestType: "Alternatif"},
								},
							},
							{Method: "POST", FullPath: "/v1/accounts"},
						}},
					},
				},
			},
		},
	}
}

func TestProductTreeWorkflowWithCachedPayload(t *testing.T) {
	e := newEnv(t)
	_, err := e.session.Register(context.Background(), "Ada", "")
	require.NoError(t, err)

	// The terminal frame defers to the cached payload endpoint.
	e.backend.stream(api.PathProductTreeRun,
		`{"log":"analyzing billing..."}`,
		`{"cacheReady":true}`,
	)
	e.backend.handle("/product-tree/data", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(billingPayload())
	})

	runner := workflow.NewProductTreeRunner(e.client, nil)
	require.NoError(t, runner.Start(context.Background(), &models.ProductTreeRequest{
		Project:  "billing",
		UseCache: true,
	}))

	state := runner.State()
	require.Equal(t, workflow.PhaseDone, state.Phase)

	data, ok := state.Partial.(models.ProductTreeData)
	require.True(t, ok, "the cached payload should be fetched before the run settles")

	tree := coverage.Build(data)
	require.Len(t, tree.Projects, 1)
	project := tree.Projects[0]
	assert.Equal(t, "billing", project.Name)
	assert.Equal(t, 50, project.CoveragePercent)

	ctrl := project.Apps[0].Controllers[0]
	assert.Equal(t, "AccountController", ctrl.Name)
	assert.Equal(t, 33, ctrl.CoveragePercent, "2 of 6 categories passed across 2 endpoints")

	endpoint := ctrl.Endpoints[0]
	assert.Equal(t, 67, endpoint.CoveragePercent)
	assert.True(t, endpoint.HasHappyPassed)
	assert.False(t, endpoint.HasAlternatifPassed, "a failed execution does not cover its category")
	assert.True(t, endpoint.HasNegatifPassed)
}

func TestControllerRefreshUpdatesCoverage(t *testing.T) {
	e := newEnv(t)
	_, err := e.session.Register(context.Background(), "Ada", "")
	require.NoError(t, err)

	e.backend.handle(api.PathRefreshController, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.RefreshControllerResponse{
			Controller: models.ControllerData{EndPoints: []models.Endpoint{
				{Method: "GET", FullPath: "/v1/accounts", Happy: true, Alternatif: true, Negatif: true},
				{Method: "POST", FullPath: "/v1/accounts", Happy: true, Alternatif: true, Negatif: true},
			}},
		})
	})

	model := coverage.NewModel(e.client)
	model.SetData(billingPayload())
	require.Equal(t, 33, model.Tree().Projects[0].Apps[0].Controllers[0].CoveragePercent)

	require.NoError(t, model.RefreshController(context.Background(), "billing", "core", "AccountController"))

	ctrl := model.Tree().Projects[0].Apps[0].Controllers[0]
	assert.Equal(t, 100, ctrl.CoveragePercent)
	assert.Equal(t, coverage.BandGreen, coverage.BandFor(ctrl.CoveragePercent))

	var req models.RefreshControllerRequest
	require.NoError(t, json.Unmarshal(e.backend.lastBody(api.PathRefreshController), &req))
	assert.Equal(t, "AccountController", req.Controller)
}
