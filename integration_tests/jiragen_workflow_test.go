package integration_tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sercano/qahub/api"
	"github.com/sercano/qahub/models"
	"github.com/sercano/qahub/workflow"
)

func TestJiraGenWorkflowEndToEnd(t *testing.T) {
	e := newEnv(t)
	user, err := e.session.Register(context.Background(), "Ada", "")
	require.NoError(t, err)

	e.backend.stream(api.PathJiraGenValidate,
		`{"log":"parsing tests..."}`,
		`{"log":"validating 3 tests..."}`,
		`{"complete":true,"result":{"tests":[`+
			`{"index":1,"name":"Login happy path","validation":{"isValid":true},"rawTest":{"summary":"login"}},`+
			`{"index":2,"name":"Login wrong password","validation":{"isValid":true},"rawTest":{"summary":"wrong pw"}},`+
			`{"index":3,"name":"Broken row","validation":{"isValid":false,"errors":["missing steps"]}}`+
			`],"stats":{"total":3,"valid":2,"invalid":1}}}`,
	)
	e.backend.stream(api.PathJiraGenCreate,
		`{"log":"creating issues..."}`,
		`{"index":1,"success":true,"key":"PRJ-101"}`,
		`{"index":2,"success":false,"error":"duplicate summary"}`,
		`{"complete":true}`,
	)

	runner := workflow.NewJiraGenRunner(e.client, nil, "PRJ")
	require.NoError(t, runner.Start(context.Background(), &models.JiraGenRequest{
		SourceType: "api",
		JSONData:   `[{"summary":"login"},{"summary":"wrong pw"},{"summary":"broken"}]`,
	}))

	state := runner.State()
	require.Equal(t, workflow.PhaseReady, state.Phase)
	assert.Equal(t, []string{"parsing tests...", "validating 3 tests..."}, state.Log)

	require.NoError(t, runner.Execute(context.Background()))

	state = runner.State()
	require.Equal(t, workflow.PhaseDone, state.Phase)

	result, ok := state.Partial.(*models.JiraGenResult)
	require.True(t, ok)
	require.Len(t, result.Tests, 3)
	assert.True(t, result.Tests[0].Created)
	assert.Equal(t, "PRJ-101", result.Tests[0].JiraKey)
	assert.False(t, result.Tests[1].Created)
	assert.Equal(t, "duplicate summary", result.Tests[1].CreateError)
	assert.False(t, result.Tests[2].Created, "invalid tests are never created")

	// Only validation-passing tests reach the create endpoint.
	var createBody struct {
		Tests      []models.GeneratedTest `json:"tests"`
		ProjectKey string                 `json:"projectKey"`
	}
	require.NoError(t, json.Unmarshal(e.backend.lastBody(api.PathJiraGenCreate), &createBody))
	require.Len(t, createBody.Tests, 2)
	assert.Equal(t, "PRJ", createBody.ProjectKey)

	// The session-wired client attributes the request to the user.
	assert.Contains(t, e.backend.lastQuery(api.PathJiraGenValidate), "user_id="+user.ID)
}

func TestJiraGenCancelDiscardsTheRun(t *testing.T) {
	e := newEnv(t)
	_, err := e.session.Register(context.Background(), "Ada", "")
	require.NoError(t, err)

	release := make(chan struct{})
	e.backend.handle(api.PathJiraGenValidate, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		w.Write([]byte(`data: {"log":"parsing tests..."}` + "\n\n"))
		flusher.Flush()

		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Write([]byte(`data: {"complete":true,"result":{"tests":[],"stats":{"total":0,"valid":0,"invalid":0}}}` + "\n\n"))
		flusher.Flush()
	})

	bus := workflow.NewBus()
	updates, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	runner := workflow.NewJiraGenRunner(e.client, bus, "PRJ")
	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Start(context.Background(), &models.JiraGenRequest{SourceType: "api", JSONData: "[]"})
	}()

	deadline := time.After(2 * time.Second)
	for logged := false; !logged; {
		select {
		case update := <-updates:
			logged = update.Kind == workflow.UpdateLog
		case <-deadline:
			t.Fatal("no log update before cancel")
		}
	}

	runner.Cancel()
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream consumption did not finish")
	}

	state := runner.State()
	assert.Equal(t, workflow.PhaseIdle, state.Phase)
	assert.Empty(t, state.Log, "a cancelled run leaves nothing behind")
	assert.Nil(t, state.Partial, "the late complete frame must not land")
}
