package workflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sercano/qahub/api"
	"github.com/sercano/qahub/config"
	"github.com/sercano/qahub/models"
)

// sseHandler writes each frame as a `data:` record with a blank separator
// line, flushing between frames.
func sseHandler(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			w.Write([]byte("data: " + frame + "\n\n"))
			flusher.Flush()
		}
	}
}

func testAPIClient(t *testing.T, handler http.Handler) *api.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return api.New(&config.Config{
		BackendURL:     server.URL,
		RequestTimeout: 5 * time.Second,
	}, nil)
}

func TestRunner_JiraGenValidate(t *testing.T) {
	client := testAPIClient(t, sseHandler(
		`{"log":"parsing..."}`,
		`{"log":"validating..."}`,
		`{"complete":true,"result":{"tests":[{"index":1,"name":"T1","validation":{"isValid":true},"rawTest":{"summary":"T1"}}],"stats":{"total":1,"valid":1,"invalid":0}}}`,
	))

	runner := NewJiraGenRunner(client, nil, "PRJ")
	require.NoError(t, runner.Start(context.Background(), &models.JiraGenRequest{
		SourceType: "api",
		JSONData:   `[{"summary":"T1"}]`,
	}))

	state := runner.State()
	assert.Equal(t, PhaseReady, state.Phase)
	assert.Equal(t, []string{"parsing...", "validating..."}, state.Log)

	result, ok := state.Partial.(*models.JiraGenResult)
	require.True(t, ok)
	require.Len(t, result.Tests, 1)
	assert.True(t, result.Tests[0].Validation.IsValid)
	assert.Equal(t, 1, result.Stats.Valid)
}

func TestRunner_StartOnlyFromIdle(t *testing.T) {
	client := testAPIClient(t, sseHandler(
		`{"complete":true,"result":{"tests":[],"stats":{"total":0,"valid":0,"invalid":0}}}`,
	))

	runner := NewJiraGenRunner(client, nil, "")
	require.NoError(t, runner.Start(context.Background(), nil))

	err := runner.Start(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only valid from idle")
}

func TestRunner_ExecuteOnlyFromReady(t *testing.T) {
	client := testAPIClient(t, http.NotFoundHandler())
	runner := NewBugLinkRunner(client, nil)

	err := runner.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only valid from ready")
}

func TestRunner_ErrorFrameFails(t *testing.T) {
	client := testAPIClient(t, sseHandler(
		`{"log":"analyzing cycle..."}`,
		`{"error":"cycle not found"}`,
		`{"complete":true,"result":{}}`,
	))

	runner := NewBugLinkRunner(client, nil)
	require.NoError(t, runner.Start(context.Background(), &models.BugLinkRequest{CycleID: "c1"}))

	state := runner.State()
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.Equal(t, "cycle not found", state.Err)
	// The stream stopped at the error frame; the trailing complete was
	// never applied.
	assert.Nil(t, state.Partial)
}

func TestRunner_PrematureEndFails(t *testing.T) {
	client := testAPIClient(t, sseHandler(`{"log":"working..."}`))

	runner := NewBugLinkRunner(client, nil)
	require.NoError(t, runner.Start(context.Background(), &models.BugLinkRequest{CycleID: "c1"}))

	state := runner.State()
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.Equal(t, ReasonPrematureEnd, state.Err)
	assert.Equal(t, []string{"working..."}, state.Log)
}

func TestRunner_MalformedFrameSkipped(t *testing.T) {
	client := testAPIClient(t, sseHandler(
		`{"log":"ok"}`,
		`{not json at all`,
		`{"complete":true,"result":{"cycleId":"c1","stats":{"total":2,"toBind":1},"willBind":[]}}`,
	))

	runner := NewBugLinkRunner(client, nil)
	require.NoError(t, runner.Start(context.Background(), &models.BugLinkRequest{CycleID: "c1"}))

	state := runner.State()
	assert.Equal(t, PhaseReady, state.Phase)
	assert.Equal(t, []string{"ok"}, state.Log)
}

func TestRunner_Timeout(t *testing.T) {
	client := testAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"log\":\"started\"}\n\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	runner := NewBugLinkRunner(client, nil, WithTimeout(150*time.Millisecond))
	require.NoError(t, runner.Start(context.Background(), &models.BugLinkRequest{CycleID: "c1"}))

	state := runner.State()
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.Equal(t, ReasonTimeout, state.Err)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func TestRunner_CancelDiscardsRun(t *testing.T) {
	release := make(chan struct{})
	client := testAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"log\":\"first\"}\n\n"))
		w.(http.Flusher).Flush()
		<-release
		// A late terminal frame after the client canceled.
		w.Write([]byte("data: {\"complete\":true,\"result\":{\"cycleId\":\"c1\",\"stats\":{\"total\":1,\"toBind\":1},\"willBind\":[]}}\n\n"))
	}))

	runner := NewBugLinkRunner(client, nil)
	updates, unsubscribe := runner.Bus().Subscribe()
	defer unsubscribe()

	started := make(chan struct{})
	go func() {
		runner.Start(context.Background(), &models.BugLinkRequest{CycleID: "c1"})
		close(started)
	}()

	// Wait for the first log line to be applied, then cancel mid-stream.
	for update := range updates {
		if update.Kind == UpdateLog {
			break
		}
	}
	runner.Cancel()
	close(release)
	<-started

	state := runner.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Empty(t, state.Log)
	assert.Nil(t, state.Partial)
	assert.Empty(t, state.Err)
}

func TestRunner_CycleAddEchoesSaveBody(t *testing.T) {
	saveBody := `{"cycle":"REG-2025","items":[101,102]}`

	mux := http.NewServeMux()
	mux.Handle("/api"+api.PathCycleAddAnalyze, sseHandler(
		`{"log":"collecting executions..."}`,
		`{"complete":true,"result":{"saveBody":`+saveBody+`,"stats":{"total":3,"toAdd":2,"toSkip":1},"willBeAdded":[{"testKey":"T-1","testName":"login"},{"testKey":"T-2","testName":"logout"}]}}`,
	))
	var executeBody []byte
	mux.HandleFunc("/api"+api.PathCycleAddExecute, func(w http.ResponseWriter, r *http.Request) {
		executeBody, _ = io.ReadAll(r.Body)
		sseHandler(`{"log":"saving..."}`, `{"added":2,"complete":true}`)(w, r)
	})

	client := testAPIClient(t, mux)
	runner := NewCycleAddRunner(client, nil)

	require.NoError(t, runner.Start(context.Background(), &models.CycleAddRequest{
		CycleName:  "REG-2025",
		ProjectKey: "PRJ",
	}))
	require.Equal(t, PhaseReady, runner.State().Phase)

	require.NoError(t, runner.Execute(context.Background()))

	state := runner.State()
	assert.Equal(t, PhaseDone, state.Phase)
	assert.JSONEq(t, `{"saveBody":`+saveBody+`}`, string(executeBody))
}

func TestRunner_JiraGenCreateVerdicts(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/api"+api.PathJiraGenValidate, sseHandler(
		`{"complete":true,"result":{"tests":[`+
			`{"index":1,"name":"T1","validation":{"isValid":true}},`+
			`{"index":2,"name":"T2","validation":{"isValid":true}},`+
			`{"index":3,"name":"T3","validation":{"isValid":false,"errors":["missing summary"]}}`+
			`],"stats":{"total":3,"valid":2,"invalid":1}}}`,
	))
	var createBody []byte
	mux.HandleFunc("/api"+api.PathJiraGenCreate, func(w http.ResponseWriter, r *http.Request) {
		createBody, _ = io.ReadAll(r.Body)
		sseHandler(
			`{"index":1,"success":true,"key":"PRJ-101"}`,
			`{"index":2,"success":false,"error":"duplicate summary"}`,
		)(w, r)
	})

	client := testAPIClient(t, mux)
	runner := NewJiraGenRunner(client, nil, "PRJ")

	require.NoError(t, runner.Start(context.Background(), &models.JiraGenRequest{
		SourceType: "manual",
		JSONData:   "[]",
	}))
	require.Equal(t, PhaseReady, runner.State().Phase)

	require.NoError(t, runner.Execute(context.Background()))

	state := runner.State()
	require.Equal(t, PhaseDone, state.Phase)

	result := state.Partial.(*models.JiraGenResult)
	require.Len(t, result.Tests, 3)
	assert.True(t, result.Tests[0].Created)
	assert.Equal(t, "PRJ-101", result.Tests[0].JiraKey)
	assert.False(t, result.Tests[1].Created)
	assert.Equal(t, "duplicate summary", result.Tests[1].CreateError)
	assert.False(t, result.Tests[2].Created)

	// Only the tests that passed validation went to create.
	var sent struct {
		Tests []models.GeneratedTest `json:"tests"`
	}
	require.NoError(t, json.Unmarshal(createBody, &sent))
	assert.Len(t, sent.Tests, 2)
}

func TestRunner_ProductTreeInline(t *testing.T) {
	client := testAPIClient(t, sseHandler(
		`{"log":"scanning controllers..."}`,
		`{"complete":true,"tree":{"billing":{"apps":{}}},"stats":{"totalEndpoints":0}}`,
	))

	runner := NewProductTreeRunner(client, nil)
	require.NoError(t, runner.Start(context.Background(), &models.ProductTreeRequest{Project: "billing"}))

	state := runner.State()
	assert.Equal(t, PhaseDone, state.Phase)

	tree, ok := state.Partial.(models.ProductTreeData)
	require.True(t, ok)
	assert.Contains(t, tree, "billing")
}

func TestRunner_ProductTreeCacheReady(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/api"+api.PathProductTreeRun, sseHandler(
		`{"log":"using cached analysis"}`,
		`{"cacheReady":true}`,
	))
	mux.HandleFunc("/api/product-tree/data", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"billing":{"apps":{"core":{"controllers":{}}}}}`))
	})

	client := testAPIClient(t, mux)
	runner := NewProductTreeRunner(client, nil)

	require.NoError(t, runner.Start(context.Background(), &models.ProductTreeRequest{Project: "billing"}))

	state := runner.State()
	assert.Equal(t, PhaseDone, state.Phase)

	tree := state.Partial.(models.ProductTreeData)
	require.Contains(t, tree, "billing")
	assert.Contains(t, tree["billing"].Apps, "core")
}

func TestRunner_AnalysisTable(t *testing.T) {
	client := testAPIClient(t, sseHandler(
		`{"log":"querying results..."}`,
		`{"success":true,"tableData":[{"test":"login","durum":"PASSED"},{"test":"logout","durum":"FAILED"}],"stats":{"total":2},"managementMetrics":{"passRate":0.5}}`,
	))

	runner := NewTestAnalysisRunner(client, nil)
	require.NoError(t, runner.Start(context.Background(), &models.AnalysisRequest{Project: "billing"}))

	state := runner.State()
	assert.Equal(t, PhaseDone, state.Phase)

	assert.Equal(t, float64(2), state.Stats["total"])

	snap := state.Partial.(*AnalysisSnapshot)
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, "login", snap.Rows[0]["test"])
	assert.Equal(t, 0.5, snap.Metrics["passRate"])
}

func TestRunner_ResetClearsTerminalState(t *testing.T) {
	client := testAPIClient(t, sseHandler(`{"error":"boom"}`))

	runner := NewAPIRerunRunner(client, nil)
	require.NoError(t, runner.Start(context.Background(), &models.APIRerunRequest{CycleID: "c1"}))
	require.Equal(t, PhaseFailed, runner.State().Phase)

	runner.Reset()

	state := runner.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Empty(t, state.Err)
	assert.Empty(t, state.Log)

	// The runner is reusable after a reset.
	require.NoError(t, runner.Start(context.Background(), &models.APIRerunRequest{CycleID: "c1"}))
}

func TestBus_UpdatesArriveInOrder(t *testing.T) {
	client := testAPIClient(t, sseHandler(
		`{"log":"one"}`,
		`{"log":"two"}`,
		`{"log":"three"}`,
		`{"complete":true,"result":{"output":"done"}}`,
	))

	bus := NewBus()
	updates, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	runner := NewAPIRerunRunner(client, bus)
	require.NoError(t, runner.Start(context.Background(), &models.APIRerunRequest{CycleID: "c1"}))

	var logs []string
	lastSeq := 0
	for len(logs) < 3 {
		update := <-updates
		assert.Greater(t, update.Seq, lastSeq)
		lastSeq = update.Seq
		if update.Kind == UpdateLog {
			logs = append(logs, update.Line)
		}
	}
	assert.Equal(t, []string{"one", "two", "three"}, logs)
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	_, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	// Publish far more than the subscriber buffer without draining; the
	// publisher must never stall.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.publish(Update{Kind: UpdateLog, Line: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}
