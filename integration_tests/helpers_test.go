// Package integration_tests exercises the client stack end to end:
// session manager, API client, workflow runners and the coverage model
// against an in-process stand-in for the QA backend.
package integration_tests

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sercano/qahub/api"
	"github.com/sercano/qahub/config"
	"github.com/sercano/qahub/models"
	"github.com/sercano/qahub/session"
	"github.com/sercano/qahub/store"
)

// qaBackend is an in-process QA backend: device-bound auth by default,
// plus whatever SSE workflow endpoints a test registers.
type qaBackend struct {
	t   *testing.T
	mux *http.ServeMux
	srv *httptest.Server

	mu             sync.Mutex
	users          map[string]*models.User // device id -> user
	checkCalls     int
	failNextChecks int // drop this many auth-check connections mid-request
	bodies         map[string][][]byte
	queries        map[string][]string
}

func newQABackend(t *testing.T) *qaBackend {
	b := &qaBackend{
		t:       t,
		mux:     http.NewServeMux(),
		users:   make(map[string]*models.User),
		bodies:  make(map[string][][]byte),
		queries: make(map[string][]string),
	}
	b.mux.HandleFunc("/api/auth/register", b.handleRegister)
	b.mux.HandleFunc("/api/auth/check/", b.handleCheck)
	b.srv = httptest.NewServer(b.mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *qaBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"message":"bad request"}`, http.StatusBadRequest)
		return
	}
	user := &models.User{ID: "u-" + req.DeviceID, Name: req.Name, Email: req.Email, Role: models.RoleUser}

	b.mu.Lock()
	b.users[req.DeviceID] = user
	b.mu.Unlock()

	json.NewEncoder(w).Encode(user)
}

func (b *qaBackend) handleCheck(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimPrefix(r.URL.Path, "/api/auth/check/")

	b.mu.Lock()
	b.checkCalls++
	drop := b.failNextChecks > 0
	if drop {
		b.failNextChecks--
	}
	user := b.users[deviceID]
	b.mu.Unlock()

	if drop {
		// Close the connection before writing a status line so the
		// client sees a transport fault, not an HTTP verdict.
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(b.t, err)
		conn.Close()
		return
	}
	if user == nil {
		http.Error(w, `{"message":"unknown device"}`, http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(user)
}

// stream registers an SSE endpoint at apiPath (without the /api prefix)
// that records the request and emits the given frames.
func (b *qaBackend) stream(apiPath string, frames ...string) {
	b.handle(apiPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			w.Write([]byte("data: " + frame + "\n\n"))
			flusher.Flush()
		}
	})
}

// handle registers an endpoint under the /api prefix, recording each
// request's body and query before dispatching.
func (b *qaBackend) handle(apiPath string, handler http.HandlerFunc) {
	b.mux.HandleFunc("/api"+apiPath, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		b.mu.Lock()
		b.bodies[apiPath] = append(b.bodies[apiPath], body)
		b.queries[apiPath] = append(b.queries[apiPath], r.URL.RawQuery)
		b.mu.Unlock()

		handler(w, r)
	})
}

// lastBody returns the most recent request body seen at apiPath
func (b *qaBackend) lastBody(apiPath string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	recorded := b.bodies[apiPath]
	require.NotEmpty(b.t, recorded, "no request recorded at %s", apiPath)
	return recorded[len(recorded)-1]
}

// lastQuery returns the most recent raw query string seen at apiPath
func (b *qaBackend) lastQuery(apiPath string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	recorded := b.queries[apiPath]
	require.NotEmpty(b.t, recorded, "no request recorded at %s", apiPath)
	return recorded[len(recorded)-1]
}

func (b *qaBackend) checkCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.checkCalls
}

func (b *qaBackend) dropNextChecks(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNextChecks = n
}

// setRole changes the stored role for a device, as an admin would
func (b *qaBackend) setRole(deviceID, role string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	require.Contains(b.t, b.users, deviceID)
	b.users[deviceID].Role = role
}

// forget drops a device binding, as a backend-side revocation would
func (b *qaBackend) forget(deviceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.users, deviceID)
}

// env is the assembled client stack under test
type env struct {
	backend   *qaBackend
	statePath string
	store     *store.Store
	client    *api.Client
	session   *session.Manager
}

// newEnv builds the full stack against a fresh backend and an isolated
// state file.
func newEnv(t *testing.T) *env {
	return newEnvAt(t, newQABackend(t), filepath.Join(t.TempDir(), "state.json"))
}

// newEnvAt rebuilds the stack over an existing backend and state file,
// the way a process restart would.
func newEnvAt(t *testing.T, backend *qaBackend, statePath string) *env {
	st, err := store.Open(statePath)
	require.NoError(t, err)

	client := api.New(&config.Config{
		BackendURL:     backend.srv.URL,
		RequestTimeout: 5 * time.Second,
	}, nil)
	sess := session.NewManager(client, st)
	client.SetUserSource(sess)

	return &env{backend: backend, statePath: statePath, store: st, client: client, session: sess}
}
