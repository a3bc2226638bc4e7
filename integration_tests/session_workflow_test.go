package integration_tests

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sercano/qahub/models"
)

func TestSessionRegistrationSurvivesRestart(t *testing.T) {
	backend := newQABackend(t)
	statePath := filepath.Join(t.TempDir(), "state.json")
	e := newEnvAt(t, backend, statePath)

	user, err := e.session.Register(context.Background(), "Ada", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, models.RoleUser, user.Role)

	deviceID, err := e.session.DeviceID()
	require.NoError(t, err)

	// The backend promotes the user between sessions.
	backend.setRole(deviceID, models.RoleManager)

	restarted := newEnvAt(t, backend, statePath)
	cached := restarted.session.User()
	require.NotNil(t, cached, "cached user should survive a restart")
	assert.Equal(t, models.RoleUser, cached.Role, "before validation the stale cache is shown")
	assert.True(t, restarted.session.Loading())

	restarted.session.Validate(context.Background())
	assert.False(t, restarted.session.Loading())
	require.NotNil(t, restarted.session.User())
	assert.Equal(t, models.RoleManager, restarted.session.User().Role)

	restartedID, err := restarted.session.DeviceID()
	require.NoError(t, err)
	assert.Equal(t, deviceID, restartedID, "device id is per installation, not per session")
}

func TestSessionClearedWhenDeviceRevoked(t *testing.T) {
	e := newEnv(t)
	_, err := e.session.Register(context.Background(), "Ada", "")
	require.NoError(t, err)

	deviceID, err := e.session.DeviceID()
	require.NoError(t, err)
	e.backend.forget(deviceID)

	before := e.backend.checkCount()
	e.session.Validate(context.Background())

	assert.Nil(t, e.session.User())
	// An HTTP verdict is final, so exactly one check and no retries.
	assert.Equal(t, before+1, e.backend.checkCount())

	kept, err := e.session.DeviceID()
	require.NoError(t, err)
	assert.Equal(t, deviceID, kept, "revocation must not rotate the device id")
}

func TestSessionRetriesTransportFaults(t *testing.T) {
	e := newEnv(t)
	_, err := e.session.Register(context.Background(), "Ada", "")
	require.NoError(t, err)

	e.backend.dropNextChecks(2)
	e.session.Validate(context.Background())

	require.NotNil(t, e.session.User(), "validation should survive dropped connections")
	assert.GreaterOrEqual(t, e.backend.checkCount(), 3)
}
