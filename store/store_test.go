package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	return s
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	s := tempStore(t)

	type user struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	require.NoError(t, s.Set(KeyUser, user{ID: "u1", Name: "SERCANO"}))

	var got user
	assert.True(t, s.Get(KeyUser, &got))
	assert.Equal(t, user{ID: "u1", Name: "SERCANO"}, got)
}

func TestStore_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(KeyDeviceID, "device-123"))

	s2, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "device-123", s2.GetString(KeyDeviceID))
}

func TestStore_AbsentKey(t *testing.T) {
	s := tempStore(t)

	var v string
	assert.False(t, s.Get("missing", &v))
	assert.Empty(t, s.GetString("missing"))
}

func TestStore_CorruptedFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, s.GetString(KeyUser))

	// The store must still be writable after recovery.
	require.NoError(t, s.Set(KeyDeviceID, "d1"))
	assert.Equal(t, "d1", s.GetString(KeyDeviceID))
}

func TestStore_CorruptedValueTreatedAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"qa_user": "not-an-object"}`), 0o600))

	s, err := Open(path)
	require.NoError(t, err)

	var v struct {
		ID string `json:"id"`
	}
	assert.False(t, s.Get(KeyUser, &v))
}

func TestStore_RememberSwallowsWriteFailures(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	// The write cannot land on disk, but the flow must not be blocked
	// and the value stays available for this session.
	s.Remember(KeyTreeProject, "billing")
	assert.Equal(t, "billing", s.GetString(KeyTreeProject))
}

func TestStore_Delete(t *testing.T) {
	s := tempStore(t)

	require.NoError(t, s.Set(KeyUser, "x"))
	require.NoError(t, s.Delete(KeyUser))
	assert.Empty(t, s.GetString(KeyUser))

	// Deleting an absent key is a no-op.
	require.NoError(t, s.Delete(KeyUser))
}
