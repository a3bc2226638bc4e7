// Package session holds the user identity for this installation. A device
// id generated once per machine stands in for credentials: the backend
// maps device ids to users, and the session manager keeps the local cache
// of that mapping consistent with it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sercano/qahub/api"
	"github.com/sercano/qahub/models"
	"github.com/sercano/qahub/store"
	"github.com/sercano/qahub/utils"
)

// AuthAPI is the slice of the backend client the session manager needs.
type AuthAPI interface {
	AuthCheck(ctx context.Context, deviceID string) (*models.User, error)
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
}

// Manager owns the cached user and the device identity. Construction
// rehydrates the user synchronously so views never flash unauthenticated;
// Validate then reconciles with the backend.
type Manager struct {
	client    AuthAPI
	store     *store.Store
	validator *utils.Validator
	retry     *utils.RetryExecutor
	logger    *utils.LoggerWithContext

	mu      sync.RWMutex
	user    *models.User
	loading bool
}

// NewManager creates a manager and rehydrates the cached user from the
// state store.
func NewManager(client AuthAPI, st *store.Store) *Manager {
	m := &Manager{
		client:    client,
		store:     st,
		validator: utils.NewValidator(),
		retry: utils.NewRetryExecutor(&utils.RetryConfig{
			MaxAttempts:       3,
			InitialDelay:      300 * time.Millisecond,
			MaxDelay:          2 * time.Second,
			BackoffMultiplier: 2,
			Jitter:            true,
			RetryCondition:    isTransient,
		}, nil),
		logger: utils.GetLogger().WithSource("session"),
	}

	var cached models.User
	if st.Get(store.KeyUser, &cached) {
		m.user = &cached
		m.loading = true
	}
	return m
}

// isTransient retries transport faults only; HTTP verdicts are final
func isTransient(err error) bool {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 0
	}
	return false
}

// User returns a copy of the cached user, or nil when logged out
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	copied := *m.user
	return &copied
}

// Loading reports whether a rehydrated user is still awaiting backend
// validation
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// CurrentUserID implements api.UserSource
func (m *Manager) CurrentUserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return ""
	}
	return m.user.ID
}

// DeviceID returns this installation's device id, generating and
// persisting one on first use.
func (m *Manager) DeviceID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deviceIDLocked()
}

func (m *Manager) deviceIDLocked() (string, error) {
	if id := m.store.GetString(store.KeyDeviceID); id != "" {
		return id, nil
	}
	id := uuid.New().String()
	if err := m.store.Set(store.KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("persisting device id: %w", err)
	}
	m.logger.Info("Generated device id", map[string]interface{}{"device_id": id})
	return id, nil
}

// Validate reconciles the cached user with the backend. A recognized
// device replaces the cache with the server's copy; any other verdict
// clears it. Transport faults are retried before giving up.
func (m *Manager) Validate(ctx context.Context) {
	m.mu.Lock()
	deviceID, err := m.deviceIDLocked()
	if err != nil {
		m.loading = false
		m.mu.Unlock()
		m.logger.Error("Device id unavailable", err, nil)
		return
	}
	m.loading = true
	m.mu.Unlock()

	var user *models.User
	checkErr := m.retry.Execute(ctx, func(ctx context.Context) error {
		var err error
		user, err = m.client.AuthCheck(ctx, deviceID)
		return err
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false

	if checkErr != nil {
		m.logger.Warn("Device check failed, clearing session", map[string]interface{}{
			"error": checkErr.Error(),
		})
		m.clearUserLocked()
		return
	}
	m.installUserLocked(user)
}

// Register creates a user for this device and installs it
func (m *Manager) Register(ctx context.Context, name, email string) (*models.User, error) {
	deviceID, err := m.DeviceID()
	if err != nil {
		return nil, err
	}

	req := &models.RegisterRequest{
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		DeviceID: deviceID,
	}
	if result := m.validator.ValidateStruct(req); !result.IsValid {
		return nil, fmt.Errorf("invalid registration: %s", result.FirstError())
	}

	user, err := m.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false
	m.installUserLocked(user)
	return m.user, nil
}

// Logout clears the cached user. The device id survives so the backend
// can recognize this installation again.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false
	m.clearUserLocked()
}

// UpdateUser installs an updated user returned by the backend (category
// edits, role changes)
func (m *Manager) UpdateUser(user *models.User) {
	if user == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installUserLocked(user)
}

func (m *Manager) installUserLocked(user *models.User) {
	copied := *user
	m.user = &copied
	if err := m.store.Set(store.KeyUser, m.user); err != nil {
		m.logger.Error("Persisting user failed", err, nil)
	}
}

func (m *Manager) clearUserLocked() {
	m.user = nil
	if err := m.store.Delete(store.KeyUser); err != nil {
		m.logger.Error("Clearing persisted user failed", err, nil)
	}
}
