package coverage

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sercano/qahub/models"
	"github.com/sercano/qahub/utils"
)

// refreshConcurrency caps parallel controller refreshes in RefreshApp.
const refreshConcurrency = 4

// Refresher re-analyzes one controller against the backend. *api.Client
// satisfies this.
type Refresher interface {
	RefreshController(ctx context.Context, req *models.RefreshControllerRequest) (*models.RefreshControllerResponse, error)
}

// Model holds the current coverage payload and its derived tree. All reads
// and subtree replacements go through the model so views always observe a
// consistent pair.
type Model struct {
	client Refresher
	logger *utils.LoggerWithContext

	mu   sync.RWMutex
	data models.ProductTreeData
	tree *Tree
}

// NewModel creates an empty coverage model
func NewModel(client Refresher) *Model {
	return &Model{
		client: client,
		logger: utils.GetLogger().WithSource("coverage"),
	}
}

// SetData installs a fresh backend payload and rederives the tree
func (m *Model) SetData(data models.ProductTreeData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.tree = Build(data)
}

// Tree returns the current derived tree, or nil before the first SetData
func (m *Model) Tree() *Tree {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree
}

// RefreshController re-analyzes a single controller. On success the
// controller subtree is replaced atomically and the tree rederived; a
// failure leaves the model untouched.
func (m *Model) RefreshController(ctx context.Context, project, app, controller string) error {
	if err := m.checkController(project, app, controller); err != nil {
		return err
	}

	resp, err := m.client.RefreshController(ctx, &models.RefreshControllerRequest{
		Project:    project,
		App:        app,
		Controller: controller,
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceControllerLocked(project, app, controller, resp.Controller)
	m.logger.Info("Controller subtree refreshed", map[string]interface{}{
		"project":    project,
		"app":        app,
		"controller": controller,
		"endpoints":  len(resp.Controller.EndPoints),
	})
	return nil
}

// RefreshApp re-analyzes every controller of an app concurrently. All
// fetches complete before any subtree is replaced, so a partial failure
// leaves the model untouched.
func (m *Model) RefreshApp(ctx context.Context, project, app string) error {
	m.mu.RLock()
	appData, ok := m.data[project].Apps[app]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown app %s/%s", project, app)
	}

	names := make([]string, 0, len(appData.Controllers))
	for name := range appData.Controllers {
		names = append(names, name)
	}

	refreshed := make([]models.ControllerData, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for i, name := range names {
		g.Go(func() error {
			resp, err := m.client.RefreshController(gctx, &models.RefreshControllerRequest{
				Project:    project,
				App:        app,
				Controller: name,
			})
			if err != nil {
				return fmt.Errorf("refreshing %s: %w", name, err)
			}
			refreshed[i] = resp.Controller
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, name := range names {
		m.replaceControllerLocked(project, app, name, refreshed[i])
	}
	return nil
}

// checkController verifies the path exists in the current payload
func (m *Model) checkController(project, app, controller string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	appData, ok := m.data[project].Apps[app]
	if !ok {
		return fmt.Errorf("unknown app %s/%s", project, app)
	}
	if _, ok := appData.Controllers[controller]; !ok {
		return fmt.Errorf("unknown controller %s/%s/%s", project, app, controller)
	}
	return nil
}

// replaceControllerLocked swaps one controller payload and rederives the
// tree. Other subtrees carry identical values through the rebuild.
func (m *Model) replaceControllerLocked(project, app, controller string, data models.ControllerData) {
	appData, ok := m.data[project].Apps[app]
	if !ok {
		return
	}
	appData.Controllers[controller] = data
	m.tree = Build(m.data)
}
