package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sercano/qahub/models"
)

// Streaming workflow endpoints. Each returns a text/event-stream.
const (
	PathJiraGenValidate   = "/jira-tools/jiragen/validate"
	PathJiraGenCreate     = "/jira-tools/jiragen/create"
	PathBugLinkAnalyze    = "/jira-tools/bugbagla/analyze"
	PathBugLinkBind       = "/jira-tools/bugbagla/bind"
	PathCycleAddAnalyze   = "/jira-tools/cycleadd/analyze"
	PathCycleAddExecute   = "/jira-tools/cycleadd/execute"
	PathAPIRerun          = "/jira-tools/apirerun"
	PathTestAnalysis      = "/analysis/analyze"
	PathAPIAnalysis       = "/analysis/apianaliz"
	PathProductTreeRun    = "/product-tree/run"
	PathRefreshController = "/product-tree/refresh-controller"
)

// AuthCheck validates the device against the backend. 404 means the device
// is unknown; that surfaces as an *Error with IsNotFound() == true.
func (c *Client) AuthCheck(ctx context.Context, deviceID string) (*models.User, error) {
	var user models.User
	if err := c.get(ctx, "/auth/check/"+url.PathEscape(deviceID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Register creates a user for this device and returns it
func (c *Client) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	var user models.User
	if err := c.post(ctx, "/auth/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DashboardStats fetches the aggregate dashboard counters
func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := c.get(ctx, "/dashboard/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Tasks lists the current user's tasks
func (c *Client) Tasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.get(ctx, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask creates a task
func (c *Client) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	var created models.Task
	if err := c.post(ctx, "/tasks", task, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTask updates a task
func (c *Client) UpdateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	var updated models.Task
	if err := c.put(ctx, "/tasks/"+url.PathEscape(task.ID), task, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTask deletes a task
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.del(ctx, "/tasks/"+url.PathEscape(id), nil)
}

// Projects lists projects
func (c *Client) Projects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.get(ctx, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject creates a project
func (c *Client) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	var created models.Project
	if err := c.post(ctx, "/projects", project, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Users lists team members
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.get(ctx, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// QAProjects lists the Jira projects available to the QA tooling
func (c *Client) QAProjects(ctx context.Context) ([]models.QAProject, error) {
	var projects []models.QAProject
	if err := c.get(ctx, "/qa-projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Cycles lists test cycles
func (c *Client) Cycles(ctx context.Context) ([]models.Cycle, error) {
	var cycles []models.Cycle
	if err := c.get(ctx, "/cycles", nil, &cycles); err != nil {
		return nil, err
	}
	return cycles, nil
}

// AddCategory adds a category to a user and returns the updated user
func (c *Client) AddCategory(ctx context.Context, userID string, req *models.CategoryRequest) (*models.User, error) {
	var user models.User
	path := fmt.Sprintf("/users/%s/categories", url.PathEscape(userID))
	if err := c.post(ctx, path, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteCategory removes a category from a user and returns the updated user
func (c *Client) DeleteCategory(ctx context.Context, userID, categoryID string) (*models.User, error) {
	var user models.User
	path := fmt.Sprintf("/users/%s/categories/%s", url.PathEscape(userID), url.PathEscape(categoryID))
	if err := c.del(ctx, path, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DetailedStats fetches report statistics for the given period
func (c *Client) DetailedStats(ctx context.Context, periodMonths int) (*models.DetailedStats, error) {
	query := url.Values{"period_months": []string{strconv.Itoa(periodMonths)}}
	var stats models.DetailedStats
	if err := c.get(ctx, "/reports/detailed-stats", query, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ExportReport renders a report and returns the binary document
func (c *Client) ExportReport(ctx context.Context, req *models.ExportRequest) ([]byte, error) {
	return c.postRaw(ctx, "/reports/export", req)
}

// VerifyAdminKey checks an admin key
func (c *Client) VerifyAdminKey(ctx context.Context, key string) error {
	return c.post(ctx, "/admin/verify-key", &models.VerifyKeyRequest{Key: key}, nil)
}

// QATeam lists the QA team (admin surface)
func (c *Client) QATeam(ctx context.Context) ([]models.User, error) {
	var team []models.User
	if err := c.get(ctx, "/admin/qa-team", nil, &team); err != nil {
		return nil, err
	}
	return team, nil
}

// TeamTasks lists tasks across the team (admin surface)
func (c *Client) TeamTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.get(ctx, "/admin/team-tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// AuditLogs lists audit log entries (admin surface)
func (c *Client) AuditLogs(ctx context.Context) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	if err := c.get(ctx, "/audit-logs", nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// Roles lists user-to-role assignments (admin surface)
func (c *Client) Roles(ctx context.Context) (map[string]string, error) {
	var roles map[string]string
	if err := c.get(ctx, "/users/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// AssignRole assigns a role to a user (admin surface)
func (c *Client) AssignRole(ctx context.Context, req *models.AssignRoleRequest) error {
	return c.post(ctx, "/users/assign-role", req, nil)
}

// ProductTreeData fetches the cached coverage tree after a cacheReady frame
func (c *Client) ProductTreeData(ctx context.Context) (models.ProductTreeData, error) {
	var data models.ProductTreeData
	if err := c.get(ctx, "/product-tree/data", nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// RefreshController re-analyzes one controller and returns its new subtree
func (c *Client) RefreshController(ctx context.Context, req *models.RefreshControllerRequest) (*models.RefreshControllerResponse, error) {
	var resp models.RefreshControllerResponse
	if err := c.post(ctx, PathRefreshController, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
