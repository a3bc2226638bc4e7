package models

import "time"

// Task is one work item on a team member's board
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title" validate:"required,min=1"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status" validate:"oneof=todo in_progress done"`
	Priority    string     `json:"priority,omitempty" validate:"oneof=low medium high"`
	CategoryID  string     `json:"category_id,omitempty"`
	ProjectID   string     `json:"project_id,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

// Project is a task-management project grouping tasks
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required,min=1"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// QAProject is a Jira-side project the QA tooling operates on
type QAProject struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Cycle is a named Jira test cycle
type Cycle struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProjectKey string `json:"project_key,omitempty"`
	Version    string `json:"version,omitempty"`
	Status     string `json:"status,omitempty"`
}

// DashboardStats is the payload of GET /dashboard/stats
type DashboardStats struct {
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	CompletionRate  float64 `json:"completion_rate"`
	RecentTasks     []Task  `json:"recent_tasks"`
}

// BreakdownItem is one labeled count in a report breakdown
type BreakdownItem struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// MonthlyDatum is one month's created/completed counts
type MonthlyDatum struct {
	Month     string `json:"month"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

// DetailedStats is the payload of GET /reports/detailed-stats
type DetailedStats struct {
	Summary           map[string]interface{} `json:"summary"`
	WorkBreakdown     []BreakdownItem        `json:"work_breakdown"`
	PriorityBreakdown []BreakdownItem        `json:"priority_breakdown"`
	MonthlyData       []MonthlyDatum         `json:"monthly_data"`
	RecentTasks       []Task                 `json:"recent_tasks"`
}

// ExportRequest is the body of POST /reports/export
type ExportRequest struct {
	Format       string `json:"format" validate:"required,oneof=pdf xlsx docx"`
	UserID       string `json:"user_id,omitempty"`
	IncludeTasks bool   `json:"include_tasks"`
	IncludeStats bool   `json:"include_stats"`
	PeriodMonths int    `json:"period_months" validate:"min=1,max=24"`
}

// VerifyKeyRequest is the body of POST /admin/verify-key
type VerifyKeyRequest struct {
	Key string `json:"key" validate:"required"`
}

// AuditLog is one entry of GET /audit-logs
type AuditLog struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Action    string            `json:"action"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
