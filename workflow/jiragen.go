package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/sercano/qahub/models"
)

// jiraGenExecuteRequest is the body of the create phase: the validated
// tests plus the target project.
type jiraGenExecuteRequest struct {
	Tests      []models.GeneratedTest `json:"tests"`
	ProjectKey string                 `json:"projectKey,omitempty"`
}

// JiraGenReducer accumulates the validate result and, during the create
// phase, folds per-test verdict frames into it.
type JiraGenReducer struct {
	projectKey string
	result     *models.JiraGenResult
	settled    int // tests accounted for during create
}

// NewJiraGenReducer creates an empty jiragen accumulator
func NewJiraGenReducer(projectKey string) *JiraGenReducer {
	return &JiraGenReducer{projectKey: projectKey}
}

// Apply implements Reducer
func (j *JiraGenReducer) Apply(phase Phase, frame models.EventFrame) (bool, error) {
	if phase == PhaseAnalyzing {
		if !frame.Complete {
			return false, nil
		}
		var result models.JiraGenResult
		if err := json.Unmarshal(frame.Result, &result); err != nil {
			return false, fmt.Errorf("decoding validation result: %w", err)
		}
		j.result = &result
		return true, nil
	}

	// Create phase: one verdict frame per test, matched by index.
	if frame.Success != nil {
		j.settle(frame)
	}
	if frame.Complete {
		return true, nil
	}
	return j.result != nil && j.settled >= j.validCount(), nil
}

// settle records one per-test create verdict
func (j *JiraGenReducer) settle(frame models.EventFrame) {
	if j.result == nil || frame.Index == nil {
		return
	}
	for i := range j.result.Tests {
		if j.result.Tests[i].Index != *frame.Index {
			continue
		}
		if *frame.Success {
			j.result.Tests[i].Created = true
			j.result.Tests[i].JiraKey = frame.Key
		} else {
			j.result.Tests[i].CreateError = frame.Error
		}
		j.settled++
		return
	}
}

// validCount returns how many tests passed validation and will be created
func (j *JiraGenReducer) validCount() int {
	n := 0
	for _, t := range j.result.Tests {
		if t.Validation.IsValid {
			n++
		}
	}
	return n
}

// ExecuteBody implements Reducer: only tests that passed validation are
// sent to create.
func (j *JiraGenReducer) ExecuteBody() (interface{}, error) {
	if j.result == nil {
		return nil, fmt.Errorf("no validation result to create from")
	}
	valid := make([]models.GeneratedTest, 0, len(j.result.Tests))
	for _, t := range j.result.Tests {
		if t.Validation.IsValid {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid tests to create")
	}
	return &jiraGenExecuteRequest{Tests: valid, ProjectKey: j.projectKey}, nil
}

// Snapshot implements Reducer
func (j *JiraGenReducer) Snapshot() interface{} {
	if j.result == nil {
		return nil
	}
	copied := *j.result
	copied.Tests = make([]models.GeneratedTest, len(j.result.Tests))
	copy(copied.Tests, j.result.Tests)
	return &copied
}

// Reset implements Reducer
func (j *JiraGenReducer) Reset() {
	j.result = nil
	j.settled = 0
}
