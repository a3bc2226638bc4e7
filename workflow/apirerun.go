package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/sercano/qahub/models"
)

// APIRerunReducer captures the single-phase rerun output.
type APIRerunReducer struct {
	result *models.APIRerunResult
}

// NewAPIRerunReducer creates an empty rerun accumulator
func NewAPIRerunReducer() *APIRerunReducer {
	return &APIRerunReducer{}
}

// Apply implements Reducer
func (a *APIRerunReducer) Apply(_ Phase, frame models.EventFrame) (bool, error) {
	if !frame.Complete && !frame.SucceededTrue() {
		return false, nil
	}
	var result models.APIRerunResult
	if len(frame.Result) > 0 {
		if err := json.Unmarshal(frame.Result, &result); err != nil {
			return false, fmt.Errorf("decoding rerun result: %w", err)
		}
	}
	a.result = &result
	return true, nil
}

// ExecuteBody implements Reducer. Rerun has no execute phase.
func (a *APIRerunReducer) ExecuteBody() (interface{}, error) {
	return nil, fmt.Errorf("api rerun has no execute phase")
}

// Snapshot implements Reducer
func (a *APIRerunReducer) Snapshot() interface{} {
	if a.result == nil {
		return nil
	}
	copied := *a.result
	return &copied
}

// Reset implements Reducer
func (a *APIRerunReducer) Reset() {
	a.result = nil
}
