package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/sercano/qahub/models"
)

// CycleAddReducer accumulates the cycle-add plan. The saveBody returned by
// analyze is a server continuation token: it is echoed into the execute
// request byte for byte.
type CycleAddReducer struct {
	result *models.CycleAddResult
	added  int
}

// NewCycleAddReducer creates an empty cycle-add accumulator
func NewCycleAddReducer() *CycleAddReducer {
	return &CycleAddReducer{}
}

// Apply implements Reducer
func (c *CycleAddReducer) Apply(phase Phase, frame models.EventFrame) (bool, error) {
	if phase == PhaseAnalyzing {
		if !frame.Complete {
			return false, nil
		}
		var result models.CycleAddResult
		if err := json.Unmarshal(frame.Result, &result); err != nil {
			return false, fmt.Errorf("decoding cycle-add analysis: %w", err)
		}
		c.result = &result
		return true, nil
	}

	if frame.Added != nil {
		c.added = *frame.Added
		return true, nil
	}
	if frame.SucceededTrue() || frame.Complete {
		return true, nil
	}
	return false, nil
}

// ExecuteBody implements Reducer
func (c *CycleAddReducer) ExecuteBody() (interface{}, error) {
	if c.result == nil {
		return nil, fmt.Errorf("no analysis result to execute from")
	}
	return &models.CycleAddExecuteRequest{SaveBody: c.result.SaveBody}, nil
}

// Snapshot implements Reducer
func (c *CycleAddReducer) Snapshot() interface{} {
	if c.result == nil {
		return nil
	}
	copied := *c.result
	copied.WillBeAdded = make([]models.CycleAddItem, len(c.result.WillBeAdded))
	copy(copied.WillBeAdded, c.result.WillBeAdded)
	return &copied
}

// Added returns the server-reported count of executions added to the cycle
func (c *CycleAddReducer) Added() int {
	return c.added
}

// Reset implements Reducer
func (c *CycleAddReducer) Reset() {
	c.result = nil
	c.added = 0
}
