package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/sercano/qahub/models"
)

// BugLinkReducer accumulates the bug-link analysis plan and the bind
// outcome.
type BugLinkReducer struct {
	result *models.BugLinkResult
	bound  bool
}

// NewBugLinkReducer creates an empty bug-link accumulator
func NewBugLinkReducer() *BugLinkReducer {
	return &BugLinkReducer{}
}

// Apply implements Reducer
func (b *BugLinkReducer) Apply(phase Phase, frame models.EventFrame) (bool, error) {
	if phase == PhaseAnalyzing {
		if !frame.Complete {
			return false, nil
		}
		var result models.BugLinkResult
		if err := json.Unmarshal(frame.Result, &result); err != nil {
			return false, fmt.Errorf("decoding bug-link analysis: %w", err)
		}
		b.result = &result
		return true, nil
	}

	// Bind phase streams progress logs and ends with success:true.
	if frame.SucceededTrue() || frame.Complete {
		b.bound = true
		return true, nil
	}
	return false, nil
}

// ExecuteBody implements Reducer: the bind request carries the planned
// bindings back to the server.
func (b *BugLinkReducer) ExecuteBody() (interface{}, error) {
	if b.result == nil {
		return nil, fmt.Errorf("no analysis result to bind from")
	}
	return &models.BugLinkExecuteRequest{
		CycleID:  b.result.CycleID,
		Bindings: b.result.WillBind,
	}, nil
}

// Snapshot implements Reducer
func (b *BugLinkReducer) Snapshot() interface{} {
	if b.result == nil {
		return nil
	}
	copied := *b.result
	copied.WillBind = make([]models.BugBinding, len(b.result.WillBind))
	copy(copied.WillBind, b.result.WillBind)
	return &copied
}

// Bound reports whether the bind phase completed
func (b *BugLinkReducer) Bound() bool {
	return b.bound
}

// Reset implements Reducer
func (b *BugLinkReducer) Reset() {
	b.result = nil
	b.bound = false
}
