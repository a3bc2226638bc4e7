package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/sercano/qahub/models"
)

// AnalysisSnapshot is what an analysis run exposes to views once its
// terminal frame lands.
type AnalysisSnapshot struct {
	Rows    []models.AnalysisRow
	Metrics map[string]interface{}
}

// AnalysisReducer captures the streamed analysis table. Test analysis and
// API analysis share the shape; the column set differs per endpoint, so
// rows stay generic.
type AnalysisReducer struct {
	rows    []models.AnalysisRow
	metrics map[string]interface{}
}

// NewAnalysisReducer creates an empty analysis accumulator
func NewAnalysisReducer() *AnalysisReducer {
	return &AnalysisReducer{}
}

// Apply implements Reducer
func (a *AnalysisReducer) Apply(_ Phase, frame models.EventFrame) (bool, error) {
	if len(frame.TableData) > 0 {
		var rows []models.AnalysisRow
		if err := json.Unmarshal(frame.TableData, &rows); err != nil {
			return false, fmt.Errorf("decoding analysis table: %w", err)
		}
		a.rows = rows
	}
	if len(frame.ManagementMetrics) > 0 {
		var metrics map[string]interface{}
		if err := json.Unmarshal(frame.ManagementMetrics, &metrics); err != nil {
			return false, fmt.Errorf("decoding management metrics: %w", err)
		}
		a.metrics = metrics
	}
	return frame.SucceededTrue() || frame.Complete, nil
}

// ExecuteBody implements Reducer. Analysis runs are single phase.
func (a *AnalysisReducer) ExecuteBody() (interface{}, error) {
	return nil, fmt.Errorf("analysis has no execute phase")
}

// Snapshot implements Reducer
func (a *AnalysisReducer) Snapshot() interface{} {
	if a.rows == nil && a.metrics == nil {
		return nil
	}
	snap := &AnalysisSnapshot{
		Rows: make([]models.AnalysisRow, len(a.rows)),
	}
	copy(snap.Rows, a.rows)
	if a.metrics != nil {
		snap.Metrics = make(map[string]interface{}, len(a.metrics))
		for k, v := range a.metrics {
			snap.Metrics[k] = v
		}
	}
	return snap
}

// Reset implements Reducer
func (a *AnalysisReducer) Reset() {
	a.rows = nil
	a.metrics = nil
}
