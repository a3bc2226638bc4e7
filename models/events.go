package models

import "encoding/json"

// EventFrame is one decoded `data: {...}` record from a workflow event
// stream. The backend emits a union of fields; absent fields stay zero.
// Which fields a given workflow populates is up to its reducer.
type EventFrame struct {
	Log        string          `json:"log,omitempty"`
	Progress   json.RawMessage `json:"progress,omitempty"`
	Complete   bool            `json:"complete,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	TableData  json.RawMessage `json:"tableData,omitempty"`
	Tree       json.RawMessage `json:"tree,omitempty"`
	Stats      json.RawMessage `json:"stats,omitempty"`
	CacheReady bool            `json:"cacheReady,omitempty"`
	Success    *bool           `json:"success,omitempty"`
	Error      string          `json:"error,omitempty"`

	// Per-item fields used by execute-phase streams (JiraGen create,
	// Cycle-Add execute).
	Index *int   `json:"index,omitempty"`
	Key   string `json:"key,omitempty"`
	Added *int   `json:"added,omitempty"`

	ManagementMetrics json.RawMessage `json:"managementMetrics,omitempty"`

	// Decoder diagnostics. Not wire fields: a malformed frame keeps the
	// raw line for logging and is skipped by reducers.
	Malformed bool   `json:"-"`
	Raw       string `json:"-"`
}

// HasLog reports whether the frame carries a log line
func (f *EventFrame) HasLog() bool {
	return f.Log != ""
}

// IsError reports whether the frame carries a server-side error
func (f *EventFrame) IsError() bool {
	return f.Error != ""
}

// SucceededTrue reports whether the frame carries an explicit success:true
func (f *EventFrame) SucceededTrue() bool {
	return f.Success != nil && *f.Success
}

// StatsMap decodes the stats payload into a generic mapping, or nil
func (f *EventFrame) StatsMap() map[string]interface{} {
	if len(f.Stats) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(f.Stats, &m); err != nil {
		return nil
	}
	return m
}
