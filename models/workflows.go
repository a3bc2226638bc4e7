package models

import "encoding/json"

// JiraGenRequest is the body of POST /jira-tools/jiragen/validate
type JiraGenRequest struct {
	SourceType string `json:"type" validate:"required,oneof=api ui manual"`
	JSONData   string `json:"jsonData" validate:"required"`
	ProjectKey string `json:"projectKey,omitempty"`
}

// TestValidation is the per-test validation verdict from jiragen/validate
type TestValidation struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors,omitempty"`
}

// GeneratedTest is one candidate Jira test from jiragen/validate. The
// Created/JiraKey/CreateError fields are filled client-side during the
// create phase and never sent to the backend.
type GeneratedTest struct {
	Index      int             `json:"index"`
	Name       string          `json:"name"`
	Validation TestValidation  `json:"validation"`
	RawTest    json.RawMessage `json:"rawTest,omitempty"`

	Created     bool   `json:"-"`
	JiraKey     string `json:"-"`
	CreateError string `json:"-"`
}

// JiraGenStats summarizes a jiragen validation pass
type JiraGenStats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// JiraGenResult is the complete:true payload of jiragen/validate
type JiraGenResult struct {
	Tests []GeneratedTest `json:"tests"`
	Stats JiraGenStats    `json:"stats"`
}

// BugLinkRequest is the body of POST /jira-tools/bugbagla/analyze
type BugLinkRequest struct {
	CycleID    string `json:"cycleId" validate:"required"`
	ProjectKey string `json:"projectKey,omitempty"`
}

// BugBinding is one planned test-result-to-bug link
type BugBinding struct {
	TestKey      string   `json:"testKey"`
	TestName     string   `json:"testName"`
	TestResultID string   `json:"testResultId"`
	BugIDs       []string `json:"bugIds"`
	BugKeys      []string `json:"bugKeys"`
}

// BugLinkStats summarizes a bug-link analysis
type BugLinkStats struct {
	Total  int `json:"total"`
	ToBind int `json:"toBind"`
}

// BugLinkResult is the complete:true payload of bugbagla/analyze
type BugLinkResult struct {
	CycleID  string       `json:"cycleId"`
	Stats    BugLinkStats `json:"stats"`
	WillBind []BugBinding `json:"willBind"`
}

// BugLinkExecuteRequest is the body of POST /jira-tools/bugbagla/bind
type BugLinkExecuteRequest struct {
	CycleID  string       `json:"cycleId"`
	Bindings []BugBinding `json:"bindings"`
}

// CycleAddRequest is the body of POST /jira-tools/cycleadd/analyze
type CycleAddRequest struct {
	CycleName  string `json:"cycleName" validate:"required"`
	ProjectKey string `json:"projectKey" validate:"required"`
	Version    string `json:"version,omitempty"`
}

// CycleAddItem is one test execution planned for addition to a cycle
type CycleAddItem struct {
	TestKey  string `json:"testKey"`
	TestName string `json:"testName"`
	Status   string `json:"status,omitempty"`
}

// CycleAddStats summarizes a cycle-add analysis
type CycleAddStats struct {
	Total  int `json:"total"`
	ToAdd  int `json:"toAdd"`
	ToSkip int `json:"toSkip"`
}

// CycleAddResult is the complete:true payload of cycleadd/analyze. SaveBody
// is a server continuation token echoed back verbatim on execute.
type CycleAddResult struct {
	SaveBody    json.RawMessage `json:"saveBody"`
	Stats       CycleAddStats   `json:"stats"`
	WillBeAdded []CycleAddItem  `json:"willBeAdded"`
}

// CycleAddExecuteRequest is the body of POST /jira-tools/cycleadd/execute
type CycleAddExecuteRequest struct {
	SaveBody json.RawMessage `json:"saveBody"`
}

// APIRerunRequest is the body of POST /jira-tools/apirerun
type APIRerunRequest struct {
	CycleID    string `json:"cycleId" validate:"required"`
	ProjectKey string `json:"projectKey,omitempty"`
}

// APIRerunResult is the terminal payload of apirerun
type APIRerunResult struct {
	Output string `json:"output"`
}

// AnalysisRequest is the body of POST /analysis/analyze and /analysis/apianaliz
type AnalysisRequest struct {
	Project     string `json:"project" validate:"required"`
	Version     string `json:"version,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// AnalysisRow is one row of a streamed analysis table. Column sets differ
// between test analysis and API analysis, so rows stay generic.
type AnalysisRow map[string]interface{}
