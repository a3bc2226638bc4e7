package models

// Test statuses reported by the backend for coverage analysis.
const (
	TestStatusPassed = "PASSED"
	TestStatusFailed = "FAILED"
)

// EndpointTest is one execution record attached to an endpoint
type EndpointTest struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	TestType string `json:"testType"`
}

// Endpoint is one REST endpoint of a controller, with its tests and the
// backend's precomputed per-category flags.
type Endpoint struct {
	Method   string         `json:"method"`
	FullPath string         `json:"fullPath"`
	Tests    []EndpointTest `json:"tests"`

	Happy      bool `json:"happy,omitempty"`
	Alternatif bool `json:"alternatif,omitempty"`
	Negatif    bool `json:"negatif,omitempty"`
}

// ControllerData groups the endpoints of one controller
type ControllerData struct {
	EndPoints []Endpoint `json:"endPoints"`
}

// AppData groups the controllers of one application. The tested/total
// counters are backend-supplied and reused as-is at this level.
type AppData struct {
	Controllers     map[string]ControllerData `json:"controllers"`
	TotalEndpoints  int                       `json:"totalEndpoints,omitempty"`
	TestedEndpoints int                       `json:"testedEndpoints,omitempty"`
}

// ProjectData groups the apps of one project
type ProjectData struct {
	Apps            map[string]AppData `json:"apps"`
	TotalEndpoints  int                `json:"totalEndpoints,omitempty"`
	TestedEndpoints int                `json:"testedEndpoints,omitempty"`
}

// ProductTreeData is the coverage input: project name to project payload
type ProductTreeData map[string]ProjectData

// ProductTreeRequest is the body of POST /product-tree/run
type ProductTreeRequest struct {
	Project     string `json:"project" validate:"required"`
	Version     string `json:"version,omitempty"`
	Environment string `json:"environment,omitempty"`
	UseCache    bool   `json:"useCache,omitempty"`
}

// RefreshControllerRequest is the body of POST /product-tree/refresh-controller
type RefreshControllerRequest struct {
	Project    string `json:"project" validate:"required"`
	App        string `json:"app" validate:"required"`
	Controller string `json:"controller" validate:"required"`
}

// RefreshControllerResponse carries the re-analyzed controller subtree
type RefreshControllerResponse struct {
	Controller ControllerData `json:"controller"`
}
