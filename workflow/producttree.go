package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/sercano/qahub/models"
)

// ProductTreeReducer captures the coverage-tree payload. The terminal
// frame either carries the tree inline or sets cacheReady, in which case
// the runner's Finalize hook fetches the cached payload from the data
// endpoint before the phase advances.
type ProductTreeReducer struct {
	tree       models.ProductTreeData
	needsFetch bool
}

// NewProductTreeReducer creates an empty product-tree accumulator
func NewProductTreeReducer() *ProductTreeReducer {
	return &ProductTreeReducer{}
}

// Apply implements Reducer
func (p *ProductTreeReducer) Apply(_ Phase, frame models.EventFrame) (bool, error) {
	if len(frame.Tree) > 0 {
		var tree models.ProductTreeData
		if err := json.Unmarshal(frame.Tree, &tree); err != nil {
			return false, fmt.Errorf("decoding coverage tree: %w", err)
		}
		p.tree = tree
		return true, nil
	}
	if frame.CacheReady {
		p.needsFetch = true
		return true, nil
	}
	return false, nil
}

// NeedsFetch reports whether the terminal frame deferred to the cached
// payload endpoint
func (p *ProductTreeReducer) NeedsFetch() bool {
	return p.needsFetch
}

// SetTree installs a tree fetched from the data endpoint
func (p *ProductTreeReducer) SetTree(tree models.ProductTreeData) {
	p.tree = tree
	p.needsFetch = false
}

// ExecuteBody implements Reducer. Product-Tree is single phase.
func (p *ProductTreeReducer) ExecuteBody() (interface{}, error) {
	return nil, fmt.Errorf("product tree has no execute phase")
}

// Snapshot implements Reducer
func (p *ProductTreeReducer) Snapshot() interface{} {
	if p.tree == nil {
		return nil
	}
	return p.tree
}

// Reset implements Reducer
func (p *ProductTreeReducer) Reset() {
	p.tree = nil
	p.needsFetch = false
}
