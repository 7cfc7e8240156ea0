package operations

import (
	"fmt"
	"sync"

	"backfill/pkg/contracts/domain"
)

// Registry holds the registered stages in registration order
type Registry struct {
	mu     sync.RWMutex
	stages map[domain.StageID]Stage
	order  []domain.StageID
}

// NewRegistry creates an empty stage registry
func NewRegistry() *Registry {
	return &Registry{
		stages: make(map[domain.StageID]Stage),
	}
}

// NewDefaultRegistry registers the ZQM, PMR and SOH stages
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, st := range []Stage{NewZQMStage(), NewPMRStage(), NewSOHStage()} {
		if err := r.Register(st); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a stage. Its requirements must already be registered.
func (r *Registry) Register(stage Stage) error {
	if stage == nil {
		return fmt.Errorf("cannot register nil stage")
	}

	id := stage.ID()
	if id == "" {
		return fmt.Errorf("stage ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stages[id]; exists {
		return fmt.Errorf("stage with ID %s already registered", id)
	}
	for _, dep := range stage.Requires() {
		if _, exists := r.stages[dep]; !exists {
			return fmt.Errorf("stage %s requires unregistered stage %s", id, dep)
		}
	}

	r.stages[id] = stage
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a stage by ID
func (r *Registry) Get(id domain.StageID) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stage, ok := r.stages[id]
	return stage, ok
}

// IDs returns the stage IDs in registration order
func (r *Registry) IDs() []domain.StageID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.StageID(nil), r.order...)
}

// Count returns the number of registered stages
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stages)
}
