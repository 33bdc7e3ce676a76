package contextagent

import (
	"context"
	"sync"
)

// Registry lazily creates and retains one Agent per incident id, so callers
// outside this package (the Incident Actor, the Prompt Workflow) can route
// calls by incident id without managing Agent lifetimes themselves. Mirrors
// the teacher's session registry shape: lazy per-run state guarded by a
// single mutex.
type Registry struct {
	mu       sync.Mutex
	newAgent func(incidentID string) *Agent
	agents   map[string]*Agent
}

// NewRegistry returns a Registry that creates a new Agent via newAgent the
// first time an incident id is seen.
func NewRegistry(newAgent func(incidentID string) *Agent) *Registry {
	return &Registry{newAgent: newAgent, agents: make(map[string]*Agent)}
}

func (r *Registry) agentFor(incidentID string) *Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[incidentID]
	if !ok {
		a = r.newAgent(incidentID)
		r.agents[incidentID] = a
	}
	return a
}

// AddContext routes to the Agent for in.IncidentID, creating it on first
// use. Satisfies the incidentactor.ContextAgent interface.
func (r *Registry) AddContext(ctx context.Context, in AddContextInput) (AddContextResult, error) {
	return r.agentFor(in.IncidentID).AddContext(ctx, in)
}

// AddPrompt routes to the Agent for incidentID, creating it on first use.
func (r *Registry) AddPrompt(ctx context.Context, incidentID string, in AddPromptInput) (*AddPromptResult, error) {
	return r.agentFor(incidentID).AddPrompt(ctx, in)
}
