package agent

import (
	"fmt"
	"sort"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/ports/adapter"
)

var _ adapter.AgentRegistry = (*Registry)(nil)

// Registry maps agent ids to implementations. It is filled once at startup
// and read-only afterwards.
type Registry struct {
	byID map[string]adapter.Agent
}

func NewRegistry(agents ...adapter.Agent) *Registry {
	r := &Registry{byID: make(map[string]adapter.Agent, len(agents))}
	for _, a := range agents {
		r.byID[a.Info().ID] = a
	}
	return r
}

func (r *Registry) Get(id string) (adapter.Agent, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAgent, id)
	}
	return a, nil
}

func (r *Registry) List() []adapter.AgentInfo {
	out := make([]adapter.AgentInfo, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
