// Package directory provides read access to the agent directory and
// resolves hierarchical visibility scopes from it. The directory records
// themselves are owned by an external system.
package directory

import (
	"context"
	"strings"

	"github.com/soyeahso/switchboard/internal/domain"
)

// Directory is the read-only view of agent records this core consumes.
type Directory interface {
	// GetAgent returns the agent record, or *domain.UnknownAgentError if
	// the ID is absent from the directory.
	GetAgent(ctx context.Context, agentID string) (domain.Agent, error)

	// AgentsBySupervisor returns all agents whose supervisor reference
	// matches the given ID, compared case-insensitively.
	AgentsBySupervisor(ctx context.Context, supervisorID string) ([]domain.Agent, error)

	// All returns every agent in the directory.
	All(ctx context.Context) ([]domain.Agent, error)
}

// Static is a Directory over a fixed agent list, typically loaded from the
// directory section of the config file. Lookups tolerate inconsistent
// casing in the source data.
type Static struct {
	agents []domain.Agent
	byID   map[string]domain.Agent // keyed by lower-cased ID
}

// NewStatic builds a Static directory from the given records.
func NewStatic(agents []domain.Agent) *Static {
	d := &Static{
		agents: agents,
		byID:   make(map[string]domain.Agent, len(agents)),
	}
	for _, a := range agents {
		d.byID[strings.ToLower(a.ID)] = a
	}
	return d
}

func (d *Static) GetAgent(_ context.Context, agentID string) (domain.Agent, error) {
	a, ok := d.byID[strings.ToLower(agentID)]
	if !ok {
		return domain.Agent{}, &domain.UnknownAgentError{AgentID: agentID}
	}
	return a, nil
}

func (d *Static) AgentsBySupervisor(_ context.Context, supervisorID string) ([]domain.Agent, error) {
	var out []domain.Agent
	for _, a := range d.agents {
		if a.SupervisorID != "" && strings.EqualFold(a.SupervisorID, supervisorID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (d *Static) All(_ context.Context) ([]domain.Agent, error) {
	out := make([]domain.Agent, len(d.agents))
	copy(out, d.agents)
	return out, nil
}
