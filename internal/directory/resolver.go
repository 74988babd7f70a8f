package directory

import (
	"context"

	"github.com/soyeahso/switchboard/internal/domain"
)

// Resolver computes the set of agents a viewer may see. Scopes are derived
// per request from directory data and are never cached: directory
// membership can change between requests.
type Resolver struct {
	dir Directory
}

// NewResolver creates a scope resolver over the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// ResolveScope returns the viewer's visibility scope:
//   - a supervisor sees themselves plus their direct reports;
//   - an agent sees themselves, their peers under the same supervisor, and
//     the supervisor;
//   - an agent with no supervisor sees only themselves.
//
// Returns *domain.UnknownAgentError when the viewer is not in the directory.
func (r *Resolver) ResolveScope(ctx context.Context, viewerID string) (domain.ScopeSet, error) {
	viewer, err := r.dir.GetAgent(ctx, viewerID)
	if err != nil {
		return domain.ScopeSet{}, err
	}

	scope := domain.NewScopeSet(viewer.ID)

	if viewer.IsSupervisor() {
		reports, err := r.dir.AgentsBySupervisor(ctx, viewer.ID)
		if err != nil {
			return domain.ScopeSet{}, err
		}
		for _, a := range reports {
			scope.Add(a.ID)
		}
		return scope, nil
	}

	if viewer.SupervisorID == "" {
		return scope, nil
	}

	peers, err := r.dir.AgentsBySupervisor(ctx, viewer.SupervisorID)
	if err != nil {
		return domain.ScopeSet{}, err
	}
	for _, a := range peers {
		scope.Add(a.ID)
	}

	// The supervisor themselves is in scope. Resolve through the directory
	// so the scope carries the canonical ID, whatever the casing of the
	// stored reference; a dangling reference keeps its literal form.
	if sup, err := r.dir.GetAgent(ctx, viewer.SupervisorID); err == nil {
		scope.Add(sup.ID)
	} else {
		scope.Add(viewer.SupervisorID)
	}

	return scope, nil
}
