package escalation

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/issue-escalation/internal/config"
	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/repository"
)

// ErrAmbiguousOwner is returned under the unique policy when more than one
// directory entry could own a ticket at the target level.
var ErrAmbiguousOwner = errors.New("more than one eligible owner")

// ErrInvalidLevel is returned for levels outside the hierarchy.
var ErrInvalidLevel = errors.New("invalid escalation level")

// DirectoryLister is the slice of the directory store the resolver needs.
type DirectoryLister interface {
	List(ctx context.Context, filter repository.DirectoryFilter) ([]domain.DirectoryEntry, error)
}

// ResolverOptions selects scoping and tie-break behaviour.
type ResolverOptions struct {
	// Scope is config.ScopeGlobal (any organisation) or config.ScopeOrganisation.
	Scope string
	// Policy is config.OwnerPolicyFirst or config.OwnerPolicyUnique.
	Policy string
}

// Resolver maps a target level to the directory entry that should own it.
type Resolver struct {
	directory      DirectoryLister
	byOrganisation bool
	requireUnique  bool
}

// NewResolver builds a resolver. Unknown option values fall back to the
// global scope and first-match policy.
func NewResolver(directory DirectoryLister, opts ResolverOptions) *Resolver {
	return &Resolver{
		directory:      directory,
		byOrganisation: opts.Scope == config.ScopeOrganisation,
		requireUnique:  opts.Policy == config.OwnerPolicyUnique,
	}
}

// FindOwner returns the active entry holding the role for level, or nil when
// none exists. Candidates are ordered by (created_on, id); under the first
// policy the earliest wins.
func (r *Resolver) FindOwner(ctx context.Context, level domain.EscalationLevel, ticket *domain.Ticket) (*domain.DirectoryEntry, error) {
	role, ok := domain.RoleForLevel(level)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}

	active := true
	filter := repository.DirectoryFilter{Role: &role, Active: &active, Limit: 1}
	if r.requireUnique {
		filter.Limit = 2
	}
	if r.byOrganisation && ticket != nil {
		org := ticket.OrganisationID
		filter.OrganisationID = &org
	}

	candidates, err := r.directory.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s candidates: %w", role, err)
	}
	switch {
	case len(candidates) == 0:
		return nil, nil
	case len(candidates) > 1 && r.requireUnique:
		return nil, fmt.Errorf("%w: role %s has %s and %s", ErrAmbiguousOwner, role, candidates[0].ID, candidates[1].ID)
	}
	owner := candidates[0]
	return &owner, nil
}
