package escalation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-escalation/internal/config"
	"github.com/spec-kit/issue-escalation/internal/domain"
)

func TestFindOwnerPicksEarliestActive(t *testing.T) {
	store := newMemStore()
	store.addEntry(domain.DirectoryEntry{ID: "sub-late", Role: domain.RoleSubAdmin, Active: true, CreatedOn: baseTime})
	store.addEntry(domain.DirectoryEntry{ID: "sub-b", Role: domain.RoleSubAdmin, Active: true, CreatedOn: baseTime.Add(-time.Hour)})
	store.addEntry(domain.DirectoryEntry{ID: "sub-a", Role: domain.RoleSubAdmin, Active: true, CreatedOn: baseTime.Add(-time.Hour)})
	store.addEntry(domain.DirectoryEntry{ID: "sub-old", Role: domain.RoleSubAdmin, Active: false, CreatedOn: baseTime.Add(-72 * time.Hour)})
	resolver := NewResolver(store, ResolverOptions{Scope: config.ScopeGlobal, Policy: config.OwnerPolicyFirst})

	owner, err := resolver.FindOwner(context.Background(), domain.LevelSub, nil)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "sub-a", owner.ID)
}

func TestFindOwnerNone(t *testing.T) {
	resolver := NewResolver(newMemStore(), ResolverOptions{})
	owner, err := resolver.FindOwner(context.Background(), domain.LevelCentral, nil)
	require.NoError(t, err)
	assert.Nil(t, owner)
}

func TestFindOwnerUniquePolicy(t *testing.T) {
	store := newMemStore()
	store.addEntry(domain.DirectoryEntry{ID: "c1", Role: domain.RoleCentralAdmin, Active: true})
	resolver := NewResolver(store, ResolverOptions{Policy: config.OwnerPolicyUnique})

	owner, err := resolver.FindOwner(context.Background(), domain.LevelCentral, nil)
	require.NoError(t, err)
	assert.Equal(t, "c1", owner.ID)

	store.addEntry(domain.DirectoryEntry{ID: "c2", Role: domain.RoleCentralAdmin, Active: true})
	_, err = resolver.FindOwner(context.Background(), domain.LevelCentral, nil)
	assert.ErrorIs(t, err, ErrAmbiguousOwner)
}

func TestFindOwnerOrganisationScope(t *testing.T) {
	store := newMemStore()
	store.addEntry(domain.DirectoryEntry{ID: "other", OrganisationID: "org-2", Role: domain.RoleSubAdmin, Active: true, CreatedOn: baseTime.Add(-time.Hour)})
	store.addEntry(domain.DirectoryEntry{ID: "mine", OrganisationID: "org-1", Role: domain.RoleSubAdmin, Active: true, CreatedOn: baseTime})
	ticket := overdueTicket("a", domain.LevelRoom)

	global := NewResolver(store, ResolverOptions{Scope: config.ScopeGlobal})
	owner, err := global.FindOwner(context.Background(), domain.LevelSub, &ticket)
	require.NoError(t, err)
	assert.Equal(t, "other", owner.ID)

	scoped := NewResolver(store, ResolverOptions{Scope: config.ScopeOrganisation})
	owner, err = scoped.FindOwner(context.Background(), domain.LevelSub, &ticket)
	require.NoError(t, err)
	assert.Equal(t, "mine", owner.ID)
}

func TestFindOwnerRejectsUnknownLevel(t *testing.T) {
	resolver := NewResolver(newMemStore(), ResolverOptions{})
	_, err := resolver.FindOwner(context.Background(), domain.EscalationLevel(3), nil)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}
