package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/issue-escalation/internal/config"
	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/repository"
)

const testTAT = 48 * time.Hour

func newTestEngine(t *testing.T, store *memStore, notifier Notifier, now time.Time) *Engine {
	t.Helper()
	return NewEngine(EngineDependencies{
		Tickets:  store,
		Owners:   NewResolver(store, ResolverOptions{Scope: config.ScopeGlobal, Policy: config.OwnerPolicyFirst}),
		Notifier: notifier,
		TAT:      testTAT,
		Now:      fixedClock(now),
		Logger:   zaptest.NewLogger(t),
	})
}

func TestEscalateLevelZeroToSubAdmin(t *testing.T) {
	store := newMemStore()
	seedHierarchy(store)
	ticket := overdueTicket("a", domain.LevelRoom)
	store.addTicket(ticket)
	notifier := &recordingNotifier{}
	engine := newTestEngine(t, store, notifier, baseTime)

	result, err := engine.Escalate(context.Background(), &ticket)
	require.NoError(t, err)

	assert.True(t, result.Escalated)
	assert.Equal(t, domain.LevelRoom, result.From)
	assert.Equal(t, domain.LevelSub, result.To)
	require.NotNil(t, result.AssignedTo)
	assert.Equal(t, "sub-1", *result.AssignedTo)

	stored := store.ticket("a")
	assert.Equal(t, domain.LevelSub, stored.EscalationLevel)
	assert.Equal(t, domain.TicketStatusEscalated, stored.Status)
	require.NotNil(t, stored.TATDeadline)
	assert.True(t, stored.TATDeadline.Equal(baseTime.Add(testTAT)))
	assert.Equal(t, "sub-1", *stored.AssignedTo)

	assert.Equal(t, domain.LevelSub, ticket.EscalationLevel, "snapshot reflects the committed state")
	assert.Equal(t, []string{"T1a->sub@example.com"}, notifier.calls)

	require.Len(t, store.history, 1)
	assert.Equal(t, domain.ChangeTypeEscalation, store.history[0].ChangeType)
	assert.Equal(t, domain.ActorSystem, store.history[0].ChangedByType)
}

func TestEscalateWalksToCeiling(t *testing.T) {
	store := newMemStore()
	seedHierarchy(store)
	ticket := overdueTicket("a", domain.LevelRoom)
	store.addTicket(ticket)
	engine := newTestEngine(t, store, nil, baseTime)
	ctx := context.Background()

	first, err := engine.Escalate(ctx, &ticket)
	require.NoError(t, err)
	assert.True(t, first.Escalated)

	second, err := engine.Escalate(ctx, &ticket)
	require.NoError(t, err)
	assert.True(t, second.Escalated)
	assert.Equal(t, domain.LevelCentral, second.To)
	assert.Equal(t, "central-1", *store.ticket("a").AssignedTo)

	third, err := engine.Escalate(ctx, &ticket)
	require.NoError(t, err)
	assert.False(t, third.Escalated)
	assert.Equal(t, domain.ReasonAtCeiling, third.Reason)
	assert.Equal(t, domain.LevelCentral, third.From)
	assert.Equal(t, domain.LevelCentral, third.To)
}

func TestEscalateResolvedTicketIsNoop(t *testing.T) {
	cases := map[string]func(*domain.Ticket){
		"resolved": func(tk *domain.Ticket) { tk.Resolved = true },
		"closed":   func(tk *domain.Ticket) { tk.Status = domain.TicketStatusClosed },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			seedHierarchy(store)
			ticket := overdueTicket("a", domain.LevelRoom)
			mutate(&ticket)
			store.addTicket(ticket)
			notifier := &recordingNotifier{}
			engine := newTestEngine(t, store, notifier, baseTime)

			result, err := engine.Escalate(context.Background(), &ticket)
			require.NoError(t, err)
			assert.False(t, result.Escalated)
			assert.Equal(t, domain.ReasonResolvedOrClosed, result.Reason)
			assert.Equal(t, 0, store.applyCalls)
			assert.Zero(t, notifier.count())
		})
	}
}

func TestEscalateNoOwnerLeavesTicketUntouched(t *testing.T) {
	store := newMemStore()
	store.addEntry(domain.DirectoryEntry{ID: "central-1", Role: domain.RoleCentralAdmin, Active: true})
	store.addEntry(domain.DirectoryEntry{ID: "sub-off", Role: domain.RoleSubAdmin, Active: false})
	ticket := overdueTicket("a", domain.LevelRoom)
	store.addTicket(ticket)
	before := store.ticket("a")
	engine := newTestEngine(t, store, nil, baseTime)

	result, err := engine.Escalate(context.Background(), &ticket)
	require.NoError(t, err)
	assert.False(t, result.Escalated)
	assert.Equal(t, domain.ReasonNoOwner, result.Reason)
	assert.Equal(t, before, store.ticket("a"))
	assert.Empty(t, store.history)
}

func TestEscalateConcurrentUpdateIsNoop(t *testing.T) {
	store := newMemStore()
	seedHierarchy(store)
	ticket := overdueTicket("a", domain.LevelRoom)
	store.addTicket(ticket)
	store.applyHook = func(repository.EscalationUpdate) {
		store.mu.Lock()
		store.tickets["a"].Resolved = true
		store.mu.Unlock()
	}
	notifier := &recordingNotifier{}
	engine := newTestEngine(t, store, notifier, baseTime)

	result, err := engine.Escalate(context.Background(), &ticket)
	require.NoError(t, err)
	assert.False(t, result.Escalated)
	assert.Equal(t, domain.ReasonConcurrentUpdate, result.Reason)
	assert.Equal(t, domain.LevelRoom, ticket.EscalationLevel)
	assert.Equal(t, domain.LevelRoom, store.ticket("a").EscalationLevel)
	assert.Zero(t, notifier.count())
}

func TestEscalatePropagatesStoreFailure(t *testing.T) {
	store := newMemStore()
	seedHierarchy(store)
	store.applyErr = errors.New("connection reset")
	ticket := overdueTicket("a", domain.LevelRoom)
	store.addTicket(ticket)
	engine := newTestEngine(t, store, &recordingNotifier{}, baseTime)

	_, err := engine.Escalate(context.Background(), &ticket)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, domain.LevelRoom, ticket.EscalationLevel)
}

func TestEscalatePropagatesResolverFailure(t *testing.T) {
	store := newMemStore()
	store.directoryErr = errors.New("directory offline")
	ticket := overdueTicket("a", domain.LevelRoom)
	store.addTicket(ticket)
	engine := newTestEngine(t, store, nil, baseTime)

	_, err := engine.Escalate(context.Background(), &ticket)
	require.Error(t, err)
	assert.Equal(t, 0, store.applyCalls)
}

func TestEscalateSurvivesNotifierPanic(t *testing.T) {
	store := newMemStore()
	seedHierarchy(store)
	ticket := overdueTicket("a", domain.LevelRoom)
	store.addTicket(ticket)
	engine := newTestEngine(t, store, &recordingNotifier{panic: true}, baseTime)

	result, err := engine.Escalate(context.Background(), &ticket)
	require.NoError(t, err)
	assert.True(t, result.Escalated)
	assert.Equal(t, domain.LevelSub, store.ticket("a").EscalationLevel)
}

func TestEscalateByRecordsActor(t *testing.T) {
	store := newMemStore()
	seedHierarchy(store)
	ticket := overdueTicket("a", domain.LevelRoom)
	store.addTicket(ticket)
	engine := newTestEngine(t, store, nil, baseTime)

	_, err := engine.EscalateBy(context.Background(), &ticket, "admin-7")
	require.NoError(t, err)
	require.Len(t, store.history, 1)
	assert.Equal(t, domain.ActorDirectory, store.history[0].ChangedByType)
	require.NotNil(t, store.history[0].ChangedByID)
	assert.Equal(t, "admin-7", *store.history[0].ChangedByID)
}

func TestEscalateDeadlineIgnoresPreviousDeadline(t *testing.T) {
	store := newMemStore()
	seedHierarchy(store)
	ticket := overdueTicket("a", domain.LevelRoom)
	far := baseTime.Add(-30 * 24 * time.Hour)
	ticket.TATDeadline = &far
	store.addTicket(ticket)
	now := baseTime.Add(17 * time.Minute)
	engine := newTestEngine(t, store, nil, now)

	_, err := engine.Escalate(context.Background(), &ticket)
	require.NoError(t, err)
	assert.True(t, store.ticket("a").TATDeadline.Equal(now.Add(testTAT)))
}
