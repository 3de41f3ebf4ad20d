package service

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/events"
	apperrors "github.com/spec-kit/issue-escalation/pkg/util/errorutil"
)

var now = time.Date(2025, 3, 1, 9, 30, 15, 0, time.UTC)

type fixture struct {
	repos     *memRepos
	svc       *TicketService
	mailer    *captureMailer
	escalator *stubEscalator
	incharge  *domain.DirectoryEntry
	sub       *domain.DirectoryEntry
	central   *domain.DirectoryEntry
	room      *domain.Room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := newMemRepos()
	ctx := context.Background()
	dir := directoryRepo{repos}
	f := &fixture{repos: repos, mailer: &captureMailer{}, escalator: &stubEscalator{}}

	f.incharge = &domain.DirectoryEntry{OrganisationID: "7", Name: "Ina", Email: "ina@example.com", Role: domain.RoleIncharge, Active: true}
	f.sub = &domain.DirectoryEntry{OrganisationID: "7", Name: "Sam", Email: "sam@example.com", Role: domain.RoleSubAdmin, Active: true}
	f.central = &domain.DirectoryEntry{OrganisationID: "7", Name: "Cat", Email: "cat@example.com", Role: domain.RoleCentralAdmin, Active: true}
	for _, e := range []*domain.DirectoryEntry{f.incharge, f.sub, f.central} {
		require.NoError(t, dir.Create(ctx, e))
	}
	f.room = &domain.Room{OrganisationID: "7", Name: "Lab 1", InchargeID: &f.incharge.ID}
	require.NoError(t, roomRepo{repos}.Create(ctx, f.room))

	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, f.mailer, zaptest.NewLogger(t)).RegisterHandlers()

	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:    ticketRepo{repos},
		RoomRepo:      roomRepo{repos},
		DirectoryRepo: dir,
		HistoryRepo:   historyRepo{repos},
		ExtensionRepo: extensionRepo{repos},
		Escalator:     f.escalator,
		Dispatcher:    dispatcher,
		TAT:           48 * time.Hour,
		Now:           func() time.Time { return now },
		Logger:        zaptest.NewLogger(t),
	})
	return f
}

func (f *fixture) create(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), f.sub, TicketCreateInput{
		RoomID:        f.room.ID,
		Subject:       " Projector broken ",
		Description:   "No signal",
		ReporterEmail: "student@example.com",
	})
	require.NoError(t, err)
	return ticket
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	return de.HTTPStatus
}

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)

	assert.Regexp(t, regexp.MustCompile(`^T7250301093015[A-Z0-9]{4}$`), ticket.TicketCode)
	assert.Equal(t, "Projector broken", ticket.Subject)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.LevelRoom, ticket.EscalationLevel)
	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, f.incharge.ID, *ticket.AssignedTo)
	assert.True(t, ticket.TATDeadline.Equal(now.Add(48*time.Hour)))
	assert.Equal(t, "7", ticket.OrganisationID)

	assert.ElementsMatch(t, []string{
		"ina@example.com|[Issue Desk] New Ticket " + ticket.TicketCode + ": Projector broken",
		"student@example.com|[Issue Desk] Ticket Received: " + ticket.TicketCode,
	}, f.mailer.msgs)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateTicket(context.Background(), f.sub, TicketCreateInput{RoomID: f.room.ID})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = f.svc.CreateTicket(context.Background(), f.sub, TicketCreateInput{RoomID: "missing", Subject: "a", Description: "b"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestTicketCodeDefaultsOrganisation(t *testing.T) {
	code := generateTicketCode("", now)
	assert.Regexp(t, `^T0250301093015[A-Z0-9]{4}$`, code)
}

func TestOwnerActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)

	progressed, err := f.svc.MarkInProgress(ctx, f.incharge, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, progressed.Status)

	resolved, err := f.svc.Resolve(ctx, f.incharge, ticket.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, domain.TicketStatusClosed, resolved.Status)

	_, err = f.svc.MarkInProgress(ctx, f.incharge, ticket.ID)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	reopened, err := f.svc.Unresolve(ctx, f.central, ticket.ID)
	require.NoError(t, err)
	assert.False(t, reopened.Resolved)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)

	_, err = f.svc.Unresolve(ctx, f.central, ticket.ID)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	history, err := f.svc.ListHistory(ctx, f.central, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestOwnerActionsRequireAccess(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)
	stranger := &domain.DirectoryEntry{ID: "other", Role: domain.RoleIncharge, Active: true}

	_, err := f.svc.Resolve(context.Background(), stranger, ticket.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestListTicketsScopesIncharge(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	mine, err := f.svc.ListTickets(context.Background(), f.incharge, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	other := &domain.DirectoryEntry{ID: "other", Role: domain.RoleIncharge}
	theirs, err := f.svc.ListTickets(context.Background(), other, TicketListFilter{})
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestDeescalate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)

	_, err := f.svc.Deescalate(ctx, f.central, ticket.ID)
	assert.Equal(t, http.StatusConflict, statusOf(t, err), "level 0 cannot be de-escalated")

	stored := f.repos.tickets[ticket.ID]
	stored.EscalationLevel = domain.LevelCentral
	stored.Status = domain.TicketStatusEscalated
	stored.AssignedTo = &f.central.ID
	deadline := *stored.TATDeadline

	_, err = f.svc.Deescalate(ctx, f.incharge, ticket.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	out, err := f.svc.Deescalate(ctx, f.central, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LevelRoom, out.EscalationLevel)
	assert.Equal(t, domain.TicketStatusOpen, out.Status)
	assert.False(t, out.Resolved)
	assert.Equal(t, f.incharge.ID, *out.AssignedTo)
	assert.True(t, out.TATDeadline.Equal(deadline))
	assert.Contains(t, f.mailer.msgs, "ina@example.com|Issue Returned: "+ticket.TicketCode)
}

func TestStatusChangeLosesToConcurrentEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)

	// A sweep escalates the ticket between the service's read and its write.
	f.repos.beforeUpdate = func(id string) {
		f.repos.mu.Lock()
		defer f.repos.mu.Unlock()
		stored := f.repos.tickets[id]
		stored.EscalationLevel = domain.LevelSub
		stored.Status = domain.TicketStatusEscalated
		stored.AssignedTo = &f.sub.ID
		stored.UpdatedOn = stored.UpdatedOn.Add(time.Second)
	}

	_, err := f.svc.MarkInProgress(ctx, f.incharge, ticket.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	stored := f.repos.tickets[ticket.ID]
	assert.Equal(t, domain.LevelSub, stored.EscalationLevel)
	assert.Equal(t, f.sub.ID, *stored.AssignedTo)
	assert.Equal(t, domain.TicketStatusEscalated, stored.Status)
}

func TestDeescalateLosesToConcurrentEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)
	stored := f.repos.tickets[ticket.ID]
	stored.EscalationLevel = domain.LevelSub
	stored.Status = domain.TicketStatusEscalated
	stored.AssignedTo = &f.sub.ID

	f.repos.beforeUpdate = func(id string) {
		f.repos.mu.Lock()
		defer f.repos.mu.Unlock()
		f.repos.tickets[id].EscalationLevel = domain.LevelCentral
		f.repos.tickets[id].AssignedTo = &f.central.ID
	}

	_, err := f.svc.Deescalate(ctx, f.central, ticket.ID)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
	assert.Equal(t, domain.LevelCentral, f.repos.tickets[ticket.ID].EscalationLevel)
	assert.Equal(t, f.central.ID, *f.repos.tickets[ticket.ID].AssignedTo)
}

func TestManualEscalate(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)
	f.escalator.result = domain.EscalationResult{Escalated: true, From: domain.LevelRoom, To: domain.LevelSub}

	result, err := f.svc.Escalate(context.Background(), f.sub, ticket.ID)
	require.NoError(t, err)
	assert.True(t, result.Escalated)
	assert.Equal(t, ticket.ID, result.TicketID)
	assert.Equal(t, f.sub.ID, f.escalator.actor)

	_, err = f.svc.Escalate(context.Background(), f.incharge, ticket.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestExtensionApprovalMovesDeadlineForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)

	req, err := f.svc.RequestExtension(ctx, f.incharge, ticket.ID, 12, "waiting for parts")
	require.NoError(t, err)
	assert.Equal(t, domain.ExtensionPending, req.Status)
	assert.Equal(t, 48, req.CurrentTATHours)

	approved, err := f.svc.ApproveExtension(ctx, f.sub, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExtensionApproved, approved.Status)
	assert.True(t, f.repos.tickets[ticket.ID].TATDeadline.Equal(now.Add(60*time.Hour)))
	assert.Contains(t, f.mailer.msgs, "ina@example.com|TAT Extension approved: "+ticket.TicketCode)

	_, err = f.svc.RejectExtension(ctx, f.sub, req.ID)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestExtensionOnOverdueTicketStartsFromNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t)
	past := now.Add(-5 * time.Hour)
	f.repos.tickets[ticket.ID].TATDeadline = &past

	req, err := f.svc.RequestExtension(ctx, f.incharge, ticket.ID, 6, "late")
	require.NoError(t, err)
	assert.Zero(t, req.CurrentTATHours)

	_, err = f.svc.ApproveExtension(ctx, f.central, req.ID)
	require.NoError(t, err)
	assert.True(t, f.repos.tickets[ticket.ID].TATDeadline.Equal(now.Add(6*time.Hour)))
}

func TestExtensionValidation(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)

	_, err := f.svc.RequestExtension(context.Background(), f.incharge, ticket.ID, 0, "")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	req, err := f.svc.RequestExtension(context.Background(), f.incharge, ticket.ID, 2, "x")
	require.NoError(t, err)
	_, err = f.svc.ApproveExtension(context.Background(), f.incharge, req.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}
