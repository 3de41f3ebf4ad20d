package escalation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/repository"
)

// memStore is an in-memory ticket and directory store honouring the same
// guarded-update contract as the Postgres repository.
type memStore struct {
	mu        sync.Mutex
	tickets   map[string]*domain.Ticket
	directory []domain.DirectoryEntry
	history   []domain.TicketHistory

	applyErr     error
	applyHook    func(update repository.EscalationUpdate)
	listErr      error
	directoryErr error
	applyCalls   int
	listCalls    int
}

func newMemStore() *memStore {
	return &memStore{tickets: map[string]*domain.Ticket{}}
}

func (s *memStore) addTicket(t domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := t
	s.tickets[t.ID] = &copied
}

func (s *memStore) addEntry(e domain.DirectoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directory = append(s.directory, e)
}

func (s *memStore) ticket(id string) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tickets[id]
}

func (s *memStore) ApplyEscalation(_ context.Context, update repository.EscalationUpdate) error {
	if s.applyHook != nil {
		s.applyHook(update)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCalls++
	if s.applyErr != nil {
		return s.applyErr
	}
	t, ok := s.tickets[update.TicketID]
	if !ok || t.EscalationLevel != update.FromLevel || t.Terminal() {
		return repository.ErrStaleTicket
	}
	assigned := update.AssignedTo
	deadline := update.TATDeadline
	t.EscalationLevel = update.ToLevel
	t.AssignedTo = &assigned
	t.Status = domain.TicketStatusEscalated
	t.TATDeadline = &deadline
	if update.History != nil {
		h := *update.History
		h.TicketID = update.TicketID
		s.history = append(s.history, h)
	}
	return nil
}

func (s *memStore) ListOverdue(_ context.Context, now time.Time, after *repository.OverdueCursor, limit int) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Ticket
	for _, t := range s.tickets {
		if !t.Overdue(now) || t.Terminal() || t.EscalationLevel >= domain.LevelCeiling {
			continue
		}
		if after != nil && !cursorBefore(*after, *t) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := *out[i].TATDeadline, *out[j].TATDeadline
		if di.Equal(dj) {
			return out[i].ID < out[j].ID
		}
		return di.Before(dj)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// cursorBefore reports whether t sorts strictly after c in (deadline, id) order.
func cursorBefore(c repository.OverdueCursor, t domain.Ticket) bool {
	d := *t.TATDeadline
	if d.Equal(c.Deadline) {
		return t.ID > c.ID
	}
	return d.After(c.Deadline)
}

func (s *memStore) List(_ context.Context, filter repository.DirectoryFilter) ([]domain.DirectoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.directoryErr != nil {
		return nil, s.directoryErr
	}
	var out []domain.DirectoryEntry
	for _, e := range s.directory {
		if filter.Role != nil && e.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && e.Active != *filter.Active {
			continue
		}
		if filter.OrganisationID != nil && e.OrganisationID != *filter.OrganisationID {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedOn.Before(out[j].CreatedOn)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	panic bool
}

func (n *recordingNotifier) NotifyEscalation(_ context.Context, ticket domain.Ticket, owner domain.DirectoryEntry) {
	if n.panic {
		panic("smtp exploded")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, ticket.TicketCode+"->"+owner.Email)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	if l.err != nil {
		return func() {}, false, l.err
	}
	if l.held {
		return func() {}, false, nil
	}
	l.held = true
	return func() {
		l.held = false
		l.released++
	}, true, nil
}

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func overdueTicket(id string, level domain.EscalationLevel) domain.Ticket {
	deadline := baseTime.Add(-time.Hour)
	assigned := "incharge-1"
	return domain.Ticket{
		ID:              id,
		TicketCode:      "T1" + id,
		OrganisationID:  "org-1",
		RoomID:          "room-1",
		Subject:         "Projector broken",
		Status:          domain.TicketStatusOpen,
		EscalationLevel: level,
		AssignedTo:      &assigned,
		TATDeadline:     &deadline,
	}
}

func seedHierarchy(s *memStore) {
	s.addEntry(domain.DirectoryEntry{ID: "sub-1", OrganisationID: "org-1", Email: "sub@example.com", Role: domain.RoleSubAdmin, Active: true, CreatedOn: baseTime.Add(-48 * time.Hour)})
	s.addEntry(domain.DirectoryEntry{ID: "central-1", OrganisationID: "org-1", Email: "central@example.com", Role: domain.RoleCentralAdmin, Active: true, CreatedOn: baseTime.Add(-48 * time.Hour)})
}
