package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/notification"
	"github.com/spec-kit/issue-escalation/internal/repository"
)

type memRepos struct {
	mu         sync.Mutex
	seq        int
	tickets    map[string]*domain.Ticket
	rooms      map[string]*domain.Room
	entries    map[string]*domain.DirectoryEntry
	history    []domain.TicketHistory
	extensions map[string]*domain.TimeExtensionRequest

	beforeUpdate func(id string)
}

func newMemRepos() *memRepos {
	return &memRepos{
		tickets:    map[string]*domain.Ticket{},
		rooms:      map[string]*domain.Room{},
		entries:    map[string]*domain.DirectoryEntry{},
		extensions: map[string]*domain.TimeExtensionRequest{},
	}
}

func (m *memRepos) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

type ticketRepo struct{ *memRepos }

func (r ticketRepo) Create(_ context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.nextID("ticket")
	copied := *t
	r.tickets[t.ID] = &copied
	return nil
}

func (r ticketRepo) Update(_ context.Context, t *domain.Ticket, expected repository.TicketVersion, h *domain.TicketHistory) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(t.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.EscalationLevel != expected.EscalationLevel || !stored.UpdatedOn.Equal(expected.UpdatedOn) {
		return repository.ErrStaleTicket
	}
	t.UpdatedOn = stored.UpdatedOn.Add(time.Millisecond)
	copied := *t
	r.tickets[t.ID] = &copied
	if h != nil {
		h.TicketID = t.ID
		r.history = append(r.history, *h)
	}
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *t
	return &copied, nil
}

func (r ticketRepo) GetByCode(_ context.Context, code string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.TicketCode == code {
			copied := *t
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r ticketRepo) List(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if f.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *f.AssignedTo) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r ticketRepo) ListOverdue(context.Context, time.Time, *repository.OverdueCursor, int) ([]domain.Ticket, error) {
	return nil, nil
}

func (r ticketRepo) ApplyEscalation(context.Context, repository.EscalationUpdate) error {
	return nil
}

type roomRepo struct{ *memRepos }

func (r roomRepo) Create(_ context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room.ID = r.nextID("room")
	copied := *room
	r.rooms[room.ID] = &copied
	return nil
}

func (r roomRepo) GetByID(_ context.Context, id string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *room
	return &copied, nil
}

type directoryRepo struct{ *memRepos }

func (r directoryRepo) Create(_ context.Context, e *domain.DirectoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.nextID("entry")
	copied := *e
	r.entries[e.ID] = &copied
	return nil
}

func (r directoryRepo) GetByID(_ context.Context, id string) (*domain.DirectoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *e
	return &copied, nil
}

func (r directoryRepo) List(_ context.Context, f repository.DirectoryFilter) ([]domain.DirectoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DirectoryEntry
	for _, e := range r.entries {
		if f.Role != nil && e.Role != *f.Role {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

type historyRepo struct{ *memRepos }

func (r historyRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, *h)
	return nil
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range r.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

type extensionRepo struct{ *memRepos }

func (r extensionRepo) Create(_ context.Context, req *domain.TimeExtensionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req.ID = r.nextID("ext")
	copied := *req
	r.extensions[req.ID] = &copied
	return nil
}

func (r extensionRepo) GetByID(_ context.Context, id string) (*domain.TimeExtensionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.extensions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (r extensionRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TimeExtensionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TimeExtensionRequest
	for _, req := range r.extensions {
		if req.TicketID == ticketID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r extensionRepo) Decide(_ context.Context, d repository.ExtensionDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.extensions[d.RequestID]
	if !ok || req.Status != domain.ExtensionPending {
		return repository.ErrExtensionDecided
	}
	req.Status = d.Status
	reviewer := d.ReviewedBy
	req.ReviewedBy = &reviewer
	decided := d.DecidedOn
	req.DecidedOn = &decided
	if d.NewDeadline != nil {
		t := r.tickets[req.TicketID]
		if t.TATDeadline == nil || !t.TATDeadline.After(*d.NewDeadline) {
			deadline := *d.NewDeadline
			t.TATDeadline = &deadline
		}
		if d.History != nil {
			h := *d.History
			h.TicketID = req.TicketID
			r.history = append(r.history, h)
		}
	}
	return nil
}

type stubEscalator struct {
	result domain.EscalationResult
	err    error
	actor  string
}

func (s *stubEscalator) EscalateBy(_ context.Context, ticket *domain.Ticket, actorID string) (domain.EscalationResult, error) {
	s.actor = actorID
	res := s.result
	res.TicketID = ticket.ID
	return res, s.err
}

type captureMailer struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureMailer) Enqueue(msg notification.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg.Receivers[0]+"|"+msg.Subject)
	return nil
}
