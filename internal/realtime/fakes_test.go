package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/models"
	"github.com/Kamalbura/lms-sub001/internal/repository"
)

type fakeConn struct {
	id       string
	identity models.Identity

	mu     sync.Mutex
	sent   []models.WSMessage
	closed bool
}

func newFakeConn(userID uuid.UUID, name string) *fakeConn {
	return &fakeConn{
		id:       uuid.NewString(),
		identity: models.Identity{UserID: userID, Role: models.RoleStudent, DisplayName: name},
	}
}

func (c *fakeConn) ID() string                { return c.id }
func (c *fakeConn) Identity() models.Identity { return c.identity }

func (c *fakeConn) Send(msg models.WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// events returns every message of the given type received so far.
func (c *fakeConn) events(eventType string) []models.WSMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.WSMessage
	for _, m := range c.sent {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.Type
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.sent = nil
	c.mu.Unlock()
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*models.Message
	order    []uuid.UUID
	replies  map[uuid.UUID]int
	failSave bool
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{
		messages: make(map[uuid.UUID]*models.Message),
		replies:  make(map[uuid.UUID]int),
	}
}

func (s *fakeMessageStore) Save(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("connection refused")
	}
	cp := *m
	cp.ReadBy = append([]models.ReadReceipt(nil), m.ReadBy...)
	cp.DeliveredTo = append([]uuid.UUID(nil), m.DeliveredTo...)
	s.messages[m.ID] = &cp
	s.order = append(s.order, m.ID)
	return nil
}

func (s *fakeMessageStore) MarkRead(_ context.Context, readerID uuid.UUID, ids []uuid.UUID, at time.Time) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated []*models.Message
	for _, id := range ids {
		m, ok := s.messages[id]
		if !ok {
			continue
		}
		if m.MarkReadBy(readerID, at) {
			cp := *m
			updated = append(updated, &cp)
		}
	}
	return updated, nil
}

func (s *fakeMessageStore) RecordReply(_ context.Context, parentID, _ uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[parentID]; !ok {
		return repository.ErrNotFound
	}
	s.replies[parentID]++
	return nil
}

func (s *fakeMessageStore) get(id uuid.UUID) *models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id]
}

func (s *fakeMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type fakeThreadStore struct {
	mu       sync.Mutex
	threads  map[uuid.UUID]*models.Thread
	activity map[uuid.UUID]int
}

func newFakeThreadStore(threads ...*models.Thread) *fakeThreadStore {
	s := &fakeThreadStore{threads: make(map[uuid.UUID]*models.Thread), activity: make(map[uuid.UUID]int)}
	for _, t := range threads {
		s.threads[t.ID] = t
	}
	return s
}

func (s *fakeThreadStore) GetByID(_ context.Context, id uuid.UUID) (*models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

func (s *fakeThreadStore) RecordActivity(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[id]++
	return nil
}

type fakeUsers map[uuid.UUID]bool

func (u fakeUsers) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return u[id], nil
}
