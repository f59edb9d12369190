package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/models"
	"github.com/Kamalbura/lms-sub001/internal/repository"
)

type fakeOfficeHourStore struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*models.OfficeHourSession
	saves     int
	failSave  error
	conflicts int
	reminders map[uuid.UUID]time.Time
	// afterLoad runs outside the lock once GetByID has copied the row.
	afterLoad func()
}

func newFakeOfficeHourStore() *fakeOfficeHourStore {
	return &fakeOfficeHourStore{
		sessions:  make(map[uuid.UUID]*models.OfficeHourSession),
		reminders: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeOfficeHourStore) Create(_ context.Context, s *models.OfficeHourSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	s.Version = 1
	f.sessions[s.ID] = s.Clone()
	return nil
}

func (f *fakeOfficeHourStore) GetByID(_ context.Context, id uuid.UUID) (*models.OfficeHourSession, error) {
	f.mu.Lock()
	s, ok := f.sessions[id]
	if !ok {
		f.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	out := s.Clone()
	hook := f.afterLoad
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeOfficeHourStore) Save(_ context.Context, s *models.OfficeHourSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return f.failSave
	}
	cur, ok := f.sessions[s.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != s.Version {
		f.conflicts++
		return repository.ErrConflict
	}
	f.saves++
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	f.sessions[s.ID] = s.Clone()
	return nil
}

func (f *fakeOfficeHourStore) ListForUser(_ context.Context, userID uuid.UUID, status string, limit, offset int) ([]*models.OfficeHourSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.OfficeHourSession
	for _, s := range f.sessions {
		if !s.IsParticipant(userID) {
			continue
		}
		if status != "" && string(s.Status) != status {
			continue
		}
		out = append(out, s.Clone())
	}
	return out, nil
}

func (f *fakeOfficeHourStore) ListDueReminders(_ context.Context, now time.Time, lead time.Duration) ([]*models.OfficeHourSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.OfficeHourSession
	for _, s := range f.sessions {
		if s.Status != models.OfficeHourScheduled || s.ReminderSentAt != nil {
			continue
		}
		if s.ScheduledStart.After(now) && !s.ScheduledStart.After(now.Add(lead)) {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (f *fakeOfficeHourStore) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.ReminderSentAt = &at
	s.Version++
	f.reminders[id] = at
	return nil
}

func (f *fakeOfficeHourStore) stored(id uuid.UUID) *models.OfficeHourSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id].Clone()
}

// loadBarrier holds the first n loads until all n have happened, so their
// callers start from the same version.
type loadBarrier struct {
	mu        sync.Mutex
	remaining int
	release   chan struct{}
}

func newLoadBarrier(n int) *loadBarrier {
	return &loadBarrier{remaining: n, release: make(chan struct{})}
}

func (b *loadBarrier) wait() {
	b.mu.Lock()
	if b.remaining == 0 {
		b.mu.Unlock()
		return
	}
	b.remaining--
	if b.remaining == 0 {
		close(b.release)
	}
	b.mu.Unlock()
	<-b.release
}

type fakeUserLookup map[uuid.UUID]*models.User

func (f fakeUserLookup) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []models.NotificationJob
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, job models.NotificationJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.jobs = append(n.jobs, job)
	return nil
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.jobs))
	for i, j := range n.jobs {
		out[i] = j.Kind
	}
	return out
}

type published struct {
	userID uuid.UUID
	msg    models.WSMessage
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *recordingPublisher) PublishToUser(_ context.Context, userID uuid.UUID, msg models.WSMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{userID: userID, msg: msg})
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

var errDBDown = errors.New("connection refused")
