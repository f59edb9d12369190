package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

type ReminderStore interface {
	ListDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]*models.OfficeHourSession, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ReminderScheduler queues a reminder for both participants of every scheduled
// session that starts within the lead time.
type ReminderScheduler struct {
	sessions     ReminderStore
	notifier     Notifier
	pollInterval time.Duration
	lead         time.Duration
	stopChan     chan struct{}
}

func NewReminderScheduler(sessions ReminderStore, notifier Notifier, pollInterval, lead time.Duration) *ReminderScheduler {
	return &ReminderScheduler{
		sessions:     sessions,
		notifier:     notifier,
		pollInterval: pollInterval,
		lead:         lead,
		stopChan:     make(chan struct{}),
	}
}

func (s *ReminderScheduler) Start() {
	if s.sessions == nil || s.notifier == nil {
		return
	}
	go s.loop()
	log.Printf("Reminder scheduler started (every %s, lead %s)", s.pollInterval, s.lead)
}

func (s *ReminderScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *ReminderScheduler) loop() {
	// Run on startup as well as by interval.
	s.SendDue(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.SendDue(context.Background(), time.Now().UTC())
		}
	}
}

// SendDue queues reminders for sessions due at now and returns how many were sent.
func (s *ReminderScheduler) SendDue(ctx context.Context, now time.Time) int {
	due, err := s.sessions.ListDueReminders(ctx, now, s.lead)
	if err != nil {
		log.Printf("office hour reminders: failed to list due sessions: %v", err)
		return 0
	}

	sent := 0
	for _, session := range due {
		job := models.NotificationJob{
			ID:           uuid.New(),
			Kind:         models.NotifySessionReminder,
			SessionID:    session.ID,
			RecipientIDs: []uuid.UUID{session.InstructorID, session.StudentID},
			CreatedAt:    now,
		}
		if err := s.notifier.Notify(ctx, job); err != nil {
			log.Printf("office hour reminders: failed to queue reminder for session %s: %v", session.ID, err)
			continue
		}

		if err := s.sessions.MarkReminderSent(ctx, session.ID, now); err != nil {
			log.Printf("office hour reminders: failed to persist reminder_sent_at for session %s: %v", session.ID, err)
		}
		sent++
	}
	return sent
}
