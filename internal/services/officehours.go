package services

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/models"
	"github.com/Kamalbura/lms-sub001/internal/repository"
)

// EventOfficeHourUpdated is pushed to both participants' sockets after any
// committed change to a session.
const EventOfficeHourUpdated = "office-hour-updated"

// SessionUpdatePayload is the socket summary of a changed session. Socket
// payloads use camelCase keys; clients fetch the full record over REST.
type SessionUpdatePayload struct {
	SessionID      uuid.UUID               `json:"sessionId"`
	Status         models.OfficeHourStatus `json:"status"`
	Topic          string                  `json:"topic"`
	ScheduledStart time.Time               `json:"scheduledStart"`
	ScheduledEnd   time.Time               `json:"scheduledEnd"`
	MeetingRoomID  string                  `json:"meetingRoomId"`
	Version        int                     `json:"version"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

func newSessionUpdatePayload(s *models.OfficeHourSession) SessionUpdatePayload {
	return SessionUpdatePayload{
		SessionID:      s.ID,
		Status:         s.Status,
		Topic:          s.Topic,
		ScheduledStart: s.ScheduledStart,
		ScheduledEnd:   s.ScheduledEnd,
		MeetingRoomID:  s.MeetingRoomID,
		Version:        s.Version,
		UpdatedAt:      s.UpdatedAt,
	}
}

type EffectKind string

const (
	// EffectNotify queues an email notification job.
	EffectNotify EffectKind = "notify"
	// EffectPublish pushes the updated session to the recipients' live connections.
	EffectPublish EffectKind = "publish"
)

// Effect is a side effect owed by a successful transition. Transitions only
// describe effects; OfficeHourService runs them after the session is saved.
type Effect struct {
	Kind       EffectKind
	Event      string
	Recipients []uuid.UUID
}

func notify(kind string, recipients ...uuid.UUID) Effect {
	return Effect{Kind: EffectNotify, Event: kind, Recipients: recipients}
}

func publishUpdate(s *models.OfficeHourSession) Effect {
	return Effect{Kind: EffectPublish, Event: EventOfficeHourUpdated, Recipients: []uuid.UUID{s.InstructorID, s.StudentID}}
}

type DetailsUpdate struct {
	Topic          *string
	Description    *string
	ScheduledStart *time.Time
	ScheduledEnd   *time.Time
}

// ---- transitions ----
//
// Each transition mutates s in place and returns the effects to run. s must be a
// copy the caller can throw away on error.

func requireInstructor(s *models.OfficeHourSession, actor uuid.UUID, action string) error {
	if actor != s.InstructorID {
		return &ForbiddenError{Message: "Only the instructor can " + action + " this session"}
	}
	return nil
}

func requireParticipant(s *models.OfficeHourSession, actor uuid.UUID) error {
	if !s.IsParticipant(actor) {
		return &ForbiddenError{Message: "You are not a participant of this session"}
	}
	return nil
}

func requireStatus(s *models.OfficeHourSession, action string, allowed ...models.OfficeHourStatus) error {
	for _, st := range allowed {
		if s.Status == st {
			return nil
		}
	}
	return &InvalidStateError{Message: "Cannot " + action + " a session that is " + string(s.Status)}
}

func StartSession(s *models.OfficeHourSession, actor uuid.UUID, now time.Time) ([]Effect, error) {
	if err := requireInstructor(s, actor, "start"); err != nil {
		return nil, err
	}
	if err := requireStatus(s, "start", models.OfficeHourScheduled); err != nil {
		return nil, err
	}

	s.Status = models.OfficeHourInProgress
	s.Analytics.JoinedAt = &now
	s.Analytics.ParticipantEvents = append(s.Analytics.ParticipantEvents, models.ParticipantEvent{UserID: actor, Type: "started", At: now})

	return []Effect{notify(models.NotifySessionStarted, s.StudentID), publishUpdate(s)}, nil
}

func CompleteSession(s *models.OfficeHourSession, actor uuid.UUID, now time.Time) ([]Effect, error) {
	if err := requireInstructor(s, actor, "complete"); err != nil {
		return nil, err
	}
	if err := requireStatus(s, "complete", models.OfficeHourInProgress); err != nil {
		return nil, err
	}

	s.Status = models.OfficeHourCompleted
	s.Analytics.LeftAt = &now
	if s.Analytics.JoinedAt != nil {
		minutes := int(math.Round(now.Sub(*s.Analytics.JoinedAt).Minutes()))
		s.Analytics.ActualDurationMinutes = &minutes
	}
	s.Analytics.ParticipantEvents = append(s.Analytics.ParticipantEvents, models.ParticipantEvent{UserID: actor, Type: "completed", At: now})
	applyQualityFinalize(s)

	return []Effect{notify(models.NotifySessionCompleted, s.InstructorID, s.StudentID), publishUpdate(s)}, nil
}

func CancelSession(s *models.OfficeHourSession, actor uuid.UUID, reason string, now time.Time) ([]Effect, error) {
	if err := requireParticipant(s, actor); err != nil {
		return nil, err
	}
	if err := requireStatus(s, "cancel", models.OfficeHourScheduled); err != nil {
		return nil, err
	}

	s.Status = models.OfficeHourCancelled
	s.CancelledBy = &actor
	s.CancellationReason = strings.TrimSpace(reason)

	other := s.StudentID
	if actor == s.StudentID {
		other = s.InstructorID
	}
	return []Effect{notify(models.NotifySessionCancelled, other), publishUpdate(s)}, nil
}

func UpdateSessionDetails(s *models.OfficeHourSession, actor uuid.UUID, u DetailsUpdate, now time.Time) ([]Effect, error) {
	if err := requireInstructor(s, actor, "update"); err != nil {
		return nil, err
	}
	if err := requireStatus(s, "update", models.OfficeHourScheduled); err != nil {
		return nil, err
	}

	start, end := s.ScheduledStart, s.ScheduledEnd
	if u.ScheduledStart != nil {
		start = *u.ScheduledStart
	}
	if u.ScheduledEnd != nil {
		end = *u.ScheduledEnd
	}
	if !end.After(start) {
		return nil, &ValidationError{
			Message: "Session must end after it starts",
			Fields:  map[string]string{"scheduled_end": "scheduled_end must be after scheduled_start"},
		}
	}

	rescheduled := !start.Equal(s.ScheduledStart)
	s.ScheduledStart, s.ScheduledEnd = start, end
	if u.Topic != nil {
		s.Topic = strings.TrimSpace(*u.Topic)
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if rescheduled {
		// A new start time deserves a fresh reminder.
		s.ReminderSentAt = nil
	}

	return []Effect{notify(models.NotifySessionUpdated, s.StudentID), publishUpdate(s)}, nil
}

func SubmitSessionFeedback(s *models.OfficeHourSession, actor uuid.UUID, rating int, comment string, now time.Time) ([]Effect, error) {
	if actor != s.StudentID {
		return nil, &ForbiddenError{Message: "Only the student can leave feedback"}
	}
	if err := requireStatus(s, "review", models.OfficeHourCompleted); err != nil {
		return nil, err
	}
	if s.Feedback != nil {
		return nil, &InvalidStateError{Message: "Feedback has already been submitted"}
	}
	if rating < 1 || rating > 5 {
		return nil, &ValidationError{
			Message: "Rating must be between 1 and 5",
			Fields:  map[string]string{"rating": "rating must be between 1 and 5"},
		}
	}

	s.Feedback = &models.OfficeHourFeedback{Rating: rating, Comment: strings.TrimSpace(comment), SubmittedAt: now}
	return []Effect{notify(models.NotifyFeedbackReceived, s.InstructorID), publishUpdate(s)}, nil
}

func AddSessionNote(s *models.OfficeHourSession, actor uuid.UUID, body string, now time.Time) ([]Effect, error) {
	if err := requireParticipant(s, actor); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, &ValidationError{Message: "Note body is required", Fields: map[string]string{"body": "body is required"}}
	}

	s.Notes = append(s.Notes, models.OfficeHourNote{AuthorID: actor, Body: body, CreatedAt: now})
	return []Effect{publishUpdate(s)}, nil
}

// RecordParticipantEvent appends a join/leave style marker to the analytics
// timeline. It does not change status.
func RecordParticipantEvent(s *models.OfficeHourSession, actor uuid.UUID, eventType string, now time.Time) ([]Effect, error) {
	if err := requireParticipant(s, actor); err != nil {
		return nil, err
	}
	s.Analytics.ParticipantEvents = append(s.Analytics.ParticipantEvents, models.ParticipantEvent{UserID: actor, Type: eventType, At: now})
	return nil, nil
}

// ---- service ----

type OfficeHourStore interface {
	Create(ctx context.Context, s *models.OfficeHourSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.OfficeHourSession, error)
	// Save persists s if the stored row still has s.Version, bumping the version.
	// It returns repository.ErrConflict when the row moved on.
	Save(ctx context.Context, s *models.OfficeHourSession) error
	ListForUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]*models.OfficeHourSession, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Notifier hands a notification job to the delivery pipeline.
type Notifier interface {
	Notify(ctx context.Context, job models.NotificationJob) error
}

// UpdatePublisher delivers an event to every live connection of a user,
// whichever process holds it.
type UpdatePublisher interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

type ScheduleInput struct {
	StudentID      uuid.UUID
	CourseID       uuid.UUID
	Topic          string
	Description    string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
}

type OfficeHourService struct {
	store     OfficeHourStore
	users     UserLookup
	notifier  Notifier
	publisher UpdatePublisher
	now       func() time.Time
}

func NewOfficeHourService(store OfficeHourStore, users UserLookup, notifier Notifier, publisher UpdatePublisher) *OfficeHourService {
	return &OfficeHourService{
		store:     store,
		users:     users,
		notifier:  notifier,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *OfficeHourService) Schedule(ctx context.Context, actor models.Identity, in ScheduleInput) (*models.OfficeHourSession, error) {
	if actor.Role != models.RoleInstructor {
		return nil, &ForbiddenError{Message: "Only instructors can schedule office hours"}
	}
	if !in.ScheduledEnd.After(in.ScheduledStart) {
		return nil, &ValidationError{
			Message: "Session must end after it starts",
			Fields:  map[string]string{"scheduled_end": "scheduled_end must be after scheduled_start"},
		}
	}
	if in.StudentID == actor.UserID {
		return nil, &ValidationError{
			Message: "Cannot schedule a session with yourself",
			Fields:  map[string]string{"student_id": "student_id must be another user"},
		}
	}

	student, err := s.users.GetByID(ctx, in.StudentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Student not found"}
		}
		return nil, &StorageError{Op: "load student", Err: err}
	}
	if student.Role != models.RoleStudent {
		return nil, &ValidationError{
			Message: "Office hours can only be booked for a student",
			Fields:  map[string]string{"student_id": "student_id must reference a student"},
		}
	}

	id := uuid.New()
	session := &models.OfficeHourSession{
		ID:             id,
		InstructorID:   actor.UserID,
		StudentID:      in.StudentID,
		CourseID:       in.CourseID,
		Topic:          strings.TrimSpace(in.Topic),
		Description:    in.Description,
		ScheduledStart: in.ScheduledStart.UTC(),
		ScheduledEnd:   in.ScheduledEnd.UTC(),
		Status:         models.OfficeHourScheduled,
		MeetingRoomID:  id.String(),
		Analytics: models.OfficeHourAnalytics{
			ParticipantEvents: []models.ParticipantEvent{},
			QualitySamples:    []models.QualitySample{},
		},
		Notes: []models.OfficeHourNote{},
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, &StorageError{Op: "create office hour", Err: err}
	}

	s.execute(ctx, session, []Effect{
		notify(models.NotifySessionScheduled, session.InstructorID, session.StudentID),
		publishUpdate(session),
	})
	log.Printf("[officehours] session %s scheduled by %s for %s", session.ID, actor.UserID, session.StudentID)
	return session, nil
}

// Get returns a session visible to actor: a participant, or an admin.
func (s *OfficeHourService) Get(ctx context.Context, actor models.Identity, id uuid.UUID) (*models.OfficeHourSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(actor.UserID) && actor.Role != models.RoleAdmin {
		return nil, &ForbiddenError{Message: "You are not a participant of this session"}
	}
	return session, nil
}

func (s *OfficeHourService) ListForUser(ctx context.Context, actor models.Identity, status string, limit, offset int) ([]*models.OfficeHourSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	sessions, err := s.store.ListForUser(ctx, actor.UserID, status, limit, offset)
	if err != nil {
		return nil, &StorageError{Op: "list office hours", Err: err}
	}
	if sessions == nil {
		sessions = []*models.OfficeHourSession{}
	}
	return sessions, nil
}

func (s *OfficeHourService) Start(ctx context.Context, actor models.Identity, id uuid.UUID) (*models.OfficeHourSession, error) {
	return s.apply(ctx, id, "start", func(sess *models.OfficeHourSession, now time.Time) ([]Effect, error) {
		return StartSession(sess, actor.UserID, now)
	})
}

func (s *OfficeHourService) Complete(ctx context.Context, actor models.Identity, id uuid.UUID) (*models.OfficeHourSession, error) {
	return s.apply(ctx, id, "complete", func(sess *models.OfficeHourSession, now time.Time) ([]Effect, error) {
		return CompleteSession(sess, actor.UserID, now)
	})
}

func (s *OfficeHourService) Cancel(ctx context.Context, actor models.Identity, id uuid.UUID, reason string) (*models.OfficeHourSession, error) {
	return s.apply(ctx, id, "cancel", func(sess *models.OfficeHourSession, now time.Time) ([]Effect, error) {
		return CancelSession(sess, actor.UserID, reason, now)
	})
}

func (s *OfficeHourService) UpdateDetails(ctx context.Context, actor models.Identity, id uuid.UUID, u DetailsUpdate) (*models.OfficeHourSession, error) {
	return s.apply(ctx, id, "update", func(sess *models.OfficeHourSession, now time.Time) ([]Effect, error) {
		return UpdateSessionDetails(sess, actor.UserID, u, now)
	})
}

func (s *OfficeHourService) SubmitFeedback(ctx context.Context, actor models.Identity, id uuid.UUID, rating int, comment string) (*models.OfficeHourSession, error) {
	return s.apply(ctx, id, "feedback", func(sess *models.OfficeHourSession, now time.Time) ([]Effect, error) {
		return SubmitSessionFeedback(sess, actor.UserID, rating, comment, now)
	})
}

func (s *OfficeHourService) AddNote(ctx context.Context, actor models.Identity, id uuid.UUID, body string) (*models.OfficeHourSession, error) {
	return s.apply(ctx, id, "note", func(sess *models.OfficeHourSession, now time.Time) ([]Effect, error) {
		return AddSessionNote(sess, actor.UserID, body, now)
	})
}

func (s *OfficeHourService) RecordEvent(ctx context.Context, actor models.Identity, id uuid.UUID, eventType string) (*models.OfficeHourSession, error) {
	return s.apply(ctx, id, "event", func(sess *models.OfficeHourSession, now time.Time) ([]Effect, error) {
		return RecordParticipantEvent(sess, actor.UserID, eventType, now)
	})
}

// CanJoinConference admits only the two participants of a live or upcoming session.
func (s *OfficeHourService) CanJoinConference(ctx context.Context, userID, sessionID uuid.UUID) error {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := requireParticipant(session, userID); err != nil {
		return err
	}
	return requireStatus(session, "join", models.OfficeHourScheduled, models.OfficeHourInProgress)
}

// saveAttempts bounds how often apply re-reads a session that another request
// wrote between our load and save.
const saveAttempts = 3

// apply runs one transition on a copy of the stored session. Effects run only
// after the copy is saved; on any failure the stored session is left untouched.
// A version conflict reloads the session and re-runs the transition, so a
// transition that is no longer legal fails with its own guard error.
func (s *OfficeHourService) apply(ctx context.Context, id uuid.UUID, op string, transition func(*models.OfficeHourSession, time.Time) ([]Effect, error)) (*models.OfficeHourSession, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		effects, err := transition(next, s.now())
		if err != nil {
			return nil, err
		}

		err = s.store.Save(ctx, next)
		switch {
		case err == nil:
			s.execute(ctx, next, effects)
			return next, nil
		case errors.Is(err, repository.ErrConflict):
			if attempt >= saveAttempts {
				return nil, &ConflictError{Message: "Office hour session is being modified, please retry"}
			}
			log.Printf("[officehours] %s on session %s lost a write race, retrying", op, id)
		case errors.Is(err, repository.ErrNotFound):
			return nil, &NotFoundError{Message: "Office hour session not found"}
		default:
			return nil, &StorageError{Op: "save office hour " + op, Err: err}
		}
	}
}

func (s *OfficeHourService) load(ctx context.Context, id uuid.UUID) (*models.OfficeHourSession, error) {
	session, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Office hour session not found"}
		}
		return nil, &StorageError{Op: "load office hour", Err: err}
	}
	return session, nil
}

// execute runs effects once. Failures are logged; the transition is already committed.
func (s *OfficeHourService) execute(ctx context.Context, session *models.OfficeHourSession, effects []Effect) {
	for _, eff := range effects {
		switch eff.Kind {
		case EffectNotify:
			if s.notifier == nil {
				continue
			}
			job := models.NotificationJob{
				ID:           uuid.New(),
				Kind:         eff.Event,
				SessionID:    session.ID,
				RecipientIDs: eff.Recipients,
				CreatedAt:    s.now(),
			}
			if err := s.notifier.Notify(ctx, job); err != nil {
				log.Printf("[officehours] notify %s for session %s failed: %v", eff.Event, session.ID, err)
			}
		case EffectPublish:
			if s.publisher == nil {
				continue
			}
			msg := models.WSMessage{Type: eff.Event, Payload: newSessionUpdatePayload(session)}
			for _, userID := range eff.Recipients {
				if err := s.publisher.PublishToUser(ctx, userID, msg); err != nil {
					log.Printf("[officehours] publish %s to %s failed: %v", eff.Event, userID, err)
				}
			}
		}
	}
}
