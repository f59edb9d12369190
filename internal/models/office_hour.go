package models

import (
	"time"

	"github.com/google/uuid"
)

type OfficeHourStatus string

const (
	OfficeHourScheduled  OfficeHourStatus = "scheduled"
	OfficeHourInProgress OfficeHourStatus = "in-progress"
	OfficeHourCompleted  OfficeHourStatus = "completed"
	OfficeHourCancelled  OfficeHourStatus = "cancelled"
)

type ParticipantEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Type   string    `json:"type"`
	At     time.Time `json:"at"`
}

type OfficeHourAnalytics struct {
	JoinedAt                *time.Time         `json:"joined_at,omitempty"`
	LeftAt                  *time.Time         `json:"left_at,omitempty"`
	ActualDurationMinutes   *int               `json:"actual_duration_minutes,omitempty"`
	ParticipantEvents       []ParticipantEvent `json:"participant_events"`
	QualitySamples          []QualitySample    `json:"quality_samples"`
	AverageStats            QualityStats       `json:"average_stats"`
	StableQualityPercentage *float64           `json:"stable_quality_percentage,omitempty"`
	QualityScore            *int               `json:"quality_score,omitempty"`
}

type OfficeHourNote struct {
	AuthorID  uuid.UUID `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type OfficeHourFeedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type RecordingMeta struct {
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds"`
	SizeBytes       int64  `json:"size_bytes"`
}

type OfficeHourSession struct {
	ID                 uuid.UUID           `json:"id"`
	InstructorID       uuid.UUID           `json:"instructor_id"`
	StudentID          uuid.UUID           `json:"student_id"`
	CourseID           uuid.UUID           `json:"course_id"`
	Topic              string              `json:"topic"`
	Description        string              `json:"description"`
	ScheduledStart     time.Time           `json:"scheduled_start"`
	ScheduledEnd       time.Time           `json:"scheduled_end"`
	Status             OfficeHourStatus    `json:"status"`
	MeetingRoomID      string              `json:"meeting_room_id"`
	Analytics          OfficeHourAnalytics `json:"analytics"`
	Notes              []OfficeHourNote    `json:"notes"`
	Feedback           *OfficeHourFeedback `json:"feedback,omitempty"`
	Recording          *RecordingMeta      `json:"recording,omitempty"`
	CancelledBy        *uuid.UUID          `json:"cancelled_by,omitempty"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
	ReminderSentAt     *time.Time          `json:"reminder_sent_at,omitempty"`
	Version            int                 `json:"version"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// IsParticipant reports whether userID is the instructor or the student.
func (s *OfficeHourSession) IsParticipant(userID uuid.UUID) bool {
	return userID == s.InstructorID || userID == s.StudentID
}

// Clone returns a deep copy so a transition can be discarded if persistence fails.
func (s *OfficeHourSession) Clone() *OfficeHourSession {
	c := *s
	c.Analytics.ParticipantEvents = append([]ParticipantEvent(nil), s.Analytics.ParticipantEvents...)
	c.Analytics.QualitySamples = append([]QualitySample(nil), s.Analytics.QualitySamples...)
	c.Analytics.JoinedAt = copyTime(s.Analytics.JoinedAt)
	c.Analytics.LeftAt = copyTime(s.Analytics.LeftAt)
	if s.Analytics.ActualDurationMinutes != nil {
		v := *s.Analytics.ActualDurationMinutes
		c.Analytics.ActualDurationMinutes = &v
	}
	if s.Analytics.StableQualityPercentage != nil {
		v := *s.Analytics.StableQualityPercentage
		c.Analytics.StableQualityPercentage = &v
	}
	if s.Analytics.QualityScore != nil {
		v := *s.Analytics.QualityScore
		c.Analytics.QualityScore = &v
	}
	c.Notes = append([]OfficeHourNote(nil), s.Notes...)
	if s.Feedback != nil {
		f := *s.Feedback
		c.Feedback = &f
	}
	if s.Recording != nil {
		r := *s.Recording
		c.Recording = &r
	}
	if s.CancelledBy != nil {
		id := *s.CancelledBy
		c.CancelledBy = &id
	}
	c.ReminderSentAt = copyTime(s.ReminderSentAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Request bodies for the office-hour REST surface.

type ScheduleOfficeHourRequest struct {
	StudentID      uuid.UUID `json:"student_id" validate:"required"`
	CourseID       uuid.UUID `json:"course_id" validate:"required"`
	Topic          string    `json:"topic" validate:"required,max=200"`
	Description    string    `json:"description" validate:"max=5000"`
	ScheduledStart time.Time `json:"scheduled_start" validate:"required"`
	ScheduledEnd   time.Time `json:"scheduled_end" validate:"required"`
}

type UpdateOfficeHourRequest struct {
	Topic          *string    `json:"topic" validate:"omitempty,min=1,max=200"`
	Description    *string    `json:"description" validate:"omitempty,max=5000"`
	ScheduledStart *time.Time `json:"scheduled_start"`
	ScheduledEnd   *time.Time `json:"scheduled_end"`
}

type CancelOfficeHourRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type OfficeHourFeedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type OfficeHourNoteRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

type ParticipantEventRequest struct {
	Type string `json:"type" validate:"required,oneof=joined left reconnected screen-share-started screen-share-stopped"`
}
