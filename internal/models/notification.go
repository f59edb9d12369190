package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification job kinds produced by office-hour transitions.
const (
	NotifySessionScheduled = "office-hour-scheduled"
	NotifySessionUpdated   = "office-hour-updated"
	NotifySessionStarted   = "office-hour-started"
	NotifySessionCompleted = "office-hour-completed"
	NotifySessionCancelled = "office-hour-cancelled"
	NotifySessionReminder  = "office-hour-reminder"
	NotifyFeedbackReceived = "office-hour-feedback"
)

type NotificationJob struct {
	ID           uuid.UUID   `json:"id"`
	Kind         string      `json:"kind"`
	SessionID    uuid.UUID   `json:"session_id"`
	RecipientIDs []uuid.UUID `json:"recipient_ids"`
	Attempts     int         `json:"attempts"`
	CreatedAt    time.Time   `json:"created_at"`
}
