package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MessageKindThread       = "thread"
	MessageKindDirect       = "direct"
	MessageKindAnnouncement = "announcement"
)

type Attachment struct {
	URL         string `json:"url" validate:"required,url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type ReadReceipt struct {
	UserID uuid.UUID `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

type ThreadMeta struct {
	ReplyCount   int         `json:"reply_count"`
	Participants []uuid.UUID `json:"participants"`
	LastReplyAt  *time.Time  `json:"last_reply_at,omitempty"`
}

type Message struct {
	ID          uuid.UUID              `json:"id"`
	Kind        string                 `json:"kind"`
	SenderID    uuid.UUID              `json:"sender_id"`
	RecipientID *uuid.UUID             `json:"recipient_id,omitempty"`
	ThreadID    *uuid.UUID             `json:"thread_id,omitempty"`
	ParentID    *uuid.UUID             `json:"parent_id,omitempty"`
	Body        string                 `json:"body"`
	Attachments []Attachment           `json:"attachments"`
	DeliveredTo []uuid.UUID            `json:"delivered_to"`
	ReadBy      []ReadReceipt          `json:"read_by"`
	Reactions   map[string][]uuid.UUID `json:"reactions,omitempty"`
	ThreadMeta  *ThreadMeta            `json:"thread_meta,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// HasReadBy reports whether userID already has a read receipt on the message.
func (m *Message) HasReadBy(userID uuid.UUID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// MarkReadBy appends a receipt unless one exists. Returns true when the set grew.
func (m *Message) MarkReadBy(userID uuid.UUID, at time.Time) bool {
	if m.HasReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: userID, ReadAt: at})
	return true
}

// MarkDelivered adds userID to the delivered-to set unless present.
func (m *Message) MarkDelivered(userID uuid.UUID) bool {
	for _, id := range m.DeliveredTo {
		if id == userID {
			return false
		}
	}
	m.DeliveredTo = append(m.DeliveredTo, userID)
	return true
}

type Thread struct {
	ID             uuid.UUID  `json:"id"`
	CourseID       uuid.UUID  `json:"course_id"`
	Title          string     `json:"title"`
	MessageCount   int        `json:"message_count"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
