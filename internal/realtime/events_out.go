package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

// Outbound event names.
const (
	EventOnlineUsers = "online-users"
	EventError       = "error"

	EventMemberJoined = "member-joined"
	EventMemberLeft   = "member-left"
	EventRoomMembers  = "room-members"

	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventRoomUsers  = "room-users"

	EventNewThreadMessage = "new-thread-message"
	EventThreadActivity   = "thread-activity"
	EventNewDirectMessage = "new-direct-message"
	EventNotification     = "notification"
	EventMessagesRead     = "messages-read"
	EventTyping           = "typing"
)

type OnlineUsersPayload struct {
	UserIDs []uuid.UUID `json:"userIds"`
}

type MemberJoinedPayload struct {
	Room        string `json:"room"`
	Member      Member `json:"member"`
	Rejoin      bool   `json:"rejoin"`
	Reconnected bool   `json:"reconnected"`
}

type MemberLeftPayload struct {
	Room         string    `json:"room"`
	UserID       uuid.UUID `json:"userId"`
	ConnectionID string    `json:"connectionId"`
	// Disconnected marks a departure caused by a dropped socket; the user may
	// still come back within the grace window.
	Disconnected bool `json:"disconnected"`
}

type RoomMembersPayload struct {
	Room    string   `json:"room"`
	Members []Member `json:"members"`
}

type ThreadActivityPayload struct {
	ThreadID    uuid.UUID `json:"threadId"`
	CourseID    uuid.UUID `json:"courseId"`
	ThreadTitle string    `json:"threadTitle"`
	MessageID   uuid.UUID `json:"messageId"`
	SenderID    uuid.UUID `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Preview     string    `json:"preview"`
	CreatedAt   time.Time `json:"createdAt"`
}

type NotificationPayload struct {
	Kind       string    `json:"kind"`
	MessageID  uuid.UUID `json:"messageId"`
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName"`
	Preview    string    `json:"preview"`
}

type MessagesReadPayload struct {
	ReaderID   uuid.UUID   `json:"readerId"`
	MessageIDs []uuid.UUID `json:"messageIds"`
	ReadAt     time.Time   `json:"readAt"`
}

type TypingPayload struct {
	UserID      uuid.UUID  `json:"userId"`
	DisplayName string     `json:"displayName"`
	ThreadID    *uuid.UUID `json:"threadId,omitempty"`
	IsTyping    bool       `json:"isTyping"`
}

type SignalPayload struct {
	From       string          `json:"from"`
	FromUserID uuid.UUID       `json:"fromUserId"`
	Data       json.RawMessage `json:"data"`
}

type ErrorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Event   string            `json:"event,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func newEvent(eventType string, payload interface{}) models.WSMessage {
	return models.WSMessage{Type: eventType, Payload: payload}
}

// Socket payloads are camelCase like the inbound events. MessagePayload is the
// socket view of a stored message, whose REST form is snake_case.
type MessagePayload struct {
	ID          uuid.UUID            `json:"id"`
	Kind        string               `json:"kind"`
	SenderID    uuid.UUID            `json:"senderId"`
	RecipientID *uuid.UUID           `json:"recipientId,omitempty"`
	ThreadID    *uuid.UUID           `json:"threadId,omitempty"`
	ParentID    *uuid.UUID           `json:"parentId,omitempty"`
	Body        string               `json:"body"`
	Attachments []AttachmentPayload  `json:"attachments"`
	DeliveredTo []uuid.UUID          `json:"deliveredTo"`
	ReadBy      []ReadReceiptPayload `json:"readBy"`
	CreatedAt   time.Time            `json:"createdAt"`
}

type AttachmentPayload struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type ReadReceiptPayload struct {
	UserID uuid.UUID `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

func newMessagePayload(m *models.Message) MessagePayload {
	p := MessagePayload{
		ID:          m.ID,
		Kind:        m.Kind,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		ThreadID:    m.ThreadID,
		ParentID:    m.ParentID,
		Body:        m.Body,
		Attachments: make([]AttachmentPayload, len(m.Attachments)),
		DeliveredTo: append([]uuid.UUID{}, m.DeliveredTo...),
		ReadBy:      make([]ReadReceiptPayload, len(m.ReadBy)),
		CreatedAt:   m.CreatedAt,
	}
	for i, a := range m.Attachments {
		p.Attachments[i] = AttachmentPayload{URL: a.URL, Name: a.Name, ContentType: a.ContentType, Size: a.Size}
	}
	for i, r := range m.ReadBy {
		p.ReadBy[i] = ReadReceiptPayload{UserID: r.UserID, ReadAt: r.ReadAt}
	}
	return p
}
