package realtime

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/models"
	"github.com/Kamalbura/lms-sub001/internal/repository"
	"github.com/Kamalbura/lms-sub001/internal/services"
)

const previewLength = 50

type MessageStore interface {
	Save(ctx context.Context, m *models.Message) error
	MarkRead(ctx context.Context, readerID uuid.UUID, ids []uuid.UUID, at time.Time) ([]*models.Message, error)
	RecordReply(ctx context.Context, parentID, replierID uuid.UUID, at time.Time) error
}

type ThreadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Thread, error)
	RecordActivity(ctx context.Context, id uuid.UUID, at time.Time) error
}

type UserDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// MessageRouter persists chat messages and fans them out to rooms and users.
// Storage calls run outside the presence and room locks.
type MessageRouter struct {
	presence *Presence
	rooms    *RoomTable
	messages MessageStore
	threads  ThreadStore
	users    UserDirectory
	now      func() time.Time
}

func NewMessageRouter(presence *Presence, rooms *RoomTable, messages MessageStore, threads ThreadStore, users UserDirectory) *MessageRouter {
	return &MessageRouter{
		presence: presence,
		rooms:    rooms,
		messages: messages,
		threads:  threads,
		users:    users,
		now:      time.Now,
	}
}

// RouteThreadMessage stores a thread post and delivers it to the thread room,
// then alerts the course room about activity it is not already watching.
func (r *MessageRouter) RouteThreadMessage(ctx context.Context, sender Conn, threadID uuid.UUID, parentID *uuid.UUID, body string, attachments []models.Attachment) (*models.Message, error) {
	thread, err := r.threads.GetByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &services.NotFoundError{Message: "Thread not found"}
		}
		return nil, &services.StorageError{Op: "load thread", Err: err}
	}

	identity := sender.Identity()
	now := r.now().UTC()
	msg := &models.Message{
		ID:          uuid.New(),
		Kind:        models.MessageKindThread,
		SenderID:    identity.UserID,
		ThreadID:    &thread.ID,
		ParentID:    parentID,
		Body:        body,
		Attachments: nonNilAttachments(attachments),
		DeliveredTo: []uuid.UUID{},
		ReadBy:      []models.ReadReceipt{{UserID: identity.UserID, ReadAt: now}},
		CreatedAt:   now,
	}
	if err := r.messages.Save(ctx, msg); err != nil {
		return nil, &services.StorageError{Op: "save thread message", Err: err}
	}

	// The message is committed at this point; counter drift is logged rather
	// than reported back as a failed send.
	if err := r.threads.RecordActivity(ctx, thread.ID, now); err != nil {
		logf("thread %s activity update failed: %v", thread.ID, err)
	}
	if parentID != nil {
		if err := r.messages.RecordReply(ctx, *parentID, identity.UserID, now); err != nil {
			logf("reply meta for %s failed: %v", *parentID, err)
		}
	}

	threadRoom := ThreadRoom(thread.ID)
	r.rooms.Broadcast(threadRoom, newEvent(EventNewThreadMessage, newMessagePayload(msg)))

	exclude := []string{sender.ID()}
	for handle := range r.rooms.ConnectionIDs(threadRoom) {
		exclude = append(exclude, handle)
	}
	r.rooms.Broadcast(CourseRoom(thread.CourseID), newEvent(EventThreadActivity, ThreadActivityPayload{
		ThreadID:    thread.ID,
		CourseID:    thread.CourseID,
		ThreadTitle: thread.Title,
		MessageID:   msg.ID,
		SenderID:    identity.UserID,
		SenderName:  identity.DisplayName,
		Preview:     Preview(body),
		CreatedAt:   now,
	}), exclude...)

	return msg, nil
}

// RouteDirectMessage stores a direct message, echoes it to the sender and
// delivers it live when the recipient is connected.
func (r *MessageRouter) RouteDirectMessage(ctx context.Context, sender Conn, recipientID uuid.UUID, body string, attachments []models.Attachment) (*models.Message, error) {
	identity := sender.Identity()
	if recipientID == identity.UserID {
		return nil, &services.ValidationError{
			Message: "Cannot send a direct message to yourself",
			Fields:  map[string]string{"recipientId": "recipientId must be another user"},
		}
	}

	exists, err := r.users.Exists(ctx, recipientID)
	if err != nil {
		return nil, &services.StorageError{Op: "lookup recipient", Err: err}
	}
	if !exists {
		return nil, &services.NotFoundError{Message: "Recipient not found"}
	}

	now := r.now().UTC()
	msg := &models.Message{
		ID:          uuid.New(),
		Kind:        models.MessageKindDirect,
		SenderID:    identity.UserID,
		RecipientID: &recipientID,
		Body:        body,
		Attachments: nonNilAttachments(attachments),
		DeliveredTo: []uuid.UUID{},
		ReadBy:      []models.ReadReceipt{{UserID: identity.UserID, ReadAt: now}},
		CreatedAt:   now,
	}

	recipient, online := r.presence.Lookup(recipientID)
	if online {
		msg.MarkDelivered(recipientID)
	}
	if err := r.messages.Save(ctx, msg); err != nil {
		return nil, &services.StorageError{Op: "save direct message", Err: err}
	}

	out := newEvent(EventNewDirectMessage, newMessagePayload(msg))
	send(sender, out)
	if online {
		send(recipient, out)
		send(recipient, newEvent(EventNotification, NotificationPayload{
			Kind:       models.MessageKindDirect,
			MessageID:  msg.ID,
			SenderID:   identity.UserID,
			SenderName: identity.DisplayName,
			Preview:    Preview(body),
		}))
	}
	return msg, nil
}

// MarkRead records read receipts and tells each connected sender of a newly
// read direct message, once per sender. It returns the number of messages whose
// receipt set grew.
func (r *MessageRouter) MarkRead(ctx context.Context, reader Conn, messageIDs []uuid.UUID) (int, error) {
	readerID := reader.Identity().UserID
	now := r.now().UTC()

	updated, err := r.messages.MarkRead(ctx, readerID, messageIDs, now)
	if err != nil {
		return 0, &services.StorageError{Op: "mark messages read", Err: err}
	}

	var senders []uuid.UUID
	bySender := make(map[uuid.UUID][]uuid.UUID)
	for _, m := range updated {
		if m.Kind != models.MessageKindDirect || m.SenderID == readerID {
			continue
		}
		if _, seen := bySender[m.SenderID]; !seen {
			senders = append(senders, m.SenderID)
		}
		bySender[m.SenderID] = append(bySender[m.SenderID], m.ID)
	}

	for _, senderID := range senders {
		conn, ok := r.presence.Lookup(senderID)
		if !ok {
			continue
		}
		send(conn, newEvent(EventMessagesRead, MessagesReadPayload{
			ReaderID:   readerID,
			MessageIDs: bySender[senderID],
			ReadAt:     now,
		}))
	}
	return len(updated), nil
}

// RelayTyping forwards a typing indicator. Exactly one of threadID and
// recipientID is set. Nothing is stored.
func (r *MessageRouter) RelayTyping(sender Conn, threadID, recipientID *uuid.UUID, isTyping bool) {
	identity := sender.Identity()
	payload := TypingPayload{
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		ThreadID:    threadID,
		IsTyping:    isTyping,
	}

	switch {
	case threadID != nil:
		r.rooms.Broadcast(ThreadRoom(*threadID), newEvent(EventTyping, payload), sender.ID())
	case recipientID != nil:
		if conn, ok := r.presence.Lookup(*recipientID); ok {
			send(conn, newEvent(EventTyping, payload))
		}
	}
}

// Preview shortens body to at most 50 characters followed by an ellipsis.
func Preview(body string) string {
	if utf8.RuneCountInString(body) <= previewLength {
		return body
	}
	return string([]rune(body)[:previewLength]) + "..."
}

func nonNilAttachments(a []models.Attachment) []models.Attachment {
	if a == nil {
		return []models.Attachment{}
	}
	return a
}
