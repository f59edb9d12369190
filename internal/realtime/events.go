package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/Kamalbura/lms-sub001/internal/models"
	"github.com/Kamalbura/lms-sub001/internal/services"
	"github.com/Kamalbura/lms-sub001/internal/validation"
)

// Inbound event names.
const (
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventJoinConference  = "join-conference"
	EventLeaveConference = "leave-conference"
	EventThreadMessage   = "thread-message"
	EventDirectMessage   = "direct-message"
	EventMarkRead        = "mark-read"
	EventOffer           = "offer"
	EventAnswer          = "answer"
	EventICECandidate    = "ice-candidate"
)

// Event is a decoded inbound client event. The set of implementations is closed
// to this package.
type Event interface {
	Name() string
	inbound()
}

type JoinRoomEvent struct {
	RoomType string `json:"roomType" validate:"required,oneof=course thread"`
	RoomID   string `json:"roomId" validate:"required,uuid"`
}

type LeaveRoomEvent struct {
	RoomType string `json:"roomType" validate:"required,oneof=course thread"`
	RoomID   string `json:"roomId" validate:"required,uuid"`
}

type JoinConferenceEvent struct {
	SessionID string `json:"sessionId" validate:"required,uuid"`
}

type LeaveConferenceEvent struct {
	SessionID string `json:"sessionId" validate:"required,uuid"`
}

type ThreadMessageEvent struct {
	ThreadID    string              `json:"threadId" validate:"required,uuid"`
	ParentID    string              `json:"parentId" validate:"omitempty,uuid"`
	Body        string              `json:"body" validate:"required,max=10000"`
	Attachments []models.Attachment `json:"attachments" validate:"max=10,dive"`
}

type DirectMessageEvent struct {
	RecipientID string              `json:"recipientId" validate:"required,uuid"`
	Body        string              `json:"body" validate:"required,max=10000"`
	Attachments []models.Attachment `json:"attachments" validate:"max=10,dive"`
}

// TypingEvent targets exactly one of a thread or a direct recipient.
type TypingEvent struct {
	ThreadID    string `json:"threadId" validate:"required_without=RecipientID,omitempty,uuid"`
	RecipientID string `json:"recipientId" validate:"required_without=ThreadID,omitempty,uuid"`
	IsTyping    bool   `json:"isTyping"`
}

type MarkReadEvent struct {
	MessageIDs []string `json:"messageIds" validate:"required,min=1,max=500,dive,uuid"`
}

// SignalEvent carries an offer, answer or ICE candidate to another connection.
type SignalEvent struct {
	Kind string          `json:"-"`
	To   string          `json:"to" validate:"required"`
	Data json.RawMessage `json:"data" validate:"required"`
}

func (JoinRoomEvent) Name() string        { return EventJoinRoom }
func (LeaveRoomEvent) Name() string       { return EventLeaveRoom }
func (JoinConferenceEvent) Name() string  { return EventJoinConference }
func (LeaveConferenceEvent) Name() string { return EventLeaveConference }
func (ThreadMessageEvent) Name() string   { return EventThreadMessage }
func (DirectMessageEvent) Name() string   { return EventDirectMessage }
func (TypingEvent) Name() string          { return EventTyping }
func (MarkReadEvent) Name() string        { return EventMarkRead }
func (e SignalEvent) Name() string        { return e.Kind }

func (JoinRoomEvent) inbound()        {}
func (LeaveRoomEvent) inbound()       {}
func (JoinConferenceEvent) inbound()  {}
func (LeaveConferenceEvent) inbound() {}
func (ThreadMessageEvent) inbound()   {}
func (DirectMessageEvent) inbound()   {}
func (TypingEvent) inbound()          {}
func (MarkReadEvent) inbound()        {}
func (SignalEvent) inbound()          {}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decoder turns raw frames into validated events.
type Decoder struct {
	validator *validation.Validator
}

func NewDecoder(v *validation.Validator) *Decoder {
	return &Decoder{validator: v}
}

// Decode parses a frame. The returned name is the frame's type field when it
// could be read, so callers can tag error replies even for rejected events.
func (d *Decoder) Decode(frame []byte) (Event, string, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, "", &services.ValidationError{Message: "Malformed event frame"}
	}
	if env.Type == "" {
		return nil, "", &services.ValidationError{
			Message: "Event type is required",
			Fields:  map[string]string{"type": "type is required"},
		}
	}

	switch env.Type {
	case EventJoinRoom:
		ev, err := decodeInto[JoinRoomEvent](d, env.Payload)
		return ev, env.Type, err
	case EventLeaveRoom:
		ev, err := decodeInto[LeaveRoomEvent](d, env.Payload)
		return ev, env.Type, err
	case EventJoinConference:
		ev, err := decodeInto[JoinConferenceEvent](d, env.Payload)
		return ev, env.Type, err
	case EventLeaveConference:
		ev, err := decodeInto[LeaveConferenceEvent](d, env.Payload)
		return ev, env.Type, err
	case EventThreadMessage:
		ev, err := decodeInto[ThreadMessageEvent](d, env.Payload)
		return ev, env.Type, err
	case EventDirectMessage:
		ev, err := decodeInto[DirectMessageEvent](d, env.Payload)
		return ev, env.Type, err
	case EventTyping:
		ev, err := decodeInto[TypingEvent](d, env.Payload)
		if err == nil && ev.ThreadID != "" && ev.RecipientID != "" {
			err = &services.ValidationError{Message: "Typing targets either a thread or a recipient, not both"}
		}
		return ev, env.Type, err
	case EventMarkRead:
		ev, err := decodeInto[MarkReadEvent](d, env.Payload)
		return ev, env.Type, err
	case EventOffer, EventAnswer, EventICECandidate:
		sig, err := decodeInto[SignalEvent](d, env.Payload)
		sig.Kind = env.Type
		return sig, env.Type, err
	}
	return nil, env.Type, &services.ValidationError{Message: fmt.Sprintf("Unknown event type %q", env.Type)}
}

func decodeInto[T Event](d *Decoder, payload json.RawMessage) (T, error) {
	var ev T
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, &services.ValidationError{Message: "Malformed event payload"}
	}
	if fields := d.validator.Struct(ev); fields != nil {
		return ev, &services.ValidationError{Message: "Invalid event payload", Fields: fields}
	}
	return ev, nil
}
