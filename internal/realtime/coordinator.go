package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/services"
	"github.com/Kamalbura/lms-sub001/internal/validation"
)

// ConferenceGuard decides whether a user may enter a conference room.
type ConferenceGuard interface {
	CanJoinConference(ctx context.Context, userID, sessionID uuid.UUID) error
}

type Deps struct {
	Messages   MessageStore
	Threads    ThreadStore
	Users      UserDirectory
	Conference ConferenceGuard // optional
	Validator  *validation.Validator
}

// Coordinator owns all realtime state for the process. Transports hand it
// connections and raw frames; it never touches the network itself.
type Coordinator struct {
	presence   *Presence
	rooms      *RoomTable
	grace      *GraceTracker
	router     *MessageRouter
	signaling  *SignalingRelay
	decoder    *Decoder
	conference ConferenceGuard
	now        func() time.Time
}

func NewCoordinator(deps Deps) *Coordinator {
	presence := NewPresence()
	rooms := NewRoomTable()
	v := deps.Validator
	if v == nil {
		v = validation.New()
	}
	return &Coordinator{
		presence:   presence,
		rooms:      rooms,
		grace:      NewGraceTracker(),
		router:     NewMessageRouter(presence, rooms, deps.Messages, deps.Threads, deps.Users),
		signaling:  NewSignalingRelay(presence),
		decoder:    NewDecoder(v),
		conference: deps.Conference,
		now:        time.Now,
	}
}

func (c *Coordinator) Connect(conn Conn) {
	c.presence.Register(conn)
	logf("connected %s (user %s)", conn.ID(), conn.Identity().UserID)
}

// Disconnect removes conn from every room and then from presence. The grace
// tracker keeps one record per user, so when conn was in several rooms only the
// last one joined is recovered as a reconnect; the others see a disconnected
// departure followed by a fresh join.
func (c *Coordinator) Disconnect(conn Conn) {
	userID := conn.Identity().UserID
	for _, room := range c.rooms.RoomsOf(conn.ID()) {
		c.grace.RecordDisconnect(userID, room)
	}
	departures := c.rooms.DropConnection(conn.ID())
	c.presence.Unregister(conn)
	logf("disconnected %s (user %s, left %d rooms)", conn.ID(), userID, len(departures))
}

// HandleFrame decodes and dispatches one raw frame. Failures are reported to
// the sender as an error event and never end the connection.
func (c *Coordinator) HandleFrame(ctx context.Context, conn Conn, frame []byte) {
	ev, name, err := c.decoder.Decode(frame)
	if err == nil {
		err = c.Handle(ctx, conn, ev)
	}
	if err != nil {
		c.replyError(conn, name, err)
	}
}

// Handle applies a decoded event on behalf of conn.
func (c *Coordinator) Handle(ctx context.Context, conn Conn, ev Event) error {
	switch e := ev.(type) {
	case JoinRoomEvent:
		room, err := ParseMessagingRoom(e.RoomType, e.RoomID)
		if err != nil {
			return &services.ValidationError{Message: err.Error()}
		}
		c.join(conn, room)
		return nil

	case LeaveRoomEvent:
		room, err := ParseMessagingRoom(e.RoomType, e.RoomID)
		if err != nil {
			return &services.ValidationError{Message: err.Error()}
		}
		c.rooms.Leave(room, conn.ID())
		return nil

	case JoinConferenceEvent:
		sessionID, err := parseID("sessionId", e.SessionID)
		if err != nil {
			return err
		}
		if c.conference != nil {
			if err := c.conference.CanJoinConference(ctx, conn.Identity().UserID, sessionID); err != nil {
				return err
			}
		}
		c.join(conn, ConferenceRoom{SessionID: e.SessionID})
		return nil

	case LeaveConferenceEvent:
		c.rooms.Leave(ConferenceRoom{SessionID: e.SessionID}, conn.ID())
		return nil

	case ThreadMessageEvent:
		threadID, err := parseID("threadId", e.ThreadID)
		if err != nil {
			return err
		}
		parentID, err := optionalID("parentId", e.ParentID)
		if err != nil {
			return err
		}
		_, err = c.router.RouteThreadMessage(ctx, conn, threadID, parentID, e.Body, e.Attachments)
		return err

	case DirectMessageEvent:
		recipientID, err := parseID("recipientId", e.RecipientID)
		if err != nil {
			return err
		}
		_, err = c.router.RouteDirectMessage(ctx, conn, recipientID, e.Body, e.Attachments)
		return err

	case TypingEvent:
		threadID, err := optionalID("threadId", e.ThreadID)
		if err != nil {
			return err
		}
		recipientID, err := optionalID("recipientId", e.RecipientID)
		if err != nil {
			return err
		}
		c.router.RelayTyping(conn, threadID, recipientID, e.IsTyping)
		return nil

	case MarkReadEvent:
		ids := make([]uuid.UUID, 0, len(e.MessageIDs))
		for _, s := range e.MessageIDs {
			id, err := parseID("messageIds", s)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		_, err := c.router.MarkRead(ctx, conn, ids)
		return err

	case SignalEvent:
		c.signaling.Relay(conn, e.To, e.Kind, e.Data)
		return nil
	}
	return &services.ValidationError{Message: "Unsupported event"}
}

func (c *Coordinator) join(conn Conn, room Room) {
	reconnected := c.grace.TryRecoverReconnect(conn.Identity().UserID, room)
	c.rooms.Join(room, conn, reconnected, c.now().UTC())
}

func (c *Coordinator) replyError(conn Conn, event string, err error) {
	payload := ErrorPayload{
		Code:    services.ErrorCode(err),
		Message: services.PublicMessage(err),
		Event:   event,
	}
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		payload.Fields = verr.Fields
	}
	if payload.Code == services.CodeStorageUnavailable || payload.Code == services.CodeInternal {
		logf("%s from %s failed: %v", event, conn.ID(), err)
	}
	send(conn, newEvent(EventError, payload))
}

// RunGraceSweeper expires disconnect records until ctx is done.
func (c *Coordinator) RunGraceSweeper(ctx context.Context, interval, window time.Duration) {
	c.grace.Run(ctx, interval, window)
}

type Stats struct {
	Rooms             int `json:"rooms"`
	Connections       int `json:"connections"`
	OnlineUsers       int `json:"online_users"`
	PendingReconnects int `json:"pending_reconnects"`
}

func (c *Coordinator) Stats() Stats {
	conns, users := c.presence.Stats()
	return Stats{
		Rooms:             c.rooms.Count(),
		Connections:       conns,
		OnlineUsers:       users,
		PendingReconnects: c.grace.Pending(),
	}
}

// Presence exposes the registry for transports that deliver out-of-band
// updates to a user's live connection.
func (c *Coordinator) Presence() *Presence { return c.presence }

func parseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, &services.ValidationError{
			Message: "Invalid " + field,
			Fields:  map[string]string{field: "must be a valid UUID"},
		}
	}
	return id, nil
}

func optionalID(field, s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseID(field, s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
