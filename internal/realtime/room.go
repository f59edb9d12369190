package realtime

import (
	"fmt"

	"github.com/google/uuid"
)

type RoomKind string

const (
	RoomKindCourse RoomKind = "course"
	RoomKindThread RoomKind = "thread"
)

// Room is a closed sum of MessagingRoom and ConferenceRoom. Both are comparable
// values used directly as map keys, so a conference room whose session id looks
// like "course-x" can never share state with the messaging room course-x.
type Room interface {
	fmt.Stringer
	joinedEvent() string
	leftEvent() string
	membersEvent() string
}

// MessagingRoom is a chat room keyed "<kind>-<id>".
type MessagingRoom struct {
	Kind RoomKind
	ID   string
}

func (r MessagingRoom) String() string { return string(r.Kind) + "-" + r.ID }

func (MessagingRoom) joinedEvent() string  { return EventMemberJoined }
func (MessagingRoom) leftEvent() string    { return EventMemberLeft }
func (MessagingRoom) membersEvent() string { return EventRoomMembers }

// ConferenceRoom is a realtime video room keyed by the bare session id.
type ConferenceRoom struct {
	SessionID string
}

func (r ConferenceRoom) String() string { return r.SessionID }

func (ConferenceRoom) joinedEvent() string  { return EventUserJoined }
func (ConferenceRoom) leftEvent() string    { return EventUserLeft }
func (ConferenceRoom) membersEvent() string { return EventRoomUsers }

func CourseRoom(courseID uuid.UUID) MessagingRoom {
	return MessagingRoom{Kind: RoomKindCourse, ID: courseID.String()}
}

func ThreadRoom(threadID uuid.UUID) MessagingRoom {
	return MessagingRoom{Kind: RoomKindThread, ID: threadID.String()}
}

// ParseMessagingRoom builds a messaging room from its wire parts.
func ParseMessagingRoom(kind, id string) (MessagingRoom, error) {
	switch RoomKind(kind) {
	case RoomKindCourse, RoomKindThread:
	default:
		return MessagingRoom{}, fmt.Errorf("unknown room type %q", kind)
	}
	if _, err := uuid.Parse(id); err != nil {
		return MessagingRoom{}, fmt.Errorf("invalid room id %q", id)
	}
	return MessagingRoom{Kind: RoomKind(kind), ID: id}, nil
}
