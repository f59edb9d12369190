package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

type Member struct {
	UserID       uuid.UUID `json:"userId"`
	ConnectionID string    `json:"connectionId"`
	DisplayName  string    `json:"displayName"`
	Role         string    `json:"role"`
	JoinedAt     time.Time `json:"joinedAt"`

	conn Conn
}

func newMember(conn Conn, now time.Time) *Member {
	id := conn.Identity()
	return &Member{
		UserID:       id.UserID,
		ConnectionID: conn.ID(),
		DisplayName:  id.DisplayName,
		Role:         id.Role,
		JoinedAt:     now,
		conn:         conn,
	}
}

// Departure is one room membership removed because its connection went away.
type Departure struct {
	Room   Room
	Member Member
}

// RoomTable holds room membership. Every mutation emits its notification while
// the table lock is held, so members of a room observe events in processing order.
type RoomTable struct {
	mu     sync.RWMutex
	rooms  map[Room][]*Member
	byConn map[string][]Room
}

func NewRoomTable() *RoomTable {
	return &RoomTable{
		rooms:  make(map[Room][]*Member),
		byConn: make(map[string][]Room),
	}
}

// Join adds conn to room, replacing any existing entry for the same user. Peers
// receive the joined event; the joiner receives the full member list, which is
// also returned.
func (t *RoomTable) Join(room Room, conn Conn, reconnected bool, now time.Time) []Member {
	t.mu.Lock()
	defer t.mu.Unlock()

	member := newMember(conn, now)
	members := t.rooms[room]

	rejoin := false
	for i, m := range members {
		if m.UserID != member.UserID {
			continue
		}
		rejoin = true
		if m.ConnectionID != member.ConnectionID {
			t.untrackLocked(m.ConnectionID, room)
		}
		members[i] = member
		break
	}
	if !rejoin {
		members = append(members, member)
	}
	t.rooms[room] = members
	t.trackLocked(member.ConnectionID, room)

	t.broadcastLocked(room, newEvent(room.joinedEvent(), MemberJoinedPayload{
		Room:        room.String(),
		Member:      *member,
		Rejoin:      rejoin,
		Reconnected: reconnected,
	}), member.ConnectionID)

	snapshot := snapshotMembers(members)
	send(conn, newEvent(room.membersEvent(), RoomMembersPayload{Room: room.String(), Members: snapshot}))
	return snapshot
}

// Leave removes the member joined through handle. It reports false when the
// connection was not in the room.
func (t *RoomTable) Leave(room Room, handle string) (Member, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(room, handle, false)
}

// DropConnection removes handle from every room it joined, emitting a left event
// marked as a disconnect in each.
func (t *RoomTable) DropConnection(handle string) []Departure {
	t.mu.Lock()
	defer t.mu.Unlock()

	rooms := append([]Room(nil), t.byConn[handle]...)
	var out []Departure
	for _, room := range rooms {
		if m, ok := t.removeLocked(room, handle, true); ok {
			out = append(out, Departure{Room: room, Member: m})
		}
	}
	return out
}

func (t *RoomTable) MembersOf(room Room) []Member {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return snapshotMembers(t.rooms[room])
}

// RoomsOf lists the rooms joined through handle, in join order.
func (t *RoomTable) RoomsOf(handle string) []Room {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Room(nil), t.byConn[handle]...)
}

// Count returns the number of non-empty rooms.
func (t *RoomTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}

func (t *RoomTable) ConnectionIDs(room Room) map[string]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make(map[string]struct{}, len(t.rooms[room]))
	for _, m := range t.rooms[room] {
		ids[m.ConnectionID] = struct{}{}
	}
	return ids
}

// Broadcast sends msg to every member of room except the excluded connection
// handles and returns how many sends were accepted.
func (t *RoomTable) Broadcast(room Room, msg models.WSMessage, exclude ...string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.broadcastLocked(room, msg, exclude...)
}

func (t *RoomTable) removeLocked(room Room, handle string, disconnected bool) (Member, bool) {
	members := t.rooms[room]
	idx := -1
	for i, m := range members {
		if m.ConnectionID == handle {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Member{}, false
	}

	removed := *members[idx]
	members = append(members[:idx], members[idx+1:]...)
	t.untrackLocked(handle, room)

	if len(members) == 0 {
		delete(t.rooms, room)
		return removed, true
	}
	t.rooms[room] = members

	t.broadcastLocked(room, newEvent(room.leftEvent(), MemberLeftPayload{
		Room:         room.String(),
		UserID:       removed.UserID,
		ConnectionID: removed.ConnectionID,
		Disconnected: disconnected,
	}))
	return removed, true
}

func (t *RoomTable) broadcastLocked(room Room, msg models.WSMessage, exclude ...string) int {
	delivered := 0
	for _, m := range t.rooms[room] {
		if contains(exclude, m.ConnectionID) {
			continue
		}
		if send(m.conn, msg) {
			delivered++
		}
	}
	return delivered
}

func (t *RoomTable) trackLocked(handle string, room Room) {
	for _, r := range t.byConn[handle] {
		if r == room {
			return
		}
	}
	t.byConn[handle] = append(t.byConn[handle], room)
}

func (t *RoomTable) untrackLocked(handle string, room Room) {
	rooms := t.byConn[handle]
	for i, r := range rooms {
		if r == room {
			rooms = append(rooms[:i], rooms[i+1:]...)
			break
		}
	}
	if len(rooms) == 0 {
		delete(t.byConn, handle)
		return
	}
	t.byConn[handle] = rooms
}

func snapshotMembers(members []*Member) []Member {
	out := make([]Member, len(members))
	for i, m := range members {
		out[i] = *m
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
