package realtime

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomTable_JoinFreshThenRejoin(t *testing.T) {
	table := NewRoomTable()
	room := CourseRoom(uuid.New())
	now := time.Now()

	alice := newFakeConn(uuid.New(), "Alice")
	bob := newFakeConn(uuid.New(), "Bob")

	table.Join(room, alice, false, now)
	members := table.Join(room, bob, false, now)
	require.Len(t, members, 2)
	assert.Equal(t, alice.identity.UserID, members[0].UserID)
	assert.Equal(t, bob.identity.UserID, members[1].UserID)

	joined := alice.events(EventMemberJoined)
	require.Len(t, joined, 1)
	payload := joined[0].Payload.(MemberJoinedPayload)
	assert.False(t, payload.Rejoin)
	assert.Equal(t, bob.identity.UserID, payload.Member.UserID)
	assert.Empty(t, bob.events(EventMemberJoined), "joiner must not hear its own join")

	list := bob.events(EventRoomMembers)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Payload.(RoomMembersPayload).Members, 2)

	// Alice opens a second tab and joins again.
	alice2 := &fakeConn{id: uuid.NewString(), identity: alice.identity}
	members = table.Join(room, alice2, false, now)
	require.Len(t, members, 2)
	assert.Equal(t, alice2.ID(), members[0].ConnectionID)

	rejoined := bob.events(EventMemberJoined)
	require.Len(t, rejoined, 1)
	assert.True(t, rejoined[0].Payload.(MemberJoinedPayload).Rejoin)

	// The replaced handle no longer owns the membership.
	_, ok := table.Leave(room, alice.ID())
	assert.False(t, ok)
	assert.Len(t, table.MembersOf(room), 2)
	assert.Empty(t, table.RoomsOf(alice.ID()))
}

func TestRoomTable_LastWriteWinsPerUser(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	table := NewRoomTable()
	room := ThreadRoom(uuid.New())

	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	var conns []*fakeConn
	for _, u := range users {
		conns = append(conns, newFakeConn(u, "u"), newFakeConn(u, "u"))
	}

	expected := map[uuid.UUID]string{}
	for i := 0; i < 500; i++ {
		c := conns[rng.Intn(len(conns))]
		if rng.Intn(3) == 0 {
			table.Leave(room, c.ID())
			if expected[c.identity.UserID] == c.ID() {
				delete(expected, c.identity.UserID)
			}
			continue
		}
		table.Join(room, c, false, time.Now())
		expected[c.identity.UserID] = c.ID()
	}

	members := table.MembersOf(room)
	seen := map[uuid.UUID]bool{}
	for _, m := range members {
		require.False(t, seen[m.UserID], "duplicate member for user %s", m.UserID)
		seen[m.UserID] = true
		assert.Equal(t, expected[m.UserID], m.ConnectionID)
	}
	assert.Len(t, members, len(expected))
}

func TestRoomTable_LeaveDeletesEmptyRoom(t *testing.T) {
	table := NewRoomTable()
	room := CourseRoom(uuid.New())
	alice := newFakeConn(uuid.New(), "Alice")
	bob := newFakeConn(uuid.New(), "Bob")

	table.Join(room, alice, false, time.Now())
	table.Join(room, bob, false, time.Now())
	require.Equal(t, 1, table.Count())

	removed, ok := table.Leave(room, alice.ID())
	require.True(t, ok)
	assert.Equal(t, alice.identity.UserID, removed.UserID)

	left := bob.events(EventMemberLeft)
	require.Len(t, left, 1)
	assert.False(t, left[0].Payload.(MemberLeftPayload).Disconnected)

	table.Leave(room, bob.ID())
	assert.Equal(t, 0, table.Count())
	assert.Empty(t, table.MembersOf(room))
}

func TestRoomTable_NamespacesDoNotCollide(t *testing.T) {
	table := NewRoomTable()
	id := uuid.New()
	messaging := CourseRoom(id)
	conference := ConferenceRoom{SessionID: "course-" + id.String()}
	require.Equal(t, messaging.String(), conference.String())

	alice := newFakeConn(uuid.New(), "Alice")
	bob := newFakeConn(uuid.New(), "Bob")
	table.Join(messaging, alice, false, time.Now())
	table.Join(conference, bob, false, time.Now())

	assert.Equal(t, 2, table.Count())
	assert.Len(t, table.MembersOf(messaging), 1)
	assert.Len(t, table.MembersOf(conference), 1)
	assert.Empty(t, alice.events(EventMemberJoined))
	assert.Empty(t, bob.events(EventUserJoined))
	assert.Len(t, bob.events(EventRoomUsers), 1)
}

func TestRoomTable_BroadcastContinuesPastDeadRecipient(t *testing.T) {
	table := NewRoomTable()
	room := CourseRoom(uuid.New())
	dead := newFakeConn(uuid.New(), "Dead")
	alive := newFakeConn(uuid.New(), "Alive")
	sender := newFakeConn(uuid.New(), "Sender")

	table.Join(room, dead, false, time.Now())
	table.Join(room, alive, false, time.Now())
	table.Join(room, sender, false, time.Now())
	dead.close()

	n := table.Broadcast(room, newEvent("ping", nil), sender.ID())
	assert.Equal(t, 1, n)
	assert.Len(t, alive.events("ping"), 1)
	assert.Empty(t, sender.events("ping"))
}

func TestRoomTable_DropConnection(t *testing.T) {
	table := NewRoomTable()
	course := CourseRoom(uuid.New())
	thread := ThreadRoom(uuid.New())
	alice := newFakeConn(uuid.New(), "Alice")
	bob := newFakeConn(uuid.New(), "Bob")

	table.Join(course, alice, false, time.Now())
	table.Join(thread, alice, false, time.Now())
	table.Join(course, bob, false, time.Now())
	assert.Equal(t, []Room{course, thread}, table.RoomsOf(alice.ID()))

	departures := table.DropConnection(alice.ID())
	require.Len(t, departures, 2)
	assert.Equal(t, course, departures[0].Room)
	assert.Equal(t, thread, departures[1].Room)

	left := bob.events(EventMemberLeft)
	require.Len(t, left, 1)
	assert.True(t, left[0].Payload.(MemberLeftPayload).Disconnected)
	assert.Equal(t, 1, table.Count(), "empty thread room is removed")
	assert.Empty(t, table.RoomsOf(alice.ID()))
}

func TestParseMessagingRoom(t *testing.T) {
	id := uuid.NewString()

	room, err := ParseMessagingRoom("thread", id)
	require.NoError(t, err)
	assert.Equal(t, "thread-"+id, room.String())

	_, err = ParseMessagingRoom("lobby", id)
	assert.Error(t, err)

	_, err = ParseMessagingRoom("course", "not-a-uuid")
	assert.Error(t, err)
}

func TestRoomTable_ConcurrentChurnOnOneRoom(t *testing.T) {
	table := NewRoomTable()
	room := ConferenceRoom{SessionID: uuid.NewString()}
	const users, rounds = 16, 50

	// Two tabs per user so the same user id races itself.
	var conns []*fakeConn
	for i := 0; i < users; i++ {
		first := newFakeConn(uuid.New(), "user")
		conns = append(conns, first, &fakeConn{id: uuid.NewString(), identity: first.identity})
	}

	assertUnique := func(members []Member) {
		seen := make(map[uuid.UUID]bool, len(members))
		for _, m := range members {
			assert.False(t, seen[m.UserID], "user %s listed twice", m.UserID)
			seen[m.UserID] = true
		}
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-stop:
				return
			default:
				assertUnique(table.MembersOf(room))
			}
		}
	}()

	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func(seed int64, c *fakeConn) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for r := 0; r < rounds; r++ {
				assertUnique(table.Join(room, c, false, time.Now()))
				if rng.Intn(2) == 0 {
					table.Leave(room, c.ID())
				} else {
					table.DropConnection(c.ID())
				}
			}
		}(int64(i), c)
	}
	wg.Wait()
	close(stop)
	readers.Wait()

	assert.Empty(t, table.MembersOf(room))
	assert.Equal(t, 0, table.Count(), "empty room must be deleted")
	for _, c := range conns {
		assert.Empty(t, table.RoomsOf(c.ID()))
	}
}
