package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kamalbura/lms-sub001/internal/models"
	"github.com/Kamalbura/lms-sub001/internal/services"
)

type routerFixture struct {
	presence *Presence
	rooms    *RoomTable
	messages *fakeMessageStore
	threads  *fakeThreadStore
	users    fakeUsers
	router   *MessageRouter
	thread   *models.Thread
}

func newRouterFixture() *routerFixture {
	thread := &models.Thread{ID: uuid.New(), CourseID: uuid.New(), Title: "Week 3: recursion"}
	f := &routerFixture{
		presence: NewPresence(),
		rooms:    NewRoomTable(),
		messages: newFakeMessageStore(),
		threads:  newFakeThreadStore(thread),
		users:    fakeUsers{},
		thread:   thread,
	}
	f.router = NewMessageRouter(f.presence, f.rooms, f.messages, f.threads, f.users)
	return f
}

func (f *routerFixture) online(name string) *fakeConn {
	c := newFakeConn(uuid.New(), name)
	f.users[c.identity.UserID] = true
	f.presence.Register(c)
	return c
}

func TestRouteThreadMessage_FanOut(t *testing.T) {
	f := newRouterFixture()
	threadRoom := ThreadRoom(f.thread.ID)
	courseRoom := CourseRoom(f.thread.CourseID)

	sender := f.online("Sender")
	viewer := f.online("Viewer")
	watcher := f.online("Watcher")

	f.rooms.Join(threadRoom, sender, false, time.Now())
	f.rooms.Join(courseRoom, sender, false, time.Now())
	f.rooms.Join(threadRoom, viewer, false, time.Now())
	f.rooms.Join(courseRoom, viewer, false, time.Now())
	f.rooms.Join(courseRoom, watcher, false, time.Now())

	msg, err := f.router.RouteThreadMessage(context.Background(), sender, f.thread.ID, nil, "Does anyone have the slides?", nil)
	require.NoError(t, err)

	stored := f.messages.get(msg.ID)
	require.NotNil(t, stored)
	assert.True(t, stored.HasReadBy(sender.identity.UserID))
	assert.Equal(t, 1, f.threads.activity[f.thread.ID])

	assert.Len(t, sender.events(EventNewThreadMessage), 1)
	assert.Len(t, viewer.events(EventNewThreadMessage), 1)
	assert.Empty(t, watcher.events(EventNewThreadMessage))

	assert.Empty(t, sender.events(EventThreadActivity))
	assert.Empty(t, viewer.events(EventThreadActivity))
	activity := watcher.events(EventThreadActivity)
	require.Len(t, activity, 1)
	payload := activity[0].Payload.(ThreadActivityPayload)
	assert.Equal(t, f.thread.Title, payload.ThreadTitle)
	assert.Equal(t, "Does anyone have the slides?", payload.Preview)
}

func TestRouteThreadMessage_ReplyUpdatesParent(t *testing.T) {
	f := newRouterFixture()
	sender := f.online("Sender")

	parent, err := f.router.RouteThreadMessage(context.Background(), sender, f.thread.ID, nil, "question", nil)
	require.NoError(t, err)

	reply, err := f.router.RouteThreadMessage(context.Background(), sender, f.thread.ID, &parent.ID, "answer", nil)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, *reply.ParentID)
	assert.Equal(t, 1, f.messages.replies[parent.ID])
}

func TestRouteThreadMessage_UnknownThread(t *testing.T) {
	f := newRouterFixture()
	sender := f.online("Sender")
	f.rooms.Join(CourseRoom(f.thread.CourseID), sender, false, time.Now())
	sender.reset()

	_, err := f.router.RouteThreadMessage(context.Background(), sender, uuid.New(), nil, "hello", nil)
	var nf *services.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, 0, f.messages.count())
	assert.Empty(t, sender.types())
}

func TestRouteThreadMessage_StorageFailureHasNoBroadcast(t *testing.T) {
	f := newRouterFixture()
	sender := f.online("Sender")
	peer := f.online("Peer")
	f.rooms.Join(ThreadRoom(f.thread.ID), peer, false, time.Now())
	f.messages.failSave = true

	_, err := f.router.RouteThreadMessage(context.Background(), sender, f.thread.ID, nil, "hello", nil)
	assert.Equal(t, services.CodeStorageUnavailable, services.ErrorCode(err))
	assert.Empty(t, peer.events(EventNewThreadMessage))
	assert.Zero(t, f.threads.activity[f.thread.ID])
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))

	exact := strings.Repeat("a", 50)
	assert.Equal(t, exact, Preview(exact))

	long := strings.Repeat("é", 60)
	got := Preview(long)
	assert.Equal(t, strings.Repeat("é", 50)+"...", got)
}

func TestRouteDirectMessage_RecipientOnline(t *testing.T) {
	f := newRouterFixture()
	sender := f.online("Sender")
	recipient := f.online("Recipient")

	msg, err := f.router.RouteDirectMessage(context.Background(), sender, recipient.identity.UserID, "hi there", nil)
	require.NoError(t, err)

	stored := f.messages.get(msg.ID)
	assert.Equal(t, []uuid.UUID{recipient.identity.UserID}, stored.DeliveredTo)
	assert.True(t, stored.HasReadBy(sender.identity.UserID))
	assert.False(t, stored.HasReadBy(recipient.identity.UserID))

	assert.Len(t, sender.events(EventNewDirectMessage), 1)
	delivered := recipient.events(EventNewDirectMessage)
	require.Len(t, delivered, 1)
	notes := recipient.events(EventNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, "hi there", notes[0].Payload.(NotificationPayload).Preview)

	raw, err := json.Marshal(delivered[0])
	require.NoError(t, err)
	var wire struct {
		Payload map[string]interface{} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, sender.identity.UserID.String(), wire.Payload["senderId"])
	assert.Contains(t, wire.Payload, "recipientId")
	assert.Contains(t, wire.Payload, "readBy")
	assert.NotContains(t, wire.Payload, "sender_id")
}

func TestRouteDirectMessage_RecipientOfflineGetsNoRealtimeEvents(t *testing.T) {
	f := newRouterFixture()
	sender := f.online("Sender")
	bystander := f.online("Bystander")
	offline := uuid.New()
	f.users[offline] = true
	bystander.reset()

	msg, err := f.router.RouteDirectMessage(context.Background(), sender, offline, "see you tomorrow", nil)
	require.NoError(t, err)

	stored := f.messages.get(msg.ID)
	require.NotNil(t, stored, "message is persisted for later retrieval")
	assert.Empty(t, stored.DeliveredTo)
	assert.Len(t, sender.events(EventNewDirectMessage), 1)
	assert.Empty(t, bystander.types())

	// Coming online later does not replay anything over the socket.
	late := &fakeConn{id: uuid.NewString(), identity: models.Identity{UserID: offline}}
	f.presence.Register(late)
	assert.Empty(t, late.events(EventNewDirectMessage))
	assert.Empty(t, late.events(EventNotification))
}

func TestRouteDirectMessage_Rejections(t *testing.T) {
	f := newRouterFixture()
	sender := f.online("Sender")

	_, err := f.router.RouteDirectMessage(context.Background(), sender, uuid.New(), "hi", nil)
	assert.Equal(t, services.CodeNotFound, services.ErrorCode(err))

	_, err = f.router.RouteDirectMessage(context.Background(), sender, sender.identity.UserID, "hi", nil)
	assert.Equal(t, services.CodeValidation, services.ErrorCode(err))

	recipient := f.online("Recipient")
	f.messages.failSave = true
	sender.reset()
	_, err = f.router.RouteDirectMessage(context.Background(), sender, recipient.identity.UserID, "hi", nil)
	assert.Equal(t, services.CodeStorageUnavailable, services.ErrorCode(err))
	assert.Empty(t, sender.events(EventNewDirectMessage))
	assert.Empty(t, recipient.events(EventNewDirectMessage))
	assert.Equal(t, 0, f.messages.count())
}

func TestMarkRead_IdempotentAndGroupedBySender(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()
	alice := f.online("Alice")
	carol := f.online("Carol")
	bob := f.online("Bob")

	m1, err := f.router.RouteDirectMessage(ctx, alice, bob.identity.UserID, "one", nil)
	require.NoError(t, err)
	m2, err := f.router.RouteDirectMessage(ctx, alice, bob.identity.UserID, "two", nil)
	require.NoError(t, err)
	m3, err := f.router.RouteDirectMessage(ctx, carol, bob.identity.UserID, "three", nil)
	require.NoError(t, err)

	n, err := f.router.MarkRead(ctx, bob, []uuid.UUID{m1.ID, m2.ID, m3.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	aliceReads := alice.events(EventMessagesRead)
	require.Len(t, aliceReads, 1)
	assert.ElementsMatch(t, []uuid.UUID{m1.ID, m2.ID}, aliceReads[0].Payload.(MessagesReadPayload).MessageIDs)
	carolReads := carol.events(EventMessagesRead)
	require.Len(t, carolReads, 1)
	assert.Equal(t, []uuid.UUID{m3.ID}, carolReads[0].Payload.(MessagesReadPayload).MessageIDs)

	before := len(f.messages.get(m1.ID).ReadBy)
	n, err = f.router.MarkRead(ctx, bob, []uuid.UUID{m1.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, f.messages.get(m1.ID).ReadBy, before)
	assert.Len(t, alice.events(EventMessagesRead), 1, "no receipt for an already-read message")
}

func TestMarkRead_SkipsAbsentSenders(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()
	alice := f.online("Alice")
	bob := f.online("Bob")

	m, err := f.router.RouteDirectMessage(ctx, alice, bob.identity.UserID, "ping", nil)
	require.NoError(t, err)
	f.presence.Unregister(alice)
	alice.reset()

	n, err := f.router.MarkRead(ctx, bob, []uuid.UUID{m.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, alice.events(EventMessagesRead))
}

func TestRelayTyping(t *testing.T) {
	f := newRouterFixture()
	alice := f.online("Alice")
	bob := f.online("Bob")
	room := ThreadRoom(f.thread.ID)
	f.rooms.Join(room, alice, false, time.Now())
	f.rooms.Join(room, bob, false, time.Now())

	f.router.RelayTyping(alice, &f.thread.ID, nil, true)
	assert.Empty(t, alice.events(EventTyping))
	typing := bob.events(EventTyping)
	require.Len(t, typing, 1)
	assert.True(t, typing[0].Payload.(TypingPayload).IsTyping)

	f.router.RelayTyping(bob, nil, &alice.identity.UserID, false)
	require.Len(t, alice.events(EventTyping), 1)

	absent := uuid.New()
	f.router.RelayTyping(bob, nil, &absent, true)
	assert.Len(t, alice.events(EventTyping), 1)
}
