package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraceTracker_RecoverConsumesExactPair(t *testing.T) {
	g := NewGraceTracker()
	user := uuid.New()
	room := CourseRoom(uuid.New())

	g.RecordDisconnect(user, room)
	assert.False(t, g.TryRecoverReconnect(user, ThreadRoom(uuid.New())))
	assert.Equal(t, 1, g.Pending())

	assert.True(t, g.TryRecoverReconnect(user, room))
	assert.False(t, g.TryRecoverReconnect(user, room))
	assert.Equal(t, 0, g.Pending())
}

func TestGraceTracker_LaterDisconnectOverwrites(t *testing.T) {
	g := NewGraceTracker()
	user := uuid.New()
	first := CourseRoom(uuid.New())
	second := ConferenceRoom{SessionID: uuid.NewString()}

	g.RecordDisconnect(user, first)
	g.RecordDisconnect(user, second)

	assert.Equal(t, 1, g.Pending())
	assert.False(t, g.TryRecoverReconnect(user, first))
	assert.True(t, g.TryRecoverReconnect(user, second))
}

func TestGraceTracker_Sweep(t *testing.T) {
	g := NewGraceTracker()
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return t0 }

	g.RecordDisconnect(uuid.New(), CourseRoom(uuid.New()))
	g.RecordDisconnect(uuid.New(), CourseRoom(uuid.New()))

	assert.Equal(t, 0, g.Sweep(t0.Add(4*time.Minute), 5*time.Minute))
	assert.Equal(t, 2, g.Pending())

	assert.Equal(t, 2, g.Sweep(t0.Add(6*time.Minute), 5*time.Minute))
	assert.Equal(t, 0, g.Pending())
}

func TestGraceTracker_RunSweepsUntilCancelled(t *testing.T) {
	g := NewGraceTracker()
	t0 := time.Now()
	g.now = func() time.Time { return t0 }
	g.RecordDisconnect(uuid.New(), CourseRoom(uuid.New()))
	g.now = func() time.Time { return t0.Add(10 * time.Minute) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx, 5*time.Millisecond, 5*time.Minute)
		close(done)
	}()

	require.Eventually(t, func() bool { return g.Pending() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
