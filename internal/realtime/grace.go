package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DisconnectRecord remembers the last room a user dropped out of.
type DisconnectRecord struct {
	UserID         uuid.UUID
	Room           Room
	DisconnectedAt time.Time
}

// GraceTracker tells a returning user apart from a new one. It keeps at most one
// record per user; a later disconnect overwrites an earlier one.
type GraceTracker struct {
	mu      sync.RWMutex
	records map[uuid.UUID]DisconnectRecord
	now     func() time.Time
}

func NewGraceTracker() *GraceTracker {
	return &GraceTracker{
		records: make(map[uuid.UUID]DisconnectRecord),
		now:     time.Now,
	}
}

func (g *GraceTracker) RecordDisconnect(userID uuid.UUID, room Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.records[userID] = DisconnectRecord{UserID: userID, Room: room, DisconnectedAt: g.now()}
}

// TryRecoverReconnect consumes the record for (userID, room) if one exists.
func (g *GraceTracker) TryRecoverReconnect(userID uuid.UUID, room Room) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[userID]
	if !ok || rec.Room != room {
		return false
	}
	delete(g.records, userID)
	return true
}

// Sweep drops records older than threshold and returns how many were removed.
func (g *GraceTracker) Sweep(now time.Time, threshold time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, rec := range g.records {
		if now.Sub(rec.DisconnectedAt) > threshold {
			delete(g.records, id)
			removed++
		}
	}
	return removed
}

func (g *GraceTracker) Pending() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

// Run sweeps every interval until ctx is done.
func (g *GraceTracker) Run(ctx context.Context, interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logf("grace sweeper started (interval %s, window %s)", interval, threshold)
	for {
		select {
		case <-ctx.Done():
			logf("grace sweeper stopped")
			return
		case <-ticker.C:
			if n := g.Sweep(g.now(), threshold); n > 0 {
				logf("grace sweeper expired %d disconnect records", n)
			}
		}
	}
}
