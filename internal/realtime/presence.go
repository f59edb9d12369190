package realtime

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

// Presence tracks every live connection and, per user, the most recently
// registered one for unicast routing.
type Presence struct {
	mu     sync.RWMutex
	conns  map[string]Conn
	byUser map[uuid.UUID]Conn
}

func NewPresence() *Presence {
	return &Presence{
		conns:  make(map[string]Conn),
		byUser: make(map[uuid.UUID]Conn),
	}
}

// Register adds conn and makes it the unicast target for its user, then
// broadcasts the online user list to every connection.
func (p *Presence) Register(conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.conns[conn.ID()] = conn
	p.byUser[conn.Identity().UserID] = conn
	p.broadcastOnlineLocked()
}

// Unregister removes conn. The user mapping is only cleared when it still points
// at conn, so a stale connection closing cannot evict a newer one.
func (p *Presence) Unregister(conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.conns[conn.ID()]; !ok {
		return
	}
	delete(p.conns, conn.ID())

	userID := conn.Identity().UserID
	if current, ok := p.byUser[userID]; ok && current.ID() == conn.ID() {
		delete(p.byUser, userID)
	}
	p.broadcastOnlineLocked()
}

func (p *Presence) Lookup(userID uuid.UUID) (Conn, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conn, ok := p.byUser[userID]
	return conn, ok
}

// Connection resolves a connection handle.
func (p *Presence) Connection(handle string) (Conn, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conn, ok := p.conns[handle]
	return conn, ok
}

func (p *Presence) OnlineUserIDs() []uuid.UUID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.onlineLocked()
}

// Stats returns the number of live connections and distinct online users.
func (p *Presence) Stats() (connections, users int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns), len(p.byUser)
}

func (p *Presence) onlineLocked() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.byUser))
	for id := range p.byUser {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (p *Presence) broadcastOnlineLocked() {
	msg := models.WSMessage{
		Type:    EventOnlineUsers,
		Payload: OnlineUsersPayload{UserIDs: p.onlineLocked()},
	}
	for _, conn := range p.conns {
		send(conn, msg)
	}
}
