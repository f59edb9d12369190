package websocket

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/Kamalbura/lms-sub001/internal/models"
	"github.com/Kamalbura/lms-sub001/internal/realtime"
	"github.com/Kamalbura/lms-sub001/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Authenticator resolves the ?token= credential to an identity.
type Authenticator interface {
	Authenticate(token string) (models.Identity, error)
}

// Session is the realtime core as the transport sees it.
type Session interface {
	Connect(conn realtime.Conn)
	Disconnect(conn realtime.Conn)
	HandleFrame(ctx context.Context, conn realtime.Conn, frame []byte)
}

type Options struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	SendBuffer      int
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 * 1024
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	return o
}

// Hub accepts sockets, feeds their frames to the session and relays the
// user_updates:<id> pub/sub channel to every local socket of that user.
type Hub struct {
	mu          sync.RWMutex
	clients     map[uuid.UUID][]*Client
	cancelFuncs map[uuid.UUID]context.CancelFunc
	redisClient *redis.Client
	auth        Authenticator
	session     Session
	opts        Options
}

func NewHub(redisClient *redis.Client, auth Authenticator, session Session, opts Options) *Hub {
	return &Hub{
		clients:     make(map[uuid.UUID][]*Client),
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		redisClient: redisClient,
		auth:        auth,
		session:     session,
		opts:        opts.withDefaults(),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	identity, err := h.auth.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, services.CodeUnauthenticated, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for user %s: %v", identity.UserID, err)
		return
	}

	client := newClient(h, conn, identity)
	h.register(client)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.identity.UserID] = append(h.clients[c.identity.UserID], c)

	// Start pub/sub subscription if this is the first connection for this user
	if len(h.clients[c.identity.UserID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[c.identity.UserID] = cancel
		go h.subscribeToPubSub(ctx, c.identity.UserID)
	}
	total := len(h.clients[c.identity.UserID])
	h.mu.Unlock()

	h.session.Connect(c)
	log.Printf("[ws] connected: user %s conn %s (total: %d)", c.identity.UserID, c.id, total)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	userID := c.identity.UserID
	conns := h.clients[userID]
	for i, existing := range conns {
		if existing == c {
			h.clients[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}
	h.mu.Unlock()

	h.session.Disconnect(c)
	c.close()
	log.Printf("[ws] disconnected: user %s conn %s", userID, c.id)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, userID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, services.UserUpdatesChannel(userID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.relay(userID, []byte(msg.Payload))
		}
	}
}

// relay forwards a published payload verbatim to every local socket of userID.
func (h *Hub) relay(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients[userID] {
		if err := c.enqueue(data); err != nil {
			log.Printf("[ws] relay to conn %s (user %s) failed: %v", c.id, userID, err)
		}
	}
}

// ConnectionCount is the number of sockets open on this process.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// Shutdown closes every socket. Read pumps then run the normal disconnect path.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	var all []*Client
	for _, conns := range h.clients {
		all = append(all, conns...)
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.conn.Close()
	}
}
