package realtime

import (
	"errors"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

var (
	ErrConnClosed  = errors.New("connection closed")
	ErrSendBufFull = errors.New("send buffer full")
)

// Conn is one live client connection as seen by the core. Send must not block:
// implementations enqueue and return ErrSendBufFull or ErrConnClosed instead.
type Conn interface {
	ID() string
	Identity() models.Identity
	Send(msg models.WSMessage) error
}

// send delivers to one recipient and logs failures so that a dead peer never
// stops delivery to the others.
func send(c Conn, msg models.WSMessage) bool {
	if err := c.Send(msg); err != nil {
		logf("send %s to conn %s (user %s) failed: %v", msg.Type, c.ID(), c.Identity().UserID, err)
		return false
	}
	return true
}
