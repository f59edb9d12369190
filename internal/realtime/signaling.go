package realtime

import "encoding/json"

// SignalingRelay forwards WebRTC negotiation payloads between connections
// without inspecting them.
type SignalingRelay struct {
	presence *Presence
}

func NewSignalingRelay(presence *Presence) *SignalingRelay {
	return &SignalingRelay{presence: presence}
}

// Relay sends data to the connection identified by toHandle. A target that has
// gone away is dropped silently; peers recover through renegotiation.
func (s *SignalingRelay) Relay(from Conn, toHandle, kind string, data json.RawMessage) bool {
	target, ok := s.presence.Connection(toHandle)
	if !ok {
		return false
	}
	return send(target, newEvent(kind, SignalPayload{
		From:       from.ID(),
		FromUserID: from.Identity().UserID,
		Data:       data,
	}))
}
