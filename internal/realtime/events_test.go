package realtime

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kamalbura/lms-sub001/internal/services"
	"github.com/Kamalbura/lms-sub001/internal/validation"
)

func TestDecoder_Decode(t *testing.T) {
	d := NewDecoder(validation.New())
	id := uuid.NewString()

	tests := []struct {
		name      string
		frame     string
		wantName  string
		wantEvent Event
		wantField string
		wantErr   bool
	}{
		{
			name:      "join room",
			frame:     `{"type":"join-room","payload":{"roomType":"course","roomId":"` + id + `"}}`,
			wantName:  EventJoinRoom,
			wantEvent: JoinRoomEvent{RoomType: "course", RoomID: id},
		},
		{
			name:      "join room missing id",
			frame:     `{"type":"join-room","payload":{"roomType":"course"}}`,
			wantName:  EventJoinRoom,
			wantErr:   true,
			wantField: "roomId",
		},
		{
			name:      "bad room type",
			frame:     `{"type":"join-room","payload":{"roomType":"lobby","roomId":"` + id + `"}}`,
			wantName:  EventJoinRoom,
			wantErr:   true,
			wantField: "roomType",
		},
		{
			name:      "thread message without body",
			frame:     `{"type":"thread-message","payload":{"threadId":"` + id + `"}}`,
			wantName:  EventThreadMessage,
			wantErr:   true,
			wantField: "body",
		},
		{
			name:      "mark read empty",
			frame:     `{"type":"mark-read","payload":{"messageIds":[]}}`,
			wantName:  EventMarkRead,
			wantErr:   true,
			wantField: "messageIds",
		},
		{
			name:     "typing with no target",
			frame:    `{"type":"typing","payload":{"isTyping":true}}`,
			wantName: EventTyping,
			wantErr:  true,
		},
		{
			name:     "typing with both targets",
			frame:    `{"type":"typing","payload":{"threadId":"` + id + `","recipientId":"` + id + `","isTyping":true}}`,
			wantName: EventTyping,
			wantErr:  true,
		},
		{
			name:      "typing to recipient",
			frame:     `{"type":"typing","payload":{"recipientId":"` + id + `","isTyping":true}}`,
			wantName:  EventTyping,
			wantEvent: TypingEvent{RecipientID: id, IsTyping: true},
		},
		{
			name:     "unknown type",
			frame:    `{"type":"shout","payload":{}}`,
			wantName: "shout",
			wantErr:  true,
		},
		{
			name:    "not json",
			frame:   `hello`,
			wantErr: true,
		},
		{
			name:    "missing type",
			frame:   `{"payload":{}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, name, err := d.Decode([]byte(tt.frame))
			assert.Equal(t, tt.wantName, name)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.wantEvent, ev)
				return
			}
			require.Error(t, err)
			var verr *services.ValidationError
			require.True(t, errors.As(err, &verr))
			if tt.wantField != "" {
				assert.Contains(t, verr.Fields, tt.wantField)
			}
		})
	}
}

func TestDecoder_SignalKeepsKindAndData(t *testing.T) {
	d := NewDecoder(validation.New())

	ev, name, err := d.Decode([]byte(`{"type":"ice-candidate","payload":{"to":"abc","data":{"candidate":"x"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventICECandidate, name)

	sig, ok := ev.(SignalEvent)
	require.True(t, ok)
	assert.Equal(t, EventICECandidate, sig.Name())
	assert.Equal(t, "abc", sig.To)
	assert.JSONEq(t, `{"candidate":"x"}`, string(sig.Data))

	_, _, err = d.Decode([]byte(`{"type":"offer","payload":{"to":"abc"}}`))
	assert.Error(t, err)
}
