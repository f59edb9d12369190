package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/middleware"
	"github.com/Kamalbura/lms-sub001/internal/models"
	"github.com/Kamalbura/lms-sub001/internal/services"
)

// MessageHandler serves the history a client pulls after reconnecting. Live
// delivery goes over the socket.
type MessageHandler struct {
	messages messageHistory
}

type messageHistory interface {
	ListDirectConversation(ctx context.Context, userA, userB uuid.UUID, limit int) ([]*models.Message, error)
	ListUnreadDirect(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Message, error)
}

func NewMessageHandler(messages messageHistory) *MessageHandler {
	return &MessageHandler{messages: messages}
}

func (h *MessageHandler) DirectConversation(w http.ResponseWriter, r *http.Request) {
	otherID, ok := uuidParam(w, r, "userId")
	if !ok {
		return
	}
	userID := middleware.GetUserID(r.Context())

	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	messages, err := h.messages.ListDirectConversation(r.Context(), userID, otherID, limit)
	if err != nil {
		handleServiceError(w, r, &services.StorageError{Op: "list direct conversation", Err: err})
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit := queryInt(r, "limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	messages, err := h.messages.ListUnreadDirect(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, &services.StorageError{Op: "list unread", Err: err})
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}
