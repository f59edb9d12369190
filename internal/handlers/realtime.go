package handlers

import (
	"net/http"

	"github.com/Kamalbura/lms-sub001/internal/realtime"
)

type RealtimeHandler struct {
	coordinator *realtime.Coordinator
}

func NewRealtimeHandler(coordinator *realtime.Coordinator) *RealtimeHandler {
	return &RealtimeHandler{coordinator: coordinator}
}

func (h *RealtimeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coordinator.Stats())
}
