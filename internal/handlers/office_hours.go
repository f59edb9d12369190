package handlers

import (
	"net/http"

	"github.com/Kamalbura/lms-sub001/internal/middleware"
	"github.com/Kamalbura/lms-sub001/internal/models"
	"github.com/Kamalbura/lms-sub001/internal/services"
	"github.com/Kamalbura/lms-sub001/internal/validation"
)

type OfficeHourHandler struct {
	service   *services.OfficeHourService
	validator *validation.Validator
}

func NewOfficeHourHandler(service *services.OfficeHourService, v *validation.Validator) *OfficeHourHandler {
	return &OfficeHourHandler{service: service, validator: v}
}

func (h *OfficeHourHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req models.ScheduleOfficeHourRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	session, err := h.service.Schedule(r.Context(), middleware.GetIdentity(r.Context()), services.ScheduleInput{
		StudentID:      req.StudentID,
		CourseID:       req.CourseID,
		Topic:          req.Topic,
		Description:    req.Description,
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (h *OfficeHourHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch models.OfficeHourStatus(status) {
	case "", models.OfficeHourScheduled, models.OfficeHourInProgress, models.OfficeHourCompleted, models.OfficeHourCancelled:
	default:
		writeJSON(w, http.StatusBadRequest, errorRespWithFields(services.CodeValidation, "Validation failed",
			map[string]string{"status": "status must be one of scheduled in-progress completed cancelled"}, r))
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	sessions, err := h.service.ListForUser(r.Context(), middleware.GetIdentity(r.Context()), status, limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *OfficeHourHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	session, err := h.service.Get(r.Context(), middleware.GetIdentity(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *OfficeHourHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.UpdateOfficeHourRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	session, err := h.service.UpdateDetails(r.Context(), middleware.GetIdentity(r.Context()), id, services.DetailsUpdate{
		Topic:          req.Topic,
		Description:    req.Description,
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *OfficeHourHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	session, err := h.service.Start(r.Context(), middleware.GetIdentity(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *OfficeHourHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	session, err := h.service.Complete(r.Context(), middleware.GetIdentity(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *OfficeHourHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.CancelOfficeHourRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	session, err := h.service.Cancel(r.Context(), middleware.GetIdentity(r.Context()), id, req.Reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *OfficeHourHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.OfficeHourFeedbackRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	session, err := h.service.SubmitFeedback(r.Context(), middleware.GetIdentity(r.Context()), id, req.Rating, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *OfficeHourHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.OfficeHourNoteRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	session, err := h.service.AddNote(r.Context(), middleware.GetIdentity(r.Context()), id, req.Body)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *OfficeHourHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req models.ParticipantEventRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	session, err := h.service.RecordEvent(r.Context(), middleware.GetIdentity(r.Context()), id, req.Type)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session.Analytics.ParticipantEvents)
}

// Quality analytics

func (h *OfficeHourHandler) IngestQuality(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var sample models.QualitySample
	if !decodeAndValidate(w, r, h.validator, &sample) {
		return
	}

	session, err := h.service.IngestSample(r.Context(), middleware.GetIdentity(r.Context()), id, sample)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"sample_count": len(session.Analytics.QualitySamples),
	})
}

func (h *OfficeHourHandler) FinalizeQuality(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	session, err := h.service.FinalizeQuality(r.Context(), middleware.GetIdentity(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.BuildQualityReport(session))
}

func (h *OfficeHourHandler) QualityReport(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	report, err := h.service.QualityReport(r.Context(), middleware.GetIdentity(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
