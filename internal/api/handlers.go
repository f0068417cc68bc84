// Package api exposes the management endpoints for leads, sequences,
// enrollments, and engagement analysis.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/outreach-engine/internal/engagement"
	"github.com/ignite/outreach-engine/internal/store"
)

// Handlers provides HTTP handlers for the outreach API
type Handlers struct {
	store    *store.Store
	analyzer *engagement.Analyzer
}

// NewHandlers creates new API handlers
func NewHandlers(st *store.Store, analyzer *engagement.Analyzer) *Handlers {
	return &Handlers{store: st, analyzer: analyzer}
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func parseID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// Routes mounts the API endpoints.
func (h *Handlers) Routes(r chi.Router) {
	r.Post("/leads", h.HandleCreateLead)
	r.Get("/leads/{leadID}", h.HandleGetLead)

	r.Post("/profiles", h.HandleCreateProfile)
	r.Post("/sequences", h.HandleCreateSequence)
	r.Get("/sequences/{sequenceID}/steps", h.HandleListSteps)
	r.Post("/sequences/{sequenceID}/steps", h.HandleCreateStep)

	r.Post("/sequences/{sequenceID}/enroll", h.HandleEnroll)
	r.Get("/enrollments/due", h.HandleListDueEnrollments)
	r.Get("/enrollments/{enrollmentID}", h.HandleGetEnrollment)
	r.Post("/replies", h.HandleRecordReply)

	r.Get("/analysis/{trackingID}", h.HandleGetAnalysis)
	r.Get("/stats/daily", h.HandleDailyStats)
}

// HandleCreateLead creates a lead
func (h *Handlers) HandleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Company   string `json:"company"`
		Title     string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	lead := &store.Lead{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Company:   req.Company,
		Title:     req.Title,
	}
	if err := h.store.CreateLead(r.Context(), lead); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create lead")
		return
	}
	respondJSON(w, http.StatusCreated, lead)
}

// HandleGetLead returns a lead by ID
func (h *Handlers) HandleGetLead(w http.ResponseWriter, r *http.Request) {
	leadID, ok := parseID(r, "leadID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	lead, err := h.store.GetLead(r.Context(), leadID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get lead")
		return
	}
	if lead == nil {
		respondError(w, http.StatusNotFound, "lead not found")
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

// HandleCreateProfile creates a sending profile
func (h *Handlers) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string `json:"name"`
		SenderName      string `json:"sender_name"`
		SenderTitle     string `json:"sender_title"`
		SenderCompany   string `json:"sender_company"`
		SenderEmail     string `json:"sender_email"`
		Signature       string `json:"signature"`
		IsDefault       bool   `json:"is_default"`
		ScheduleEnabled bool   `json:"schedule_enabled"`
		SendDays        []int  `json:"send_days"`
		WindowFrom      string `json:"window_from"`
		WindowTo        string `json:"window_to"`
		Timezone        string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SenderEmail == "" {
		respondError(w, http.StatusBadRequest, "sender_email is required")
		return
	}

	profile := &store.SendingProfile{
		Name:            req.Name,
		SenderName:      req.SenderName,
		SenderTitle:     req.SenderTitle,
		SenderCompany:   req.SenderCompany,
		SenderEmail:     req.SenderEmail,
		Signature:       req.Signature,
		IsDefault:       req.IsDefault,
		ScheduleEnabled: req.ScheduleEnabled,
		SendDays:        req.SendDays,
		WindowFrom:      req.WindowFrom,
		WindowTo:        req.WindowTo,
		Timezone:        req.Timezone,
	}
	if err := h.store.CreateSendingProfile(r.Context(), profile); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create profile")
		return
	}
	respondJSON(w, http.StatusCreated, profile)
}

// HandleCreateSequence creates a sequence
func (h *Handlers) HandleCreateSequence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string `json:"name"`
		Description      string `json:"description"`
		SendingProfileID string `json:"sending_profile_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	seq := &store.Sequence{Name: req.Name, Description: req.Description}
	if req.SendingProfileID != "" {
		profileID, err := uuid.Parse(req.SendingProfileID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid sending_profile_id")
			return
		}
		seq.SendingProfileID = uuid.NullUUID{UUID: profileID, Valid: true}
	}
	if err := h.store.CreateSequence(r.Context(), seq); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create sequence")
		return
	}
	respondJSON(w, http.StatusCreated, seq)
}

// HandleCreateStep adds a step to a sequence
func (h *Handlers) HandleCreateStep(w http.ResponseWriter, r *http.Request) {
	sequenceID, ok := parseID(r, "sequenceID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid sequence id")
		return
	}

	var req struct {
		StepNumber   int    `json:"step_number"`
		Name         string `json:"name"`
		Subject      string `json:"subject"`
		Template     string `json:"template"`
		Prompt       string `json:"prompt"`
		DelayDays    int    `json:"delay_days"`
		DelayHours   int    `json:"delay_hours"`
		IncludePrior *bool  `json:"include_prior"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StepNumber < 1 {
		respondError(w, http.StatusBadRequest, "step_number must be >= 1")
		return
	}
	if req.DelayDays < 0 || req.DelayHours < 0 {
		respondError(w, http.StatusBadRequest, "delays must be non-negative")
		return
	}

	includePrior := true
	if req.IncludePrior != nil {
		includePrior = *req.IncludePrior
	}

	step := &store.Step{
		SequenceID:   sequenceID,
		StepNumber:   req.StepNumber,
		Name:         req.Name,
		Subject:      req.Subject,
		Template:     req.Template,
		Prompt:       req.Prompt,
		DelayDays:    req.DelayDays,
		DelayHours:   req.DelayHours,
		IncludePrior: includePrior,
		IsActive:     true,
	}
	if err := h.store.CreateStep(r.Context(), step); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create step")
		return
	}
	respondJSON(w, http.StatusCreated, step)
}

// HandleListSteps lists a sequence's steps in order
func (h *Handlers) HandleListSteps(w http.ResponseWriter, r *http.Request) {
	sequenceID, ok := parseID(r, "sequenceID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid sequence id")
		return
	}
	steps, err := h.store.ListSteps(r.Context(), sequenceID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list steps")
		return
	}
	respondJSON(w, http.StatusOK, steps)
}

// HandleEnroll enrolls a lead into a sequence
func (h *Handlers) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	sequenceID, ok := parseID(r, "sequenceID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid sequence id")
		return
	}

	var req struct {
		LeadID string `json:"lead_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid lead_id")
		return
	}

	enrollment, err := h.store.EnrollLead(r.Context(), leadID, sequenceID)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyEnrolled) {
			respondError(w, http.StatusConflict, "lead already actively enrolled in this sequence")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to enroll lead")
		return
	}
	respondJSON(w, http.StatusCreated, enrollment)
}

// HandleListDueEnrollments returns the active enrollments whose next
// send time has passed, oldest first (?limit=N, default 50).
func (h *Handlers) HandleListDueEnrollments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	due, err := h.store.ListDueEnrollments(r.Context(), time.Now(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list due enrollments")
		return
	}
	if due == nil {
		due = []*store.Enrollment{}
	}
	respondJSON(w, http.StatusOK, due)
}

// HandleGetEnrollment returns an enrollment by ID
func (h *Handlers) HandleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	enrollmentID, ok := parseID(r, "enrollmentID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid enrollment id")
		return
	}
	enrollment, err := h.store.GetEnrollment(r.Context(), enrollmentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get enrollment")
		return
	}
	if enrollment == nil {
		respondError(w, http.StatusNotFound, "enrollment not found")
		return
	}
	respondJSON(w, http.StatusOK, enrollment)
}

// HandleRecordReply records an inbound reply and halts the lead's
// active enrollment in the sequence.
func (h *Handlers) HandleRecordReply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeadID     string `json:"lead_id"`
		SequenceID string `json:"sequence_id"`
		MessageID  string `json:"message_id"`
		Content    string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid lead_id")
		return
	}
	sequenceID, err := uuid.Parse(req.SequenceID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sequence_id")
		return
	}

	reply := &store.Reply{
		LeadID:     leadID,
		SequenceID: sequenceID,
		MessageID:  req.MessageID,
		Content:    req.Content,
	}
	if err := h.store.RecordReply(r.Context(), reply); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record reply")
		return
	}
	respondJSON(w, http.StatusCreated, reply)
}

// HandleGetAnalysis returns the engagement snapshot for a tracking
// token, recomputing it from the signal log on demand.
func (h *Handlers) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "trackingID")

	msg, err := h.store.GetMessageByTrackingID(r.Context(), trackingID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to look up tracking id")
		return
	}
	if msg == nil {
		respondError(w, http.StatusNotFound, "unknown tracking id")
		return
	}

	analysis, err := h.store.RecomputeAnalysis(r.Context(), trackingID, h.analyzer.Analyze)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute analysis")
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}

// HandleDailyStats returns the aggregate counters for a day
// (?date=YYYY-MM-DD, default today).
func (h *Handlers) HandleDailyStats(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	stats, err := h.store.GetDailyStats(r.Context(), day)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
