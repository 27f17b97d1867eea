package events

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickevent/backend/internal/middleware"
	"github.com/quickevent/backend/internal/models"
	"github.com/quickevent/backend/internal/realtime"
	"github.com/quickevent/backend/pkg/response"
)

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Title        string     `json:"title" binding:"required"`
	Description  string     `json:"description"`
	Location     string     `json:"location" binding:"required"`
	StartsAt     time.Time  `json:"starts_at" binding:"required"`
	EndsAt       *time.Time `json:"ends_at"`
	MaxAttendees int        `json:"max_attendees" binding:"required,min=1"`
	IsPublic     bool       `json:"is_public"`
}

// UpdateRequest is the body for PATCH /events/:id.
type UpdateRequest struct {
	Title              *string    `json:"title"`
	Description        *string    `json:"description"`
	Location           *string    `json:"location"`
	StartsAt           *time.Time `json:"starts_at"`
	EndsAt             *time.Time `json:"ends_at"`
	MaxAttendees       *int       `json:"max_attendees"`
	IsPublic           *bool      `json:"is_public"`
	IsRegistrationOpen *bool      `json:"is_registration_open"`
}

// DeleteRequest is the body for DELETE /events/:id.
type DeleteRequest struct {
	Reason string `json:"reason"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo   *Repository
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository, hub *realtime.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, hub: hub, logger: logger}
}

// List handles GET /events. Organizers see their own events, everyone else
// sees public ones.
func (h *Handler) List(c *gin.Context) {
	role := c.MustGet(middleware.ContextUserRole).(string)
	var (
		list []models.Event
		err  error
	)
	if role == string(models.RoleOrganizer) {
		organizerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		list, err = h.repo.ListByOrganizer(c.Request.Context(), organizerID)
	} else {
		list, err = h.repo.ListPublic(c.Request.Context())
	}
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	event, ok := h.loadEvent(c)
	if !ok {
		return
	}
	response.OK(c, event)
}

// Create handles POST /events (organizer only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	event := &models.Event{
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		MaxAttendees: req.MaxAttendees,
		IsPublic:     req.IsPublic,
		OrganizerID:  c.MustGet(middleware.ContextUserID).(uuid.UUID),
	}
	if err := h.repo.Create(c.Request.Context(), event); err != nil {
		h.logger.Error("create event", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	h.hub.NotifyEventCreated(event.ID, event)
	response.Created(c, event)
}

// Update handles PATCH /events/:id (owning organizer only).
func (h *Handler) Update(c *gin.Context) {
	event, ok := h.loadOwnEvent(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.StartsAt != nil {
		event.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		event.EndsAt = req.EndsAt
	}
	if req.MaxAttendees != nil {
		event.MaxAttendees = *req.MaxAttendees
	}
	if req.IsPublic != nil {
		event.IsPublic = *req.IsPublic
	}
	if req.IsRegistrationOpen != nil {
		event.IsRegistrationOpen = *req.IsRegistrationOpen
	}
	if err := h.repo.Update(c.Request.Context(), event); err != nil {
		h.logger.Error("update event", zap.Error(err), zap.Int64("event_id", event.ID))
		response.Internal(c, "failed to update event")
		return
	}
	h.hub.NotifyEventUpdated(event.ID, event)
	response.OK(c, event)
}

// Delete handles DELETE /events/:id (owning organizer only). The event is
// cancelled rather than hard-deleted so registrations remain auditable.
func (h *Handler) Delete(c *gin.Context) {
	event, ok := h.loadOwnEvent(c)
	if !ok {
		return
	}
	var req DeleteRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "cancelled by organizer"
	}
	if err := h.repo.Cancel(c.Request.Context(), event.ID); err != nil {
		h.logger.Error("cancel event", zap.Error(err), zap.Int64("event_id", event.ID))
		response.Internal(c, "failed to delete event")
		return
	}
	h.hub.NotifyEventDeleted(event.ID, req.Reason)
	response.OK(c, gin.H{"message": "event cancelled", "reason": req.Reason})
}

func (h *Handler) loadEvent(c *gin.Context) (*models.Event, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return nil, false
	}
	event, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("load event", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to load event")
		return nil, false
	}
	if event == nil {
		response.NotFound(c, "event not found")
		return nil, false
	}
	return event, true
}

func (h *Handler) loadOwnEvent(c *gin.Context) (*models.Event, bool) {
	event, ok := h.loadEvent(c)
	if !ok {
		return nil, false
	}
	organizerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if event.OrganizerID != organizerID {
		response.Forbidden(c, "not your event")
		return nil, false
	}
	return event, true
}
