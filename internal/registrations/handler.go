package registrations

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickevent/backend/internal/credential"
	"github.com/quickevent/backend/internal/events"
	"github.com/quickevent/backend/internal/middleware"
	"github.com/quickevent/backend/internal/models"
	"github.com/quickevent/backend/internal/notifications"
	"github.com/quickevent/backend/internal/realtime"
	"github.com/quickevent/backend/pkg/queue"
	"github.com/quickevent/backend/pkg/response"
)

// CreateRequest is the body for POST /events/:id/register.
type CreateRequest struct {
	FullName    string `json:"full_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phone_number"`
}

// CancelRequest is the body for POST /registrations/:id/cancel.
type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	repo        *Repository
	eventRepo   *events.Repository
	notifRepo   *notifications.Repository
	credentials *credential.Service
	hub         *realtime.Hub
	jobs        *queue.Queue
	logger      *zap.Logger
}

// NewHandler creates a registrations handler. jobs may be nil when no
// worker runs.
func NewHandler(repo *Repository, eventRepo *events.Repository, notifRepo *notifications.Repository,
	credentials *credential.Service, hub *realtime.Hub, jobs *queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{
		repo:        repo,
		eventRepo:   eventRepo,
		notifRepo:   notifRepo,
		credentials: credentials,
		hub:         hub,
		jobs:        jobs,
		logger:      logger,
	}
}

func (h *Handler) refreshStats(c *gin.Context, eventID int64) {
	if h.jobs == nil {
		return
	}
	if err := h.jobs.EnqueueStatsRefresh(c.Request.Context(), queue.StatsRefreshPayload{EventID: eventID}); err != nil {
		h.logger.Warn("enqueue stats refresh", zap.Int64("event_id", eventID), zap.Error(err))
	}
}

// Create handles POST /events/:id/register. On success the registration
// carries a signed check-in credential usable as QR payload.
func (h *Handler) Create(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	event, err := h.eventRepo.GetByID(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if event == nil {
		response.NotFound(c, "event not found")
		return
	}
	if event.IsCancelled {
		response.BadRequest(c, "event is cancelled")
		return
	}
	if !event.IsRegistrationOpen {
		response.BadRequest(c, "registration is closed")
		return
	}

	existing, err := h.repo.GetActiveByEventAndUser(c.Request.Context(), eventID, userID)
	if err != nil {
		response.Internal(c, "failed to check registration")
		return
	}
	if existing != nil {
		response.Conflict(c, "already registered for this event")
		return
	}

	if event.MaxAttendees > 0 {
		count, err := h.repo.CountActiveByEvent(c.Request.Context(), eventID)
		if err != nil {
			response.Internal(c, "failed to check capacity")
			return
		}
		if count >= event.MaxAttendees {
			response.Conflict(c, "event is full")
			return
		}
	}

	reg := &models.Registration{
		EventID:     eventID,
		UserID:      userID,
		FullName:    req.FullName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	}
	if err := h.repo.Create(c.Request.Context(), reg); err != nil {
		h.logger.Error("create registration", zap.Error(err))
		response.Internal(c, "failed to create registration")
		return
	}

	token := h.credentials.Issue(reg.ID, eventID)
	if err := h.repo.SetToken(c.Request.Context(), reg.ID, token); err != nil {
		h.logger.Error("store credential", zap.Int64("registration_id", reg.ID), zap.Error(err))
		response.Internal(c, "failed to store credential")
		return
	}
	reg.QRToken = token

	n := &models.Notification{
		UserID:         event.OrganizerID,
		Type:           "registration",
		Message:        fmt.Sprintf("%s registered for %s", reg.FullName, event.Title),
		RegistrationID: &reg.ID,
		EventID:        &eventID,
	}
	if err := h.notifRepo.Create(c.Request.Context(), n); err != nil {
		h.logger.Warn("persist notification", zap.Error(err))
	}
	h.hub.NotifyRegistrationCreated(event.OrganizerID.String(), reg.ID, eventID, reg.FullName, reg)
	h.refreshStats(c, eventID)

	response.Created(c, gin.H{"registration": reg, "qr_token": token})
}

// GetByID handles GET /registrations/:id. Visible to the registered guest
// and the event organizer.
func (h *Handler) GetByID(c *gin.Context) {
	reg, event, ok := h.loadVisible(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{"registration": reg, "event": event})
}

// QRCode handles GET /registrations/:id/qrcode, returning the credential
// rendered as a PNG.
func (h *Handler) QRCode(c *gin.Context) {
	reg, _, ok := h.loadVisible(c)
	if !ok {
		return
	}
	if reg.IsCancelled() {
		response.BadRequest(c, "registration is cancelled")
		return
	}
	if reg.QRToken == "" {
		response.NotFound(c, "no credential issued")
		return
	}
	png, err := credential.QRImage(reg.QRToken)
	if err != nil {
		response.Internal(c, "failed to render qr code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// Cancel handles POST /registrations/:id/cancel. Only the registered guest
// may cancel, and a reason is required.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	reg, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load registration")
		return
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return
	}
	if reg.UserID != userID {
		response.Forbidden(c, "not your registration")
		return
	}
	if reg.IsCancelled() {
		response.BadRequest(c, "registration already cancelled")
		return
	}

	if err := h.repo.Cancel(c.Request.Context(), id, req.Reason); err != nil {
		h.logger.Error("cancel registration", zap.Int64("registration_id", id), zap.Error(err))
		response.Internal(c, "failed to cancel registration")
		return
	}

	event, err := h.eventRepo.GetByID(c.Request.Context(), reg.EventID)
	if err == nil && event != nil {
		n := &models.Notification{
			UserID:         event.OrganizerID,
			Type:           "cancellation",
			Message:        fmt.Sprintf("%s cancelled their registration for %s: %s", reg.FullName, event.Title, req.Reason),
			RegistrationID: &reg.ID,
			EventID:        &reg.EventID,
		}
		if err := h.notifRepo.Create(c.Request.Context(), n); err != nil {
			h.logger.Warn("persist notification", zap.Error(err))
		}
		h.hub.NotifyRegistrationCancelled(event.OrganizerID.String(), reg.ID, reg.EventID, reg.FullName, req.Reason)
	}
	h.refreshStats(c, reg.EventID)

	response.OK(c, gin.H{"message": "registration cancelled", "reason": req.Reason})
}

// ListMine handles GET /registrations/my.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// ListByEvent handles GET /events/:id/registrations for the event organizer.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, err := h.eventRepo.GetByID(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if event == nil {
		response.NotFound(c, "event not found")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if event.OrganizerID != userID {
		response.Forbidden(c, "not your event")
		return
	}
	list, err := h.repo.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, gin.H{"event_id": eventID, "registrations": list, "count": len(list)})
}

func (h *Handler) loadVisible(c *gin.Context) (*models.Registration, *models.Event, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return nil, nil, false
	}
	reg, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load registration")
		return nil, nil, false
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return nil, nil, false
	}
	event, err := h.eventRepo.GetByID(c.Request.Context(), reg.EventID)
	if err != nil || event == nil {
		response.Internal(c, "failed to load event")
		return nil, nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if reg.UserID != userID && event.OrganizerID != userID {
		response.Forbidden(c, "not your registration")
		return nil, nil, false
	}
	return reg, event, true
}
