package checkin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickevent/backend/internal/events"
	"github.com/quickevent/backend/internal/middleware"
	"github.com/quickevent/backend/pkg/queue"
	"github.com/quickevent/backend/pkg/response"
)

// ScanRequest is the body for POST /organizer/checkin.
type ScanRequest struct {
	QRToken string `json:"qr_token" binding:"required"`
}

// Handler handles check-in HTTP endpoints.
type Handler struct {
	coordinator *Coordinator
	repo        *Repository
	eventRepo   *events.Repository
	jobs        *queue.Queue
	logger      *zap.Logger
}

// NewHandler creates a check-in handler. jobs may be nil when no worker runs.
func NewHandler(coordinator *Coordinator, repo *Repository, eventRepo *events.Repository, jobs *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{coordinator: coordinator, repo: repo, eventRepo: eventRepo, jobs: jobs, logger: logger}
}

// Scan handles POST /organizer/checkin. Each rejection carries its own code
// and message so the scanning client can show the exact reason.
func (h *Handler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	organizerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	result, err := h.coordinator.CheckIn(c.Request.Context(), req.QRToken, organizerID)
	if err != nil {
		h.logger.Error("check-in failed", zap.Error(err))
		response.Internal(c, "check-in failed")
		return
	}

	switch result.Code {
	case CodeOK:
		if h.jobs != nil && result.CheckIn != nil {
			payload := queue.StatsRefreshPayload{EventID: result.CheckIn.EventID}
			if err := h.jobs.EnqueueStatsRefresh(c.Request.Context(), payload); err != nil {
				h.logger.Warn("enqueue stats refresh", zap.Int64("event_id", payload.EventID), zap.Error(err))
			}
		}
		response.OK(c, gin.H{
			"message":     "check-in successful",
			"participant": result.Participant,
		})
	case CodeAlreadyCheckedIn:
		c.JSON(http.StatusConflict, response.Body{
			Success: false,
			Error:   "participant has already checked in",
			Data: gin.H{
				"code":          result.Code,
				"checked_in_at": result.CheckedInAt,
				"participant":   result.Participant,
			},
		})
	case CodeInvalidCredential:
		c.JSON(http.StatusBadRequest, response.Body{
			Success: false,
			Error:   "invalid or unrecognized code",
			Data:    gin.H{"code": result.Code},
		})
	case CodeRegistrationNotFound:
		c.JSON(http.StatusNotFound, response.Body{
			Success: false,
			Error:   "no registration found for this code",
			Data:    gin.H{"code": result.Code},
		})
	case CodeCredentialMismatch:
		c.JSON(http.StatusBadRequest, response.Body{
			Success: false,
			Error:   "code does not belong to this event",
			Data:    gin.H{"code": result.Code},
		})
	case CodeRegistrationCancelled:
		c.JSON(http.StatusBadRequest, response.Body{
			Success: false,
			Error:   "registration has been cancelled",
			Data:    gin.H{"code": result.Code},
		})
	case CodeUnauthorized:
		c.JSON(http.StatusForbidden, response.Body{
			Success: false,
			Error:   "you are not the organizer of this event",
			Data:    gin.H{"code": result.Code},
		})
	default:
		response.Internal(c, "unexpected check-in outcome")
	}
}

// ListByEvent handles GET /events/:id/checkins. Organizer only, own events.
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
	organizerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if event.OrganizerID != organizerID {
		response.Forbidden(c, "not your event")
		return
	}

	list, err := h.repo.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to list check-ins")
		return
	}
	response.OK(c, gin.H{"event_id": eventID, "check_ins": list, "count": len(list)})
}
