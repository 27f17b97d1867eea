package stats

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quickevent/backend/internal/events"
	"github.com/quickevent/backend/internal/middleware"
	"github.com/quickevent/backend/pkg/response"
)

// Handler handles GET /events/:id/stats.
type Handler struct {
	repo      *Repository
	eventRepo *events.Repository
}

// NewHandler creates a stats handler.
func NewHandler(repo *Repository, eventRepo *events.Repository) *Handler {
	return &Handler{repo: repo, eventRepo: eventRepo}
}

// GetByEvent handles GET /events/:id/stats for the event organizer.
func (h *Handler) GetByEvent(c *gin.Context) {
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
	summary, err := h.repo.Summarize(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to compute statistics")
		return
	}
	response.OK(c, summary)
}
