package notifications

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickevent/backend/internal/middleware"
	"github.com/quickevent/backend/internal/realtime"
	"github.com/quickevent/backend/pkg/response"
)

// Handler handles notification HTTP endpoints.
type Handler struct {
	repo   *Repository
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(repo *Repository, hub *realtime.Hub, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, hub: hub, logger: logger}
}

// List handles GET /notifications. ?unread=true filters to unread only.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	unreadOnly := c.Query("unread") == "true"
	list, err := h.repo.ListByUser(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		response.Internal(c, "failed to list notifications")
		return
	}
	count, err := h.repo.CountUnread(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to count notifications")
		return
	}
	response.OK(c, gin.H{"notifications": list, "unread_count": count})
}

// MarkRead handles POST /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	n, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load notification")
		return
	}
	if n == nil || n.UserID != userID {
		response.NotFound(c, "notification not found")
		return
	}

	if err := h.repo.MarkRead(c.Request.Context(), id, userID); err != nil {
		h.logger.Error("mark notification read", zap.Int64("notification_id", id), zap.Error(err))
		response.Internal(c, "failed to mark notification read")
		return
	}
	h.hub.NotifyNotificationRead(userID.String(), id)
	response.OK(c, gin.H{"message": "notification marked read"})
}

// MarkAllRead handles POST /notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.repo.MarkAllRead(c.Request.Context(), userID); err != nil {
		response.Internal(c, "failed to mark notifications read")
		return
	}
	response.OK(c, gin.H{"message": "all notifications marked read"})
}
