package realtime

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quickevent/backend/pkg/response"
)

// Handler exposes the administrative hub surface: raw broadcast, direct
// send, structured notifications and connection statistics.
type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

// NewHandler creates a hub admin handler.
func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, logger: logger}
}

// MessageRequest is the body for broadcast and direct-send endpoints.
type MessageRequest struct {
	Type   string      `json:"type" binding:"required"`
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
}

// NotifyRequest is the body for POST /ws/notify/:userId.
type NotifyRequest struct {
	Type  string      `json:"type" binding:"required"`
	Title string      `json:"title" binding:"required"`
	Body  string      `json:"body" binding:"required"`
	Data  interface{} `json:"data"`
}

// Broadcast handles POST /ws/broadcast. Sends an arbitrary envelope to all
// connected clients.
func (h *Handler) Broadcast(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.hub.Broadcast(Envelope{Type: req.Type, Action: req.Action, Data: req.Data, Timestamp: time.Now()})
	response.OK(c, gin.H{"message": "broadcast sent"})
}

// SendToUser handles POST /ws/send/:userId.
func (h *Handler) SendToUser(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.BadRequest(c, "userId required")
		return
	}
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.hub.SendToUser(userID, Envelope{Type: req.Type, Action: req.Action, Data: req.Data, Timestamp: time.Now()})
	response.OK(c, gin.H{"message": "message sent", "connections": h.hub.GetUserConnectionCount(userID)})
}

// Notify handles POST /ws/notify/:userId. Pushes a structured notification.
func (h *Handler) Notify(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.BadRequest(c, "userId required")
		return
	}
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.hub.SendToUser(userID, NewNotification(req.Type, req.Title, req.Body, req.Data))
	response.OK(c, gin.H{"message": "notification sent"})
}

// Stats handles GET /ws/stats. Returns connection counts and online users.
func (h *Handler) Stats(c *gin.Context) {
	online := h.hub.GetOnlineUsers()
	response.OK(c, gin.H{
		"total_connections": h.hub.GetTotalConnectionCount(),
		"online_users":      online,
		"online_user_count": len(online),
	})
}
