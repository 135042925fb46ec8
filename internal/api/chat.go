package api

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"victim-support/backend/internal/auth"
	"victim-support/backend/internal/models"
	"victim-support/backend/internal/service"
	"victim-support/backend/pkg/errors"
	"victim-support/backend/pkg/logger"
)

// multipart overhead allowed on top of the attachment limit
const uploadEnvelope = 1 << 20

// ChatController handles the chat endpoints for both sides of a room.
// Participation is checked by the service, so victim and staff routes share
// the message handlers.
type ChatController struct {
	chat *service.ChatService
	log  *logger.Logger
}

// NewChatController creates a new chat controller
func NewChatController(chat *service.ChatService, log *logger.Logger) *ChatController {
	return &ChatController{chat: chat, log: log}
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type assignCounselorRequest struct {
	CounselorID string `json:"counselorId" binding:"required"`
}

// RegisterVictimRoutes registers the victim side under an authenticated group
func (h *ChatController) RegisterVictimRoutes(group *gin.RouterGroup) {
	group.GET("/room", h.GetRoom)
	h.registerRoomRoutes(group)
}

// RegisterStaffRoutes registers the staff side. adminOnly guards counselor
// assignment.
func (h *ChatController) RegisterStaffRoutes(group *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	group.GET("/victims", h.ListVictims)
	h.registerRoomRoutes(group)
	group.PUT("/:roomId/counselor", adminOnly, h.AssignCounselor)
}

func (h *ChatController) registerRoomRoutes(group *gin.RouterGroup) {
	group.GET("/:roomId/messages", h.GetMessages)
	group.POST("/:roomId/messages", h.SendMessage)
	group.POST("/:roomId/read", h.MarkRead)
	group.POST("/:roomId/upload", h.MaxUploadBody(), h.Upload)
}

// GetRoom resolves the caller's room, creating it on first contact
func (h *ChatController) GetRoom(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	room, err := h.chat.ResolveRoom(c.Request.Context(), identity)
	if err != nil {
		c.Error(serviceError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"roomId": room.ID})
}

// GetMessages returns the room's messages in log order
func (h *ChatController) GetMessages(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	messages, err := h.chat.History(c.Request.Context(), c.Param("roomId"), identity)
	if err != nil {
		c.Error(serviceError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage appends a text message and delivers it to the room
func (h *ChatController) SendMessage(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.BadRequestWithDetails("VALIDATION_FAILED", "Message content is required", err.Error()))
		return
	}

	msg, err := h.chat.SendText(c.Request.Context(), c.Param("roomId"), identity, req.Content)
	if err != nil {
		c.Error(serviceError(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkRead marks the counterpart's messages as read by the caller
func (h *ChatController) MarkRead(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	count, err := h.chat.MarkRead(c.Request.Context(), c.Param("roomId"), identity)
	if err != nil {
		c.Error(serviceError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Messages marked as read",
		"count":   count,
	})
}

// Upload stores a voice note or file and posts the message referencing it
func (h *ChatController) Upload(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	// parse the multipart body first so an oversized request is reported as such
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			c.Error(errors.NewPayloadTooLargeError("FILE_TOO_LARGE", "File exceeds the upload limit"))
			return
		}
		c.Error(errors.BadRequestWithDetails("VALIDATION_FAILED", "No file uploaded", err.Error()))
		return
	}

	rawKind := c.PostForm("type")
	if rawKind == "" {
		c.Error(errors.NewBadRequestError("VALIDATION_FAILED", "type is required (voice or file)"))
		return
	}
	kind, err := models.ParseKind(rawKind)
	if err != nil || !kind.IsAttachment() {
		c.Error(errors.NewBadRequestError("VALIDATION_FAILED", "type must be voice or file"))
		return
	}

	var duration float64
	if raw := c.PostForm("duration"); raw != "" {
		duration, err = strconv.ParseFloat(raw, 64)
		if err != nil || duration < 0 {
			c.Error(errors.NewBadRequestError("VALIDATION_FAILED", "duration must be a positive number of seconds"))
			return
		}
	}

	ingester := h.chat.Ingester()
	if header.Size > ingester.MaxSize() {
		c.Error(errors.NewPayloadTooLargeError("FILE_TOO_LARGE", "File exceeds the upload limit"))
		return
	}

	file, err := header.Open()
	if err != nil {
		c.Error(errors.NewInternalServerError("INGEST_FAILED", "Failed to read upload"))
		return
	}
	tempPath, size, err := ingester.Spool(file)
	file.Close()
	if err != nil {
		c.Error(serviceError(err))
		return
	}

	msg, att, err := h.chat.SendAttachment(c.Request.Context(), identity, service.Upload{
		RoomID:       c.Param("roomId"),
		Kind:         kind,
		TempPath:     tempPath,
		OriginalName: header.Filename,
		Size:         size,
	}, duration)
	if err != nil {
		c.Error(serviceError(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"url":     att.ReferenceURL,
		"message": msg,
	})
}

// ListVictims summarizes the rooms handled by the calling staff member
func (h *ChatController) ListVictims(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	summaries, err := h.chat.Registry().ListForStaff(c.Request.Context(), identity)
	if err != nil {
		c.Error(serviceError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"victims": summaries})
}

// AssignCounselor sets the counselor who may join the room
func (h *ChatController) AssignCounselor(c *gin.Context) {
	var req assignCounselorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.BadRequestWithDetails("VALIDATION_FAILED", "counselorId is required", err.Error()))
		return
	}

	room, err := h.chat.Registry().AssignCounselor(c.Request.Context(), c.Param("roomId"), req.CounselorID)
	if err != nil {
		c.Error(serviceError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": room})
}

// MaxUploadBody limits request bodies on upload routes
func (h *ChatController) MaxUploadBody() gin.HandlerFunc {
	limit := h.chat.Ingester().MaxSize() + uploadEnvelope
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func requireIdentity(c *gin.Context) (models.Identity, bool) {
	identity, ok := auth.Identity(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		c.Abort()
	}
	return identity, ok
}

// serviceError maps a service failure onto the HTTP error it is reported as
func serviceError(err error) *errors.AppError {
	code := service.ErrorCode(err)
	switch code {
	case "ROOM_NOT_FOUND":
		return errors.NewNotFoundError(code, "Chat room not found")
	case "VALIDATION_FAILED":
		return errors.BadRequestWithDetails(code, "Invalid request", err.Error())
	case "UNAUTHORIZED":
		return errors.NewForbiddenError(code, "Not a participant of this room")
	case "INGEST_FAILED":
		return errors.NewInternalServerError(code, "Failed to store attachment")
	}
	return errors.NewInternalServerError(code, "Failed to save chat data")
}
