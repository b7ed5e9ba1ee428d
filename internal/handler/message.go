package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/models"
	"github.com/lgscvb/Brain-sub000/internal/repository"
	"github.com/lgscvb/Brain-sub000/internal/service"
)

// MessageHandler covers message intake plus the draft-lifecycle endpoints
// that hang off a message: regenerate, send, archive.
type MessageHandler struct {
	messages  repository.MessageRepository
	generator *service.Generator
	tracker   *service.Tracker
	logger    *zap.Logger
}

func NewMessageHandler(
	messages repository.MessageRepository,
	generator *service.Generator,
	tracker *service.Tracker,
	logger *zap.Logger,
) *MessageHandler {
	return &MessageHandler{
		messages:  messages,
		generator: generator,
		tracker:   tracker,
		logger:    logger,
	}
}

func (h *MessageHandler) Create(c *gin.Context) {
	var in models.CreateMessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errs.New(errs.KindValidation, "sender, channel and content are required"))
		return
	}

	msg := &models.Message{
		Sender:  in.Sender,
		Channel: in.Channel,
		Content: in.Content,
		Status:  models.MessageStatusPending,
	}
	if err := h.messages.Save(msg); err != nil {
		h.logger.Error("save message", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) List(c *gin.Context) {
	msgs, err := h.messages.List(c.Query("status"))
	if err != nil {
		h.logger.Error("list messages", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs, "total": len(msgs)})
}

func (h *MessageHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	msg, err := h.messages.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) Archive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.messages.Archive(id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": models.MessageStatusArchived})
}

// Regenerate produces a fresh draft for the message. Messages whose draft
// already has refinement history must be archived first; that surfaces as
// a conflict.
func (h *MessageHandler) Regenerate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	draft, err := h.generator.Generate(c.Request.Context(), id)
	if err != nil {
		if errs.KindOf(err) == errs.KindInternal {
			h.logger.Error("generate draft", zap.Int64("message_id", id), zap.Error(err))
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, draft)
}

func (h *MessageHandler) Send(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var in models.SendInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errs.New(errs.KindValidation, "content is required"))
		return
	}

	resp, err := h.tracker.RecordSend(id, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// pathID parses a numeric path parameter, responding with a validation
// error when it is not a positive integer.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, errs.New(errs.KindValidation, "invalid "+name))
		return 0, false
	}
	return id, true
}
