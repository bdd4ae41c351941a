package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/medassist/backend-go/app/bootstrap"
	"github.com/medassist/backend-go/internal/config"
	"github.com/medassist/backend-go/internal/knowledge"
	"github.com/medassist/backend-go/internal/logger"
	"github.com/medassist/backend-go/internal/services"
	"go.uber.org/zap"
)

var validate = validator.New()

// ChatController 聊天接口控制器
type ChatController struct {
	BaseController
	chatService *services.ChatService
}

func (c *ChatController) Prepare() {
	if c.chatService == nil {
		if app := bootstrap.GetApp(); app != nil {
			c.chatService = app.ChatService()
		}
	}
}

// chatRequestBody POST /api/chat 请求体
type chatRequestBody struct {
	Message       string                       `json:"message" validate:"required"`
	History       []knowledge.ConversationTurn `json:"history"`
	TreatmentMode string                       `json:"treatmentMode"`
}

// POST /api/chat
func (c *ChatController) Chat() {
	if c.chatService == nil {
		c.JSONError(http.StatusInternalServerError, "An error occurred while processing your request.")
		return
	}

	var body chatRequestBody
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &body); err != nil {
		c.JSONError(http.StatusBadRequest, "Message content is required")
		return
	}
	if err := validate.Struct(&body); err != nil {
		c.JSONError(http.StatusBadRequest, "Message content is required")
		return
	}
	if body.TreatmentMode == "" {
		body.TreatmentMode = string(knowledge.ModeGeneral)
	}

	timeout := 60 * time.Second
	if config.AppConfig != nil && config.AppConfig.AI.RequestTimeout > 0 {
		timeout = time.Duration(config.AppConfig.AI.RequestTimeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Ctx.Request.Context(), timeout)
	defer cancel()

	result, err := c.chatService.Chat(ctx, &services.ChatRequest{
		Message:       body.Message,
		History:       body.History,
		TreatmentMode: body.TreatmentMode,
	})
	if err != nil {
		c.writeChatError(err)
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"response": result.Response,
		"debug":    result.Debug,
	})
}

// writeChatError 按错误类别映射状态码和用户可见文案。
// 上游错误细节只进日志，不回给调用方。
func (c *ChatController) writeChatError(err error) {
	logger.Error("chat request failed",
		zap.Error(err),
		zap.String("ip", c.getClientIP()))

	switch {
	case errors.Is(err, knowledge.ErrValidation):
		c.JSONError(http.StatusBadRequest, "Message content is required")
	case errors.Is(err, knowledge.ErrEmbedding):
		c.JSONError(http.StatusInternalServerError, "OpenAI API configuration error")
	case errors.Is(err, knowledge.ErrVectorIndex):
		c.JSONError(http.StatusInternalServerError, "Vector database connection error")
	case errors.Is(err, knowledge.ErrCompletion):
		c.JSONError(http.StatusInternalServerError, "Chat model service error")
	default:
		c.JSONError(http.StatusInternalServerError, "An error occurred while processing your request.")
	}
}
