package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/fplcoach/internal/app/service/chat"
	"github.com/fatflowers/fplcoach/internal/models"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/response"
)

// ChatService is the subset of chat.Service used by the HTTP layer.
type ChatService interface {
	Send(ctx context.Context, userID string, req chat.SendRequest) (*chat.SendResponse, error)
	History(ctx context.Context, userID, conversationID string) ([]*models.ChatMessage, error)
}

// @Summary      Ask the assistant
// @Description  Sends a question with the current FPL snapshot as context. Consumes one message on success only.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body chat.SendRequest true "Chat message"
// @Success      200  {object}  handlers.RespChat
// @Router       /api/v1/chat [post]
func ApiSendChat(svc ChatService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chat.SendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Send(c.Request.Context(), logctx.UserID(c.Request.Context()), req)
		if err != nil {
			writeError(c, log, "chat_send_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Conversation history
// @Tags         Chat
// @Produce      json
// @Security     BearerAuth
// @Param        conversation_id path string true "Conversation id"
// @Success      200  {object}  handlers.RespChatHistory
// @Router       /api/v1/chat/{conversation_id} [get]
func ApiChatHistory(svc ChatService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.History(c.Request.Context(), logctx.UserID(c.Request.Context()), c.Param("conversation_id"))
		if err != nil {
			writeError(c, log, "chat_history_failed", err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

func RegisterChatRoutes(r gin.IRouter, svc ChatService, log *zap.SugaredLogger) {
	r.POST("/chat", ApiSendChat(svc, log))
	r.GET("/chat/:conversation_id", ApiChatHistory(svc, log))
}
