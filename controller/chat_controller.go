// controller/chat_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	echo_errors "github.com/flowgate/api/errors"
	"github.com/flowgate/api/model"
	"github.com/flowgate/api/service"
	"github.com/flowgate/api/util"
	helper_util "github.com/flowgate/api/util/helper"
)

type ChatController struct {
	relayService   service.IRelayService
	sessionService service.ISessionService
}

func NewChatController(relayService service.IRelayService, sessionService service.ISessionService) *ChatController {
	return &ChatController{
		relayService:   relayService,
		sessionService: sessionService,
	}
}

// RegisterRoutes registers the API routes
func (cc *ChatController) RegisterRoutes(r gin.IRouter) {
	r.POST("/chatflows/:chatflowId/predict/stream", cc.PredictStream)
	sessions := r.Group("/sessions")
	{
		sessions.GET("", cc.ListSessions)
		sessions.GET("/:sessionId/messages", cc.GetHistory)
	}
}

type predictRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id"`
}

// PredictStream endpoint. The response is a server-sent event stream; errors
// before the first frame come back as JSON with a proper status, everything
// after that arrives as a terminal error frame inside the stream.
func (cc *ChatController) PredictStream(c *gin.Context) {
	chatflowID := c.Param("chatflowId")
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid predict request", echo_errors.ErrInvalidChatData)
		return
	}
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", echo_errors.ErrUnauthorized)
		return
	}

	streaming := false
	send := func(ev model.StreamEvent) error {
		if err := c.Request.Context().Err(); err != nil {
			return err
		}
		if !streaming {
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			c.Writer.Header().Set("Cache-Control", "no-cache")
			c.Writer.Header().Set("Connection", "keep-alive")
			streaming = true
		}
		c.SSEvent(string(ev.Kind), ev)
		c.Writer.Flush()
		return nil
	}

	_, err = cc.relayService.StreamTurn(c.Request.Context(), service.TurnRequest{
		UserID:     userID,
		ChatflowID: chatflowID,
		Question:   req.Question,
		SessionID:  req.SessionID,
	}, send)
	if err != nil {
		switch {
		case errors.Is(err, echo_errors.ErrInvalidChatData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid predict request", err)
		case errors.Is(err, echo_errors.ErrAccessDenied):
			util.RespondWithError(c, http.StatusForbidden, "No access to this chatflow", err)
		case errors.Is(err, echo_errors.ErrChatflowNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Chatflow not found", err)
		case errors.Is(err, echo_errors.ErrInsufficientCredits), errors.Is(err, echo_errors.ErrDeductionFailed):
			util.RespondWithError(c, http.StatusPaymentRequired, "Not enough credits for this chatflow", err)
		case errors.Is(err, echo_errors.ErrReservationConflict):
			util.RespondWithError(c, http.StatusConflict, "Another turn is already being charged", err)
		case errors.Is(err, echo_errors.ErrUpstreamFailure):
			util.RespondWithError(c, http.StatusBadGateway, "Execution engine unavailable", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to run prediction", err)
		}
		return
	}
}

// ListSessions endpoint
func (cc *ChatController) ListSessions(c *gin.Context) {
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", echo_errors.ErrUnauthorized)
		return
	}
	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	sessions, err := cc.sessionService.ListSessions(c, userID)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}

	if offset > len(sessions) {
		offset = len(sessions)
	}
	end := offset + limit
	if end > len(sessions) {
		end = len(sessions)
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions[offset:end], "total": len(sessions)})
}

// GetHistory endpoint
func (cc *ChatController) GetHistory(c *gin.Context) {
	sessionID := c.Param("sessionId")
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", echo_errors.ErrUnauthorized)
		return
	}

	messages, err := cc.sessionService.GetHistory(c, userID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, echo_errors.ErrSessionNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Session not found", err)
		case errors.Is(err, echo_errors.ErrSessionForbidden):
			util.RespondWithError(c, http.StatusForbidden, "Session does not belong to caller", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to load history", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "messages": messages})
}
