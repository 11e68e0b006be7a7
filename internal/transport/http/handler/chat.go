package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/app"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/logger"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/transport/http/response"
)

const (
	msgChatFieldsRequired = "Both 'message' and 'sender' are required."
	msgChatTimeout        = "AI service connection timed out. It might be retraining or under heavy load."
	msgChatRejected       = "AI service error"
	msgChatUnreachable    = "Sorry, I'm having trouble connecting to my brain (the AI service)."

	// Nobody reads it; it only marks abandoned requests in the access log.
	statusClientClosedRequest = 499
)

type ChatRelayer interface {
	Relay(ctx context.Context, input app.ChatInput) ([]model.ReplyUnit, error)
}

type ChatHandler struct {
	relay ChatRelayer
	log   *logger.Logger
}

type ChatRequest struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

func NewChatHandler(relay ChatRelayer, log *logger.Logger) *ChatHandler {
	return &ChatHandler{relay: relay, log: log}
}

func (h *ChatHandler) Send(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isBodyTooLarge(err) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, "Request body is too large.")
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, msgChatFieldsRequired)
		return
	}

	units, err := h.relay.Relay(c.Request.Context(), app.ChatInput{
		Sender:  req.Sender,
		Message: req.Message,
	})
	if err != nil {
		var rejected *app.UpstreamRejectedError
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, msgChatFieldsRequired)
		case errors.Is(err, app.ErrClientGone):
			h.log.Info("chat client disconnected", "sender", req.Sender)
			c.AbortWithStatus(statusClientClosedRequest)
		case errors.Is(err, app.ErrUpstreamTimeout):
			h.log.Warn("chat upstream timed out", "sender", req.Sender, "err", err)
			response.Error(c, http.StatusGatewayTimeout, response.CodeUpstreamTimeout, msgChatTimeout)
		case errors.As(err, &rejected):
			h.log.Warn("chat upstream rejected", "sender", req.Sender, "status", rejected.StatusCode)
			response.ErrorWithDetails(c, rejected.StatusCode, response.CodeUpstreamRejected, msgChatRejected, rejected.Details)
		default:
			h.log.Error("chat upstream unreachable", "sender", req.Sender, "err", err)
			response.Error(c, http.StatusBadGateway, response.CodeUpstreamUnreachable, msgChatUnreachable)
		}
		return
	}

	response.OK(c, units)
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
