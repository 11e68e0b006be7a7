package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/app"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/platform/logger"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AdminAuthService
	log         *logger.Logger
}

type TokenRequest struct {
	Password string `json:"password" binding:"required,max=128"`
}

func NewAuthHandler(authService *app.AdminAuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	token, err := h.authService.IssueToken(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "password is required")
		case errors.Is(err, app.ErrInvalidCredential):
			h.log.Warn("admin login rejected", "client_ip", c.ClientIP())
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
		default:
			h.log.Error("issue admin token failed", "err", err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "issue token failed")
		}
		return
	}

	response.OK(c, token)
}
