package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/transport/http/response"
)

// Degraded answers every request for a component that failed to start, so
// the rest of the gateway keeps serving.
func Degraded(component string) gin.HandlerFunc {
	message := fmt.Sprintf("Server Initialization Failed: %s handler unavailable.", component)
	return func(c *gin.Context) {
		response.Abort(c, http.StatusInternalServerError, response.CodeInitFailed, message)
	}
}
