package response

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
)

const (
	CodeBadRequest          = 40000
	CodeNoFile              = 40001
	CodeUnauthorized        = 40100
	CodeInvalidCredentials  = 40101
	CodeForbidden           = 40300
	CodeDocumentNotFound    = 40401
	CodeRetrainInProgress   = 40901
	CodePayloadTooLarge     = 41300
	CodeUnsupportedMedia    = 41500
	CodeTooManyRequests     = 42900
	CodeInternalServer      = 50000
	CodeInitFailed          = 50001
	CodeUpstreamRejected    = 50200
	CodeUpstreamUnreachable = 50201
	CodeServiceUnavailable  = 50300
	CodeUpstreamTimeout     = 50400
)

// ErrorBody is the JSON error shape. The browser client reads "error" on the
// chat path and "message" on the admin path, so both carry the same text.
type ErrorBody struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
	Details json.RawMessage `json:"details,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, ErrorBody{
		Error:   message,
		Message: message,
		Code:    code,
	})
}

func ErrorWithDetails(c *gin.Context, httpStatus, code int, message string, details json.RawMessage) {
	c.JSON(httpStatus, ErrorBody{
		Error:   message,
		Message: message,
		Code:    code,
		Details: details,
	})
}

func Abort(c *gin.Context, httpStatus, code int, message string) {
	Error(c, httpStatus, code, message)
	c.Abort()
}
