package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func errorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

func badRequest(c *gin.Context, message string) {
	errorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func notFound(c *gin.Context, message string) {
	errorResponse(c, http.StatusNotFound, "NOT_FOUND", message)
}

func internalError(c *gin.Context, message string) {
	errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
