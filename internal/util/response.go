package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Business error codes carried next to the HTTP status.
const (
	CodeOK           = 0
	CodeInvalidState = 40901
	CodeConflict     = 40902
	CodeNotFound     = 40401
	CodeValidation   = 42201
	CodeServerErr    = 50001
)

// Success writes a plain 200 with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error writes the unified failure envelope.
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"success": false,
		"code":    code,
		"message": msg,
	})
}
