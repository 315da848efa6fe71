package utils

import (
	"github.com/gin-gonic/gin"
)

// JSONResponse sends the marketplace API's standard success envelope:
// status, message, and the listing/bid/settlement payload under "data".
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends the standard error envelope. The message is the
// client-safe summary; err carries the wrapped detail.
func JSONError(c *gin.Context, status int, err error, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"error":   err.Error(),
	})
}
