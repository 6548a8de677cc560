package httptransport

import "github.com/gin-gonic/gin"

// RespondError writes the flat error shape callers of the API expect.
func RespondError(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message})
}

// RespondResult wraps a successful analysis result.
func RespondResult(c *gin.Context, httpStatus int, result interface{}) {
	c.JSON(httpStatus, gin.H{"ok": true, "result": result})
}
