package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-paypal-proxy/core"
)

// respondError translates a service error into the wire envelope. Rich
// errors carry their own HTTP status; anything else is an internal error
// with the detail kept out of the response.
func respondError(c *gin.Context, err error) {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		status := richErr.Code
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   richErr.TextCode,
			"message": richErr.Message,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   core.ProxyErrorInternal,
		"message": "An unexpected error occurred",
	})
}
