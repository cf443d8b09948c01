package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/logging"
)

// respond writes the {"status", "data"} envelope every endpoint uses.
func respond(c *gin.Context, code int, status string, data interface{}) {
	c.JSON(code, gin.H{"status": status, "data": data})
}

func notFound(c *gin.Context, what string) {
	respond(c, http.StatusNotFound, "error", what+" not found")
}

func forbidden(c *gin.Context) {
	respond(c, http.StatusForbidden, "forbidden", nil)
}

// internalError logs err with the request's logger and hides it from the client.
func internalError(c *gin.Context, msg string, err error) {
	logging.FromContext(c.Request.Context()).Error(msg, zap.Error(err))
	respond(c, http.StatusInternalServerError, "error", nil)
}
