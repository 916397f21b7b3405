package handlers

import (
	"net/http"
	"strconv"

	"huduma-svc/apperr"
	"huduma-svc/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps domain errors to HTTP responses. Unknown errors become
// an opaque 500; their detail goes to the log, not the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	if code := apperr.CodeOf(err); code != "" {
		body := gin.H{"error": err.Error(), "code": string(code)}
		if apperr.IsPaymentInFlight(err) {
			body["payment_in_flight"] = true
		}
		c.JSON(apperr.HTTPStatus(err), body)
		return
	}

	logger.Error("Internal error",
		zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func currentUser(c *gin.Context) (int, string) {
	return c.GetInt(middleware.ContextUserID), c.GetString(middleware.ContextRole)
}

func pagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "10"))
	return page, perPage
}
