package handlers

import (
	"io"

	"huduma-svc/models"
	"huduma-svc/notify"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type EventsHandler struct {
	hub    *notify.Hub
	logger *zap.Logger
}

func NewEventsHandler(hub *notify.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{hub: hub, logger: logger}
}

// Stream pushes entity change events to the client over server-sent events
// until it disconnects. Subscriptions are scoped to the authenticated user;
// admins receive everything.
func (h *EventsHandler) Stream(c *gin.Context) {
	userID, role := currentUser(c)

	sub := h.hub.Subscribe(userID, role == models.RoleAdmin)
	defer h.hub.Unsubscribe(sub)

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case evt, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(string(evt.Kind), evt)
			return true
		}
	})
}
