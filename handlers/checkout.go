package handlers

import (
	"context"
	"net/http"

	"huduma-svc/checkout"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// Checkouter is the slice of the orchestrator the handler needs.
type Checkouter interface {
	Checkout(ctx context.Context, userID int, phone string) (*checkout.PaymentHandle, error)
}

type CheckoutHandler struct {
	orchestrator Checkouter
	logger       *zap.Logger
}

func NewCheckoutHandler(orchestrator Checkouter, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{orchestrator: orchestrator, logger: logger}
}

// Checkout initiates a push payment for everything in the caller's cart and
// converts it into orders. Failures carry a code the client uses to decide
// whether retrying is safe; payment_in_flight=true means it is not.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	userID, _ := currentUser(c)

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handle, err := h.orchestrator.Checkout(c.Request.Context(), userID, req.PhoneNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, handle)
}
