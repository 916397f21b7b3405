package handlers

import (
	"net/http"
	"strconv"

	"huduma-svc/cart"
	"huduma-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CartHandler struct {
	cart   *cart.Manager
	logger *zap.Logger
}

func NewCartHandler(cartMgr *cart.Manager, logger *zap.Logger) *CartHandler {
	return &CartHandler{cart: cartMgr, logger: logger}
}

func (h *CartHandler) AddToCart(c *gin.Context) {
	userID, _ := currentUser(c)

	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	line, err := h.cart.Add(c.Request.Context(), userID, req.ServiceID, req.Quantity, req.Location)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Item added to cart", "cart_item": line})
}

func (h *CartHandler) GetCart(c *gin.Context) {
	userID, _ := currentUser(c)

	lines, err := h.cart.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cart": lines})
}

func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	userID, _ := currentUser(c)

	lineID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart item ID"})
		return
	}

	if err := h.cart.Remove(c.Request.Context(), userID, lineID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}
