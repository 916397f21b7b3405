package handlers

import (
	"net/http"
	"strconv"

	"huduma-svc/models"
	"huduma-svc/orders"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	registry *orders.Registry
	logger   *zap.Logger
}

func NewOrderHandler(registry *orders.Registry, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{registry: registry, logger: logger}
}

// GetOrders lists orders: admins see every user's, everyone else their own.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	userID, role := currentUser(c)
	page, perPage := pagination(c)

	var (
		result []models.OrderWithService
		total  int
		err    error
	)
	if role == models.RoleAdmin {
		result, total, err = h.registry.ListAll(c.Request.Context(), page, perPage)
	} else {
		result, total, err = h.registry.ListByUser(c.Request.Context(), userID, page, perPage)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": result, "total": total})
}

func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	userID, _ := currentUser(c)
	page, perPage := pagination(c)

	result, total, err := h.registry.ListByUser(c.Request.Context(), userID, page, perPage)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": result, "total": total})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, role := currentUser(c)

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := h.registry.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if role != models.RoleAdmin && order.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus is the admin lane of the state machine, payment
// confirmation included.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	_, role := currentUser(c)

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, ok := models.ParseOrderStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + req.Status})
		return
	}

	order, err := h.registry.UpdateStatus(c.Request.Context(), orderID, status, role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated successfully", "order": order})
}
