package handlers

import (
	"net/http"

	"huduma-svc/catalog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ServiceHandler struct {
	catalog *catalog.Store
	logger  *zap.Logger
}

func NewServiceHandler(cat *catalog.Store, logger *zap.Logger) *ServiceHandler {
	return &ServiceHandler{catalog: cat, logger: logger}
}

func (h *ServiceHandler) GetServicesByCategory(c *gin.Context) {
	category := c.Param("category")
	page, perPage := pagination(c)

	services, total, err := h.catalog.ListByCategory(c.Request.Context(), category, page, perPage)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"services": services,
		"total":    total,
	})
}
