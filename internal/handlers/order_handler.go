package handlers

import (
	"net/http"

	"freelance-market/internal/models"
	"freelance-market/internal/services"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// CreateCatalog lists a new catalog item
// POST /api/catalogs
func (h *OrderHandler) CreateCatalog(c *gin.Context) {
	sellerID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.CreateCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	catalog, err := h.orderService.CreateCatalog(c.Request.Context(), sellerID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": catalog})
}

// ListCatalogs lists active catalog items
// GET /api/catalogs
func (h *OrderHandler) ListCatalogs(c *gin.Context) {
	limit, offset := page(c)
	catalogs, total, err := h.orderService.ListCatalogs(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, catalogs, total, limit, offset)
}

// PlaceOrder buys a catalog item, paying its order fee
// POST /api/catalogs/:id/orders
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	buyerID, ok := requireUser(c)
	if !ok {
		return
	}
	catalogID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.PlaceOrder(c.Request.Context(), buyerID, catalogID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": order})
}

// ListMyOrders lists the caller's orders
// GET /api/orders/mine
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	buyerID, ok := requireUser(c)
	if !ok {
		return
	}

	limit, offset := page(c)
	orders, total, err := h.orderService.ListOrders(c.Request.Context(), buyerID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, orders, total, limit, offset)
}
