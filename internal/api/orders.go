package api

import (
	"net/http"
	"strings"

	"shop-service/internal/models"
	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHeader ties an order to an anonymous browsing session
const SessionHeader = "X-Session-ID"

type orderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"required,min=1,max=100"`
}

type createOrderRequest struct {
	CustomerName     string             `json:"customer_name" binding:"required,min=2,max=50"`
	CustomerSurname  string             `json:"customer_surname" binding:"required,min=2,max=50"`
	CustomerEmail    string             `json:"customer_email" binding:"required,email"`
	CustomerPhone    string             `json:"customer_phone" binding:"required,phone"`
	DeliveryCountry  string             `json:"delivery_country" binding:"required,min=2,max=50"`
	DeliveryCity     string             `json:"delivery_city" binding:"required,min=2,max=50"`
	DeliveryStreet   string             `json:"delivery_street" binding:"required,min=2,max=100"`
	DeliveryBuilding string             `json:"delivery_building" binding:"required,min=1,max=20"`
	Items            []orderItemRequest `json:"items" binding:"required,min=1,dive"`
}

func (r *createOrderRequest) toService(sessionID string) *service.CreateOrderRequest {
	items := make([]models.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, models.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	req := &service.CreateOrderRequest{
		Customer: models.CustomerInfo{
			Name:    r.CustomerName,
			Surname: r.CustomerSurname,
			Email:   r.CustomerEmail,
			Phone:   r.CustomerPhone,
		},
		Delivery: models.DeliveryInfo{
			Country:  r.DeliveryCountry,
			City:     r.DeliveryCity,
			Street:   r.DeliveryStreet,
			Building: r.DeliveryBuilding,
		},
		Items: items,
	}
	if sessionID != "" {
		req.SessionID = &sessionID
	}
	return req
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	sessionID := strings.TrimSpace(c.GetHeader(SessionHeader))
	order, err := h.orders.CreateOrder(c.Request.Context(), req.toService(sessionID))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// getOrder handles getting an order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// listOrders handles order listing, optionally filtered by ?status=
func (h *Handler) listOrders(c *gin.Context) {
	skip, limit, ok := pageQuery(c)
	if !ok {
		return
	}

	filter := models.OrderFilter{Offset: skip, Limit: limit}
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			h.writeError(c, err)
			return
		}
		filter.Status = &status
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// updateOrderStatus takes the new status from the body or ?new_status=
func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	raw := c.Query("new_status")
	if raw == "" {
		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		raw = req.Status
	}

	status, err := models.ParseOrderStatus(raw)
	if err != nil {
		h.writeError(c, err)
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// deleteOrder handles order removal
func (h *Handler) deleteOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
