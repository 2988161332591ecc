package handlers

import (
	"log"

	"apotek/internal/middleware"
	"apotek/internal/models"
	"apotek/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for the delivery-order lifecycle.
type OrderHandler struct {
	fulfillment *services.FulfillmentService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(fulfillment *services.FulfillmentService) *OrderHandler {
	return &OrderHandler{
		fulfillment: fulfillment,
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
// Riders claim and advance orders; everyone sees their own.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/available", middleware.RequireRole(models.RoleRider), h.HandleGetAvailableOrders)
	orderRoutes.Get("/user", h.HandleGetUserOrders)
	orderRoutes.Put("/:id/accept", middleware.RequireRole(models.RoleRider), h.HandleAcceptOrder)
	orderRoutes.Put("/:id/status", middleware.RequireRole(models.RoleRider), h.HandleUpdateOrderStatus)
}

// HandleGetAvailableOrders lists unassigned orders for the rider feed.
func (h *OrderHandler) HandleGetAvailableOrders(c *fiber.Ctx) error {
	orders, pagination, err := h.fulfillment.GetAvailableOrders(listParamsFrom(c))
	if err != nil {
		log.Printf("Error listing available orders: %v", err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"orders":     orders,
		"pagination": pagination,
	})
}

// HandleGetUserOrders lists the orders visible to the authenticated
// principal, scoped by role.
func (h *OrderHandler) HandleGetUserOrders(c *fiber.Ctx) error {
	principal := middleware.PrincipalFrom(c)
	orders, pagination, err := h.fulfillment.GetUserOrders(*principal, listParamsFrom(c))
	if err != nil {
		log.Printf("Error listing orders for %s %s: %v", principal.Role, principal.ID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"orders":     orders,
		"pagination": pagination,
	})
}

// HandleAcceptOrder claims a pending order for the acting rider.
func (h *OrderHandler) HandleAcceptOrder(c *fiber.Ctx) error {
	principal := middleware.PrincipalFrom(c)
	order, err := h.fulfillment.AcceptOrder(c.Params("id"), *principal)
	if err != nil {
		log.Printf("Error accepting order %s: %v", c.Params("id"), err)
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus advances the rider's order to a new delivery
// status.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body for status update",
			"error":   err.Error(),
		})
	}
	if body.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Status is required for order status update.",
		})
	}

	principal := middleware.PrincipalFrom(c)
	order, err := h.fulfillment.UpdateOrderStatus(c.Params("id"), *principal, body.Status)
	if err != nil {
		log.Printf("Error updating order status for order %s: %v", c.Params("id"), err)
		return respondError(c, err)
	}
	return c.JSON(order)
}
