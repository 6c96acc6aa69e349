package handlers

import (
	"fmt"
	"log"

	"digistore/internal/middleware"
	"digistore/internal/models"
	"digistore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for the order ledger.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the customer-facing order routes.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCheckout)
	orderRoutes.Get("/", h.HandleListOrders)
	orderRoutes.Get("/:id", h.HandleGetOrder)
}

// RegisterAdminRoutes registers the admin order routes (refunds, issuance
// re-triggers, full ledger view).
func (h *OrderHandler) RegisterAdminRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetAllOrders)
	orderRoutes.Post("/:id/refund", h.HandleRefund)
	orderRoutes.Post("/:id/reissue", h.HandleReissueEntitlements)
}

// checkoutRequest is the body of a checkout submission.
type checkoutRequest struct {
	Items          []models.CartLine `json:"items" validate:"required,min=1,dive"`
	BillingAddress string            `json:"billing_address"`
}

// HandleCheckout creates a pending order from the caller's cart.
func (h *OrderHandler) HandleCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing checkout request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}

	order, err := h.service.CreateOrder(middleware.UserID(c), req.Items, req.BillingAddress)
	if err != nil {
		log.Printf("Error creating order: %v", err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not create order",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleListOrders returns the caller's orders with their line items.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrdersByUser(middleware.UserID(c))
	if err != nil {
		log.Printf("Error listing orders: %v", err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}
	return c.JSON(orders)
}

// HandleGetOrder returns one of the caller's orders.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrderForUser(orderID, middleware.UserID(c))
	if err != nil {
		log.Printf("Error getting order %s: %v", orderID, err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not retrieve order",
			"error":   err.Error(),
		})
	}
	return c.JSON(order)
}

// HandleGetAllOrders returns the whole ledger (admin).
func (h *OrderHandler) HandleGetAllOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAllOrders()
	if err != nil {
		log.Printf("Error getting all orders: %v", err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}
	return c.JSON(orders)
}

// HandleRefund moves a completed order to refunded (admin).
func (h *OrderHandler) HandleRefund(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.TransitionStatus(orderID, models.OrderStatusRefunded, "")
	if err != nil {
		log.Printf("Error refunding order %s: %v", orderID, err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not refund order",
			"error":   err.Error(),
		})
	}
	return c.JSON(order)
}

// HandleReissueEntitlements re-runs entitlement issuance for a completed order
// whose issuance previously failed (admin).
func (h *OrderHandler) HandleReissueEntitlements(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if err := h.service.RetryEntitlements(orderID); err != nil {
		log.Printf("Error reissuing entitlements for order %s: %v", orderID, err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not reissue entitlements",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Entitlements issued for order %s", orderID),
	})
}
