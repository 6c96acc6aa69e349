package handlers

import (
	"log"

	"digistore/internal/middleware"
	"digistore/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SubscriptionHandler handles HTTP requests for subscription plans and the
// caller's subscription.
type SubscriptionHandler struct {
	service *services.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(service *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
	}
}

// RegisterRoutes registers the authenticated subscription routes.
func (h *SubscriptionHandler) RegisterRoutes(router fiber.Router) {
	subRoutes := router.Group("/subscriptions")
	subRoutes.Get("/plans", h.HandleListPlans)
	subRoutes.Get("/me", h.HandleGetMySubscription)
	subRoutes.Post("/", h.HandleSubscribe)
	subRoutes.Post("/:id/cancel", h.HandleCancel)
}

// HandleListPlans returns all active subscription plans.
func (h *SubscriptionHandler) HandleListPlans(c *fiber.Ctx) error {
	plans, err := h.service.ListPlans()
	if err != nil {
		log.Printf("Error listing plans: %v", err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not retrieve plans",
			"error":   err.Error(),
		})
	}
	return c.JSON(plans)
}

// HandleGetMySubscription returns the caller's active subscription.
func (h *SubscriptionHandler) HandleGetMySubscription(c *fiber.Ctx) error {
	sub, err := h.service.GetUserSubscription(middleware.UserID(c))
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "No active subscription",
			"error":   err.Error(),
		})
	}
	return c.JSON(sub)
}

// HandleSubscribe creates a subscription for the caller.
func (h *SubscriptionHandler) HandleSubscribe(c *fiber.Ctx) error {
	var req struct {
		PlanID      string `json:"plan_id"`
		ExternalRef string `json:"external_ref"`
	}
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing subscribe request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.PlanID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "plan_id is required",
		})
	}

	sub, err := h.service.Subscribe(middleware.UserID(c), req.PlanID, req.ExternalRef)
	if err != nil {
		log.Printf("Error creating subscription: %v", err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not create subscription",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// HandleCancel cancels one of the caller's subscriptions.
func (h *SubscriptionHandler) HandleCancel(c *fiber.Ctx) error {
	subID := c.Params("id")
	if err := h.service.Cancel(subID, middleware.UserID(c)); err != nil {
		log.Printf("Error cancelling subscription %s: %v", subID, err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not cancel subscription",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": "Subscription cancelled",
	})
}
