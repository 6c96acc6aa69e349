package handlers

import (
	"fmt"
	"log"

	"digistore/internal/middleware"
	"digistore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ReviewHandler handles HTTP requests for product reviews.
type ReviewHandler struct {
	service  *services.ReviewService
	validate *validator.Validate
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(service *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterPublicRoutes registers the read-only review routes.
func (h *ReviewHandler) RegisterPublicRoutes(router fiber.Router) {
	router.Get("/products/:id/reviews", h.HandleListProductReviews)
}

// RegisterRoutes registers the authenticated review routes.
func (h *ReviewHandler) RegisterRoutes(router fiber.Router) {
	reviewRoutes := router.Group("/reviews")
	reviewRoutes.Post("/", h.HandleCreateReview)
	reviewRoutes.Get("/", h.HandleListMyReviews)
	reviewRoutes.Put("/:id", h.HandleUpdateReview)
	reviewRoutes.Delete("/:id", h.HandleDeleteReview)
}

// RegisterAdminRoutes registers the moderation routes.
func (h *ReviewHandler) RegisterAdminRoutes(router fiber.Router) {
	reviewRoutes := router.Group("/reviews")
	reviewRoutes.Put("/:id/approval", h.HandleSetApproval)
	reviewRoutes.Delete("/:id", h.HandleRemoveReview)
}

// reviewRequest is the body of a review creation or update.
type reviewRequest struct {
	ProductID string `json:"product_id"`
	Rating    int    `json:"rating" validate:"required,gte=1,lte=5"`
	Title     string `json:"title" validate:"omitempty,max=150"`
	Comment   string `json:"comment" validate:"omitempty,max=2000"`
}

// HandleListProductReviews returns the approved reviews for a product.
func (h *ReviewHandler) HandleListProductReviews(c *fiber.Ctx) error {
	productID := c.Params("id")
	reviews, err := h.service.ListProductReviews(productID)
	if err != nil {
		log.Printf("Error listing reviews for product %s: %v", productID, err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not retrieve reviews",
			"error":   err.Error(),
		})
	}
	return c.JSON(reviews)
}

// HandleCreateReview creates a review authored by the caller.
func (h *ReviewHandler) HandleCreateReview(c *fiber.Ctx) error {
	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing review request body: %v", err)
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

	review, err := h.service.CreateReview(middleware.UserID(c), req.ProductID, req.Rating, req.Title, req.Comment)
	if err != nil {
		log.Printf("Error creating review: %v", err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not create review",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}

// HandleListMyReviews returns the caller's reviews.
func (h *ReviewHandler) HandleListMyReviews(c *fiber.Ctx) error {
	reviews, err := h.service.ListUserReviews(middleware.UserID(c))
	if err != nil {
		log.Printf("Error listing reviews: %v", err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not retrieve reviews",
			"error":   err.Error(),
		})
	}
	return c.JSON(reviews)
}

// HandleUpdateReview revises one of the caller's reviews.
func (h *ReviewHandler) HandleUpdateReview(c *fiber.Ctx) error {
	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing review request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	reviewID := c.Params("id")
	review, err := h.service.UpdateReview(reviewID, middleware.UserID(c), req.Rating, req.Title, req.Comment)
	if err != nil {
		log.Printf("Error updating review %s: %v", reviewID, err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not update review",
			"error":   err.Error(),
		})
	}
	return c.JSON(review)
}

// HandleDeleteReview removes one of the caller's reviews.
func (h *ReviewHandler) HandleDeleteReview(c *fiber.Ctx) error {
	reviewID := c.Params("id")
	if err := h.service.DeleteReview(reviewID, middleware.UserID(c)); err != nil {
		log.Printf("Error deleting review %s: %v", reviewID, err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not delete review",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": "Review deleted successfully",
	})
}

// HandleSetApproval flips a review's moderation switch (admin).
func (h *ReviewHandler) HandleSetApproval(c *fiber.Ctx) error {
	var req struct {
		Approved bool `json:"approved"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	reviewID := c.Params("id")
	review, err := h.service.SetApproval(reviewID, req.Approved)
	if err != nil {
		log.Printf("Error moderating review %s: %v", reviewID, err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not moderate review",
			"error":   err.Error(),
		})
	}
	return c.JSON(review)
}

// HandleRemoveReview deletes any review (admin).
func (h *ReviewHandler) HandleRemoveReview(c *fiber.Ctx) error {
	reviewID := c.Params("id")
	if err := h.service.RemoveReview(reviewID); err != nil {
		log.Printf("Error removing review %s: %v", reviewID, err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not remove review",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": "Review removed successfully",
	})
}
