package handlers

import (
	"log"

	"digistore/internal/middleware"
	"digistore/internal/services"

	"github.com/gofiber/fiber/v2"
)

// LicenseHandler exposes the caller's licenses.
type LicenseHandler struct {
	service *services.EntitlementService
}

// NewLicenseHandler creates a new LicenseHandler.
func NewLicenseHandler(service *services.EntitlementService) *LicenseHandler {
	return &LicenseHandler{
		service: service,
	}
}

// RegisterRoutes registers the authenticated license routes.
func (h *LicenseHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/licenses", h.HandleListLicenses)
}

// HandleListLicenses returns the caller's licenses.
func (h *LicenseHandler) HandleListLicenses(c *fiber.Ctx) error {
	licenses, err := h.service.ListUserLicenses(middleware.UserID(c))
	if err != nil {
		log.Printf("Error listing licenses: %v", err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not retrieve licenses",
			"error":   err.Error(),
		})
	}
	return c.JSON(licenses)
}
