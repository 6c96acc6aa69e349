package handlers

import (
	"log"

	"digistore/internal/middleware"
	"digistore/internal/services"

	"github.com/gofiber/fiber/v2"
)

// DownloadHandler handles HTTP requests for download grant redemption and the
// caller's download history.
type DownloadHandler struct {
	service *services.DownloadService
}

// NewDownloadHandler creates a new DownloadHandler.
func NewDownloadHandler(service *services.DownloadService) *DownloadHandler {
	return &DownloadHandler{
		service: service,
	}
}

// RegisterRoutes registers authenticated download routes.
func (h *DownloadHandler) RegisterRoutes(router fiber.Router) {
	downloadRoutes := router.Group("/downloads")
	downloadRoutes.Get("/", h.HandleListDownloads)
	downloadRoutes.Get("/stats", h.HandleDownloadStats)
}

// RegisterPublicRoutes registers the redemption endpoint. The token itself is
// the credential - it reaches the user out of band (purchase email), so the
// route carries no JWT requirement.
func (h *DownloadHandler) RegisterPublicRoutes(router fiber.Router) {
	router.Post("/downloads/redeem/:token", h.HandleRedeem)
}

// HandleRedeem exchanges a download token for a short-lived signed file URL.
// Expired and already-used tokens get distinct messages so the user knows to
// re-request a link rather than retry the same one.
func (h *DownloadHandler) HandleRedeem(c *fiber.Ctx) error {
	tok := c.Params("token")
	url, err := h.service.Redeem(tok, c.IP(), c.Get("User-Agent"))
	if err != nil {
		log.Printf("Download redemption failed: %v", err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": redemptionMessage(err),
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"url": url,
	})
}

func redemptionMessage(err error) string {
	switch errorStatus(err) {
	case fiber.StatusNotFound:
		return "Unknown download link"
	case fiber.StatusGone:
		return "This download link has expired or was already used; request a new one from your orders page"
	default:
		return "Could not process download"
	}
}

// HandleListDownloads returns the caller's download grants.
func (h *DownloadHandler) HandleListDownloads(c *fiber.Ctx) error {
	grants, err := h.service.ListUserDownloads(middleware.UserID(c))
	if err != nil {
		log.Printf("Error listing downloads: %v", err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not retrieve downloads",
			"error":   err.Error(),
		})
	}
	return c.JSON(grants)
}

// HandleDownloadStats summarizes the caller's grants.
func (h *DownloadHandler) HandleDownloadStats(c *fiber.Ctx) error {
	stats, err := h.service.UserDownloadStats(middleware.UserID(c))
	if err != nil {
		log.Printf("Error computing download stats: %v", err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Could not retrieve download stats",
			"error":   err.Error(),
		})
	}
	return c.JSON(stats)
}
