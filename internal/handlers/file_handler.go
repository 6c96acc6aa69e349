package handlers

import (
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"digistore/pkg/storage"

	"github.com/gofiber/fiber/v2"
)

// FileHandler serves the objects that signed URLs point at. It verifies the
// URL's expiry and HMAC before streaming the file, so possession of a valid
// signed URL is the only credential needed.
type FileHandler struct {
	signer *storage.Signer
	root   string // filesystem directory holding the buckets
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(signer *storage.Signer, root string) *FileHandler {
	return &FileHandler{
		signer: signer,
		root:   root,
	}
}

// RegisterRoutes registers the signed-object route.
func (h *FileHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/files/*", h.HandleGetFile)
}

// HandleGetFile verifies the signed URL and streams the object.
func (h *FileHandler) HandleGetFile(c *fiber.Ctx) error {
	object := c.Params("*")
	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Malformed signed URL",
		})
	}

	if err := h.signer.Verify(object, expires, c.Query("sig")); err != nil {
		log.Printf("Signed URL rejected for %s: %v", object, err)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Signed URL is invalid or expired",
		})
	}

	// The object path came out of a verified signature, but keep it inside
	// the storage root regardless.
	clean := filepath.Clean(object)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Malformed object path",
		})
	}

	return c.SendFile(filepath.Join(h.root, clean))
}
