package catalogue

import (
	"fmt"

	"catalogue-order/logger"
	catalogueService "catalogue-order/services/catalogue"
	"catalogue-order/types"

	"github.com/gofiber/fiber/v2"
)

// CatalogueController serves the category list and per-category product
// pages. Reads go through the loader, so repeated requests hit the cache.
type CatalogueController struct {
	loader catalogueService.Loader
}

// NewCatalogueController creates a new catalogue controller
func NewCatalogueController(loader catalogueService.Loader) *CatalogueController {
	return &CatalogueController{loader: loader}
}

// ListCategories returns the category summaries. The loader falls back to
// the bundled sample catalogue, so this endpoint does not fail outright.
func (h *CatalogueController) ListCategories(c *fiber.Ctx) error {
	categories, err := h.loader.ListCategories(c.Context())
	if err != nil {
		logger.Error("Failed to load categories", err)
		return c.Status(fiber.StatusBadGateway).JSON(types.Err(fiber.StatusBadGateway, "Categories are unavailable right now"))
	}

	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Categories", fiber.Map{
		"categories": categories,
	}))
}

// ListProducts returns one category's products. A failure here is scoped to
// the requested category; other categories keep working.
func (h *CatalogueController) ListProducts(c *fiber.Ctx) error {
	categoryID := c.Params("id")
	if categoryID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, "Category id is required"))
	}

	products, err := h.loader.ListProducts(c.Context(), categoryID)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to load products for category %s", categoryID), err)
		return c.Status(fiber.StatusBadGateway).JSON(types.Err(fiber.StatusBadGateway,
			fmt.Sprintf("Products for category %s are unavailable right now", categoryID)))
	}

	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Products", fiber.Map{
		"categoryId": categoryID,
		"products":   products,
	}))
}
