package handlers

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"strconv"

	"apotek/internal/middleware"
	"apotek/internal/models"
	"apotek/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for a pharmacy's inventory.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
// Only a pharmacy can manage products.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products", middleware.RequireRole(models.RolePharmacy))
	productRoutes.Get("/", h.HandleGetInventory)
	productRoutes.Post("/", h.HandleAddProduct)
	productRoutes.Get("/:id", h.HandleGetProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// HandleGetInventory lists the acting pharmacy's products.
func (h *ProductHandler) HandleGetInventory(c *fiber.Ctx) error {
	principal := middleware.PrincipalFrom(c)
	products, pagination, err := h.service.ListInventory(principal.ID, listParamsFrom(c))
	if err != nil {
		log.Printf("Error listing inventory for pharmacy %s: %v", principal.ID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"products":   products,
		"pagination": pagination,
	})
}

// HandleGetProduct returns one of the acting pharmacy's products.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	principal := middleware.PrincipalFrom(c)
	product, err := h.service.GetProduct(c.Params("id"), principal.ID)
	if err != nil {
		log.Printf("Error getting product %s: %v", c.Params("id"), err)
		return respondError(c, err)
	}
	return c.JSON(product)
}

// HandleAddProduct creates a product from a multipart form with an optional
// image file.
func (h *ProductHandler) HandleAddProduct(c *fiber.Ctx) error {
	input, err := h.parseProductInput(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}

	image, imageName, closeImage := h.openImage(c)
	defer closeImage()

	principal := middleware.PrincipalFrom(c)
	product, err := h.service.AddProduct(c.UserContext(), principal.ID, *input, image, imageName)
	if err != nil {
		log.Printf("Error adding product: %v", err)
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct applies a partial edit with an optional replacement
// image.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	update, err := h.parseProductUpdate(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}
	if err := h.validate.Struct(update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}

	image, imageName, closeImage := h.openImage(c)
	defer closeImage()

	principal := middleware.PrincipalFrom(c)
	product, err := h.service.UpdateProduct(c.UserContext(), principal.ID, c.Params("id"), *update, image, imageName)
	if err != nil {
		log.Printf("Error updating product %s: %v", c.Params("id"), err)
		return respondError(c, err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct removes one of the pharmacy's products.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	principal := middleware.PrincipalFrom(c)
	if err := h.service.DeleteProduct(c.UserContext(), principal.ID, c.Params("id")); err != nil {
		log.Printf("Error deleting product %s: %v", c.Params("id"), err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Product deleted successfully",
	})
}

func (h *ProductHandler) parseProductInput(c *fiber.Ctx) (*services.ProductInput, error) {
	name := c.FormValue("name")
	description := c.FormValue("description")
	category := c.FormValue("category")
	priceRaw := c.FormValue("price")
	quantityRaw := c.FormValue("quantity")

	if name == "" || category == "" || priceRaw == "" || quantityRaw == "" {
		return nil, fmt.Errorf("missing required fields: name, category, price, quantity")
	}
	price, err := strconv.ParseFloat(priceRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number format for price")
	}
	quantity, err := strconv.Atoi(quantityRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid number format for quantity")
	}

	return &services.ProductInput{
		Name:        name,
		Description: description,
		Category:    category,
		Price:       price,
		Quantity:    quantity,
	}, nil
}

func (h *ProductHandler) parseProductUpdate(c *fiber.Ctx) (*services.ProductUpdate, error) {
	update := &services.ProductUpdate{}
	if v := c.FormValue("name"); v != "" {
		update.Name = &v
	}
	if v := c.FormValue("description"); v != "" {
		update.Description = &v
	}
	if v := c.FormValue("category"); v != "" {
		update.Category = &v
	}
	if v := c.FormValue("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number format for price")
		}
		update.Price = &price
	}
	if v := c.FormValue("quantity"); v != "" {
		quantity, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid number format for quantity")
		}
		update.Quantity = &quantity
	}
	return update, nil
}

// openImage returns the optional multipart image file. The returned cleanup
// is always safe to defer.
func (h *ProductHandler) openImage(c *fiber.Ctx) (io.Reader, string, func()) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return nil, "", func() {}
	}
	return h.openHeader(fileHeader)
}

func (h *ProductHandler) openHeader(fileHeader *multipart.FileHeader) (io.Reader, string, func()) {
	file, err := fileHeader.Open()
	if err != nil {
		log.Printf("Failed to open uploaded file %s: %v", fileHeader.Filename, err)
		return nil, "", func() {}
	}
	return file, fileHeader.Filename, func() { file.Close() }
}
