package handlers

import (
	"log"
	"strconv"

	"apotek/internal/apperrors"
	"apotek/internal/middleware"
	"apotek/internal/models"
	"apotek/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Maximum photos accepted on a single photo-request submission.
const maxRequestPhotos = 5

// RequestHandler handles HTTP requests for the drug-request pipeline:
// clinic submission, pharmacy review, and photo retrieval.
type RequestHandler struct {
	service     *services.RequestService
	fulfillment *services.FulfillmentService
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(service *services.RequestService, fulfillment *services.FulfillmentService) *RequestHandler {
	return &RequestHandler{
		service:     service,
		fulfillment: fulfillment,
	}
}

// RegisterRoutes registers the request routes with the Fiber app.
func (h *RequestHandler) RegisterRoutes(router fiber.Router) {
	requestRoutes := router.Group("/requests")

	// Clinic can submit requests and review its own
	requestRoutes.Post("/photo", middleware.RequireRole(models.RoleClinic), h.HandleSubmitPhotoRequest)
	requestRoutes.Post("/inventory", middleware.RequireRole(models.RoleClinic), h.HandleSubmitInventoryRequest)
	requestRoutes.Get("/user", middleware.RequireRole(models.RoleClinic), h.HandleGetUserRequests)
	requestRoutes.Get("/clinic/history", middleware.RequireRole(models.RoleClinic), h.HandleGetClinicHistory)

	// Pharmacy reviews the pending queue and confirms/rejects/amends
	requestRoutes.Get("/pending", middleware.RequireRole(models.RolePharmacy), h.HandleGetPendingRequests)
	requestRoutes.Put("/:id/confirm", middleware.RequireRole(models.RolePharmacy), h.HandleConfirmRequest)
	requestRoutes.Put("/:id/reject", middleware.RequireRole(models.RolePharmacy), h.HandleRejectRequest)
	requestRoutes.Patch("/:id/add-items", middleware.RequireRole(models.RolePharmacy), h.HandleAddItems)

	// Photo retrieval
	requestRoutes.Get("/:id/download-photo/:index", middleware.RequireRole(models.RolePharmacy), h.HandleDownloadPhoto)
	requestRoutes.Get("/:id/download-all-photos", middleware.RequireRole(models.RolePharmacy), h.HandleDownloadAllPhotos)
}

// HandleSubmitPhotoRequest accepts a multipart form with up to five photos.
func (h *RequestHandler) HandleSubmitPhotoRequest(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid multipart form",
			"error":   err.Error(),
		})
	}

	fileHeaders := form.File["photos"]
	if len(fileHeaders) > maxRequestPhotos {
		return respondError(c, apperrors.NewValidation(
			"a maximum of %d photos is allowed per request", maxRequestPhotos))
	}

	var files []services.PhotoFile
	var closers []func() error
	defer func() {
		for _, closeFile := range closers {
			closeFile()
		}
	}()
	for _, fileHeader := range fileHeaders {
		file, err := fileHeader.Open()
		if err != nil {
			log.Printf("Failed to open uploaded photo %s: %v", fileHeader.Filename, err)
			continue
		}
		closers = append(closers, file.Close)
		files = append(files, services.PhotoFile{Name: fileHeader.Filename, Reader: file})
	}

	principal := middleware.PrincipalFrom(c)
	request, err := h.service.SubmitPhotoRequest(
		c.UserContext(), *principal, files,
		c.FormValue("deliveryAddress"), c.FormValue("patientInfo"),
	)
	if err != nil {
		log.Printf("Error submitting photo request: %v", err)
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(request)
}

// inventoryRequestBody is the JSON payload for an inventory submission.
type inventoryRequestBody struct {
	SelectedProducts []models.RequestItem `json:"selected_products"`
	DeliveryAddress  string               `json:"delivery_address"`
	PatientInfo      string               `json:"patient_info"`
}

// HandleSubmitInventoryRequest creates a request from selected products.
func (h *RequestHandler) HandleSubmitInventoryRequest(c *fiber.Ctx) error {
	var body inventoryRequestBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	principal := middleware.PrincipalFrom(c)
	request, err := h.service.SubmitInventoryRequest(
		*principal, body.SelectedProducts, body.DeliveryAddress, body.PatientInfo,
	)
	if err != nil {
		log.Printf("Error submitting inventory request: %v", err)
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(request)
}

// HandleGetUserRequests lists the clinic's own requests.
func (h *RequestHandler) HandleGetUserRequests(c *fiber.Ctx) error {
	principal := middleware.PrincipalFrom(c)
	requests, pagination, err := h.service.GetClinicRequests(principal.ID, listParamsFrom(c))
	if err != nil {
		log.Printf("Error listing requests for clinic %s: %v", principal.ID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"requests":   requests,
		"pagination": pagination,
	})
}

// HandleGetClinicHistory lists the clinic's processed requests with their
// derived orders.
func (h *RequestHandler) HandleGetClinicHistory(c *fiber.Ctx) error {
	principal := middleware.PrincipalFrom(c)
	history, pagination, err := h.service.GetClinicHistory(principal.ID, listParamsFrom(c))
	if err != nil {
		log.Printf("Error listing history for clinic %s: %v", principal.ID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"requests":   history,
		"pagination": pagination,
	})
}

// HandleGetPendingRequests lists the pharmacy review queue.
func (h *RequestHandler) HandleGetPendingRequests(c *fiber.Ctx) error {
	requests, pagination, err := h.service.GetPendingRequests(listParamsFrom(c))
	if err != nil {
		log.Printf("Error listing pending requests: %v", err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"requests":   requests,
		"pagination": pagination,
	})
}

// HandleConfirmRequest runs the confirm protocol and returns the new order.
func (h *RequestHandler) HandleConfirmRequest(c *fiber.Ctx) error {
	principal := middleware.PrincipalFrom(c)
	order, err := h.fulfillment.ConfirmRequest(c.UserContext(), c.Params("id"), *principal)
	if err != nil {
		log.Printf("Error confirming request %s: %v", c.Params("id"), err)
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleRejectRequest marks the request rejected with a reason.
func (h *RequestHandler) HandleRejectRequest(c *fiber.Ctx) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	request, err := h.service.RejectRequest(c.Params("id"), body.Reason)
	if err != nil {
		log.Printf("Error rejecting request %s: %v", c.Params("id"), err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Request rejected",
		"request": request,
	})
}

// HandleAddItems replaces the product lines on a photo request.
func (h *RequestHandler) HandleAddItems(c *fiber.Ctx) error {
	var body struct {
		SelectedProducts []models.RequestItem `json:"selected_products"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	principal := middleware.PrincipalFrom(c)
	request, err := h.service.AmendPhotoItems(c.Params("id"), body.SelectedProducts, *principal)
	if err != nil {
		log.Printf("Error adding items to request %s: %v", c.Params("id"), err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Items added to photo request",
		"request": request,
	})
}

// HandleDownloadPhoto streams a single photo by index.
func (h *RequestHandler) HandleDownloadPhoto(c *fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid photo index",
		})
	}

	principal := middleware.PrincipalFrom(c)
	data, filename, err := h.service.DownloadPhoto(c.UserContext(), c.Params("id"), index, *principal)
	if err != nil {
		log.Printf("Error downloading photo %d of request %s: %v", index, c.Params("id"), err)
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

// HandleDownloadAllPhotos streams every photo as one ZIP archive.
func (h *RequestHandler) HandleDownloadAllPhotos(c *fiber.Ctx) error {
	principal := middleware.PrincipalFrom(c)
	data, filename, err := h.service.DownloadAllPhotos(c.UserContext(), c.Params("id"), *principal)
	if err != nil {
		log.Printf("Error downloading photos of request %s: %v", c.Params("id"), err)
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}
