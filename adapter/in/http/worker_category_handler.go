package http

import (
	"strings"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/in"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

const (
	maxCategoryNameLength        = 64
	maxCategoryDescriptionLength = 500
)

// CategoryHandler handles category registry endpoints.
type CategoryHandler struct {
	svc in.ClassificationService
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(svc in.ClassificationService) *CategoryHandler {
	return &CategoryHandler{svc: svc}
}

// Register registers category routes.
func (h *CategoryHandler) Register(app fiber.Router) {
	cat := app.Group("/categories")
	cat.Get("/", h.ListCategories)
	cat.Post("/", h.CreateCategory)
	cat.Get("/patterns", h.ListPatterns)
	cat.Delete("/:id", h.DeleteCategory)
}

// ListCategories GET /categories
func (h *CategoryHandler) ListCategories(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, apperr.ErrUnauthorized)
	}

	categories, err := h.svc.ListCategories(requestContext(c, userID), userID)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.Map{
		"categories": categories,
		"total":      len(categories),
	})
}

// CreateCategory POST /categories
func (h *CategoryHandler) CreateCategory(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, apperr.ErrUnauthorized)
	}

	var req in.CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, apperr.BadRequest("invalid request body"))
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)

	switch {
	case req.Name == "":
		return ErrorResponse(c, apperr.MissingField("name"))
	case len([]rune(req.Name)) > maxCategoryNameLength:
		return ErrorResponse(c, apperr.InvalidInput("name", "too long"))
	case len([]rune(req.Description)) > maxCategoryDescriptionLength:
		return ErrorResponse(c, apperr.InvalidInput("description", "too long"))
	}

	category, err := h.svc.CreateCategory(requestContext(c, userID), userID, req)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return CreatedResponse(c, category)
}

// DeleteCategory DELETE /categories/:id
// Threads in the deleted category are redistributed before it goes away.
func (h *CategoryHandler) DeleteCategory(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, apperr.ErrUnauthorized)
	}

	id := c.Params("id")
	if id == "" {
		return ErrorResponse(c, apperr.MissingField("id"))
	}

	result, err := h.svc.DeleteCategory(requestContext(c, userID), userID, id)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, result)
}

// ListPatterns GET /categories/patterns?category=Work&limit=10
func (h *CategoryHandler) ListPatterns(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, apperr.ErrUnauthorized)
	}

	category := strings.TrimSpace(c.Query("category"))
	if category == "" {
		return ErrorResponse(c, apperr.MissingField("category"))
	}

	senders, err := h.svc.TopSenders(requestContext(c, userID), userID, category, queryLimit(c, 10, 100))
	if err != nil {
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.Map{
		"category": category,
		"senders":  senders,
	})
}
