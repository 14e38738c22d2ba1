package profile

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/siralabs/sira-api/services"
	"github.com/siralabs/sira-api/utils/middleware"
	"github.com/siralabs/sira-api/utils/response"
	"github.com/siralabs/sira-api/utils/validation"
)

// UpsertAcademicRecord handles PUT /api/v1/profiles/:id/academic-record
func (h *ProfileHandler) UpsertAcademicRecord(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	profileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid profile ID")
	}

	var req services.AcademicRecordInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	record, err := h.profileService.UpsertAcademicRecord(userID, profileID, req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, record)
}

// UpsertPreferences handles PUT /api/v1/profiles/:id/preferences
func (h *ProfileHandler) UpsertPreferences(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	profileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid profile ID")
	}

	var req services.PreferencesInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	prefs, err := h.profileService.UpsertPreferences(userID, profileID, req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, prefs)
}
