package profile

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siralabs/sira-api/model"
	"github.com/siralabs/sira-api/services"
	"github.com/siralabs/sira-api/utils/middleware"
	"github.com/siralabs/sira-api/utils/response"
	"github.com/siralabs/sira-api/utils/validation"
)

// ProfileHandler handles student profile requests
type ProfileHandler struct {
	db             *gorm.DB
	validator      *validation.Validator
	profileService *services.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(db *gorm.DB, profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		db:             db,
		validator:      validation.NewValidator(),
		profileService: profileService,
	}
}

// serviceError maps service-layer sentinel errors to HTTP responses
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrProfileNotFound):
		return response.NotFound(c, "Profile not found")
	case errors.Is(err, services.ErrNotOwned):
		return response.Forbidden(c, "You do not have access to this profile")
	default:
		return response.InternalServerError(c, "")
	}
}

// CreateProfileRequest represents a profile creation request
type CreateProfileRequest struct {
	ProfileName string `json:"profile_name" validate:"required,min=1,max=100"`
}

// CreateProfile handles POST /api/v1/profiles
func (h *ProfileHandler) CreateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	profile, err := h.profileService.CreateProfile(userID, services.CreateProfileInput{
		ProfileName: validation.SanitizeString(req.ProfileName),
	})
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, profile)
}

// ListProfiles handles GET /api/v1/profiles
func (h *ProfileHandler) ListProfiles(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	profiles, err := h.profileService.ListProfiles(userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch profiles")
	}

	return response.Success(c, profiles)
}

// GetProfile handles GET /api/v1/profiles/:id
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	profileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid profile ID")
	}

	profile, err := h.profileService.GetProfile(userID, profileID)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, profile)
}

// UpdateProfileRequest represents a partial profile update
type UpdateProfileRequest struct {
	ProfileName *string `json:"profile_name" validate:"omitempty,min=1,max=100"`
}

// UpdateProfile handles PUT /api/v1/profiles/:id
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	profileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid profile ID")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	profile, err := h.profileService.UpdateProfile(userID, profileID, services.UpdateProfileInput{
		ProfileName: req.ProfileName,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, profile)
}

// SetStatusRequest represents a profile status change
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft active archived"`
}

// SetStatus handles POST /api/v1/profiles/:id/status
func (h *ProfileHandler) SetStatus(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	profileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid profile ID")
	}

	var req SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	profile, err := h.profileService.SetStatus(userID, profileID, model.ProfileStatus(req.Status))
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, profile)
}

// DeleteProfile handles DELETE /api/v1/profiles/:id
func (h *ProfileHandler) DeleteProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	profileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid profile ID")
	}

	if err := h.profileService.DeleteProfile(userID, profileID); err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, fiber.Map{
		"message": "Profile deleted successfully",
	})
}
