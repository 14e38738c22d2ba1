package recommendation

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siralabs/sira-api/services"
	"github.com/siralabs/sira-api/utils/middleware"
	"github.com/siralabs/sira-api/utils/response"
	"github.com/siralabs/sira-api/utils/validation"
)

// RecommendationHandler handles recommendation generation and retrieval
type RecommendationHandler struct {
	db        *gorm.DB
	validator *validation.Validator
	service   *services.RecommendationService
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(db *gorm.DB, service *services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{
		db:        db,
		validator: validation.NewValidator(),
		service:   service,
	}
}

// serviceError maps service-layer sentinel errors to HTTP responses
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrProfileNotFound):
		return response.NotFound(c, "Profile not found")
	case errors.Is(err, services.ErrSessionNotFound):
		return response.NotFound(c, "Session not found")
	case errors.Is(err, services.ErrRecommendationNotFound):
		return response.NotFound(c, "Recommendation not found")
	case errors.Is(err, services.ErrNotOwned):
		return response.Forbidden(c, "You do not have access to this resource")
	case errors.Is(err, services.ErrNoCandidatesFound):
		return response.NotFound(c, "No matching programs found. Try broadening your preferences or budget.")
	case errors.Is(err, services.ErrCompletionFailed):
		return response.Error(c, fiber.StatusInternalServerError,
			"Failed to generate recommendation", "COMPLETION_FAILED")
	default:
		return response.InternalServerError(c, "")
	}
}

// GenerateRequest represents a recommendation generation request
type GenerateRequest struct {
	ProfileID string `json:"profile_id" validate:"required,uuid"`
	SessionID string `json:"session_id" validate:"required,uuid"`
	TopK      int    `json:"top_k" validate:"omitempty,min=1,max=20"`
}

func (r *GenerateRequest) toInput() (services.GenerateInput, error) {
	profileID, err := uuid.Parse(r.ProfileID)
	if err != nil {
		return services.GenerateInput{}, err
	}
	sessionID, err := uuid.Parse(r.SessionID)
	if err != nil {
		return services.GenerateInput{}, err
	}
	return services.GenerateInput{
		ProfileID: profileID,
		SessionID: sessionID,
		TopK:      r.TopK,
	}, nil
}

// Generate handles POST /api/v1/recommendations/generate
func (h *RecommendationHandler) Generate(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	input, err := req.toInput()
	if err != nil {
		return response.BadRequest(c, "Invalid profile or session ID")
	}

	rec, err := h.service.Generate(c.Context(), userID, input)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, rec)
}

// Get handles GET /api/v1/recommendations/:id
func (h *RecommendationHandler) Get(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	recID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid recommendation ID")
	}

	rec, err := h.service.GetByID(userID, recID)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, rec)
}

// ListByProfile handles GET /api/v1/profiles/:id/recommendations
func (h *RecommendationHandler) ListByProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	profileID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid profile ID")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	recs, err := h.service.ListByProfile(userID, profileID, limit)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, recs)
}

// FeedbackRequest represents recommendation feedback
type FeedbackRequest struct {
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}

// SubmitFeedback handles POST /api/v1/recommendations/:id/feedback
func (h *RecommendationHandler) SubmitFeedback(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	recID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid recommendation ID")
	}

	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	rec, err := h.service.SubmitFeedback(userID, recID, req.Rating, req.Comment)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, rec)
}
