package chat

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siralabs/sira-api/model"
	"github.com/siralabs/sira-api/services"
	"github.com/siralabs/sira-api/utils/middleware"
	"github.com/siralabs/sira-api/utils/response"
	"github.com/siralabs/sira-api/utils/validation"
)

// ChatHandler handles conversation session requests
type ChatHandler struct {
	db           *gorm.DB
	validator    *validation.Validator
	conversation *services.ConversationService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(db *gorm.DB, conversation *services.ConversationService) *ChatHandler {
	return &ChatHandler{
		db:           db,
		validator:    validation.NewValidator(),
		conversation: conversation,
	}
}

// serviceError maps service-layer sentinel errors to HTTP responses
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrProfileNotFound):
		return response.NotFound(c, "Profile not found")
	case errors.Is(err, services.ErrSessionNotFound):
		return response.NotFound(c, "Session not found")
	case errors.Is(err, services.ErrNotOwned):
		return response.Forbidden(c, "You do not have access to this resource")
	case errors.Is(err, services.ErrMissingProfile):
		return response.BadRequest(c, "This session has no profile attached. Attach a profile to generate recommendations.")
	case errors.Is(err, services.ErrNoCandidatesFound):
		return response.NotFound(c, "No matching programs found. Try broadening your preferences or budget.")
	case errors.Is(err, services.ErrCompletionFailed):
		return response.Error(c, fiber.StatusInternalServerError,
			"Failed to generate response", "COMPLETION_FAILED")
	default:
		return response.InternalServerError(c, "")
	}
}

// CreateSessionRequest represents the request to create a conversation session
type CreateSessionRequest struct {
	ProfileID *string `json:"profile_id" validate:"omitempty,uuid"`
	Title     string  `json:"title" validate:"omitempty,max=255"`
}

// CreateSession handles POST /api/v1/chat/sessions
func (h *ChatHandler) CreateSession(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	input := services.CreateSessionInput{Title: validation.SanitizeString(req.Title)}
	if req.ProfileID != nil {
		profileID, err := uuid.Parse(*req.ProfileID)
		if err != nil {
			return response.BadRequest(c, "Invalid profile ID")
		}
		input.ProfileID = &profileID
	}

	session, err := h.conversation.CreateSession(userID, input)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, session)
}

// ListSessions handles GET /api/v1/chat/sessions
func (h *ChatHandler) ListSessions(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	input := services.ListSessionsInput{}
	input.Limit, _ = strconv.Atoi(c.Query("limit", "50"))

	if raw := c.Query("profile_id"); raw != "" {
		profileID, err := uuid.Parse(raw)
		if err != nil {
			return response.BadRequest(c, "Invalid profile ID")
		}
		input.ProfileID = &profileID
	}
	if raw := c.Query("status"); raw != "" {
		status := model.SessionStatus(raw)
		input.Status = &status
	}

	list, err := h.conversation.ListSessions(userID, input)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch sessions")
	}

	return response.Success(c, list)
}

// GetSession handles GET /api/v1/chat/sessions/:id
func (h *ChatHandler) GetSession(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	session, messages, err := h.conversation.GetSession(userID, sessionID)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, fiber.Map{
		"session":  session,
		"messages": messages,
	})
}

// UpdateSessionRequest represents a partial session update
type UpdateSessionRequest struct {
	Title     *string `json:"title" validate:"omitempty,max=255"`
	Status    *string `json:"status" validate:"omitempty,oneof=active archived"`
	ProfileID *string `json:"profile_id" validate:"omitempty,uuid"`
}

// UpdateSession handles PUT /api/v1/chat/sessions/:id
func (h *ChatHandler) UpdateSession(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	var req UpdateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	input := services.UpdateSessionInput{Title: req.Title}
	if req.Status != nil {
		status := model.SessionStatus(*req.Status)
		input.Status = &status
	}
	if req.ProfileID != nil {
		profileID, err := uuid.Parse(*req.ProfileID)
		if err != nil {
			return response.BadRequest(c, "Invalid profile ID")
		}
		input.ProfileID = &profileID
	}

	session, err := h.conversation.UpdateSession(userID, sessionID, input)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, session)
}

// ArchiveSession handles POST /api/v1/chat/sessions/:id/archive
func (h *ChatHandler) ArchiveSession(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	status := model.SessionStatusArchived
	session, err := h.conversation.UpdateSession(userID, sessionID, services.UpdateSessionInput{
		Status: &status,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, session)
}

// DeleteSession handles DELETE /api/v1/chat/sessions/:id
func (h *ChatHandler) DeleteSession(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	if err := h.conversation.DeleteSession(userID, sessionID); err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, fiber.Map{
		"message": "Session deleted successfully",
	})
}
