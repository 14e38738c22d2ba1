package chat

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/siralabs/sira-api/utils/middleware"
	"github.com/siralabs/sira-api/utils/response"
)

// GenerateRecommendationRequest tunes in-session recommendation generation
type GenerateRecommendationRequest struct {
	TopK int `json:"top_k" validate:"omitempty,min=1,max=20"`
}

// GenerateRecommendation handles POST /api/v1/chat/sessions/:id/recommendation.
// The session must have a profile attached.
func (h *ChatHandler) GenerateRecommendation(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	var req GenerateRecommendationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	result, err := h.conversation.GenerateInitialRecommendation(c.Context(), userID, sessionID, req.TopK)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, result)
}
