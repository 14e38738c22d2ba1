package recommendation

import (
	"bufio"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/siralabs/sira-api/services"
	"github.com/siralabs/sira-api/utils/middleware"
	"github.com/siralabs/sira-api/utils/response"
	"github.com/siralabs/sira-api/utils/sse"
	"github.com/siralabs/sira-api/utils/validation"
)

// streamErrorMessage maps a pipeline error to the message carried by the
// terminal SSE error frame
func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrProfileNotFound):
		return "Profile not found"
	case errors.Is(err, services.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, services.ErrNotOwned):
		return "You do not have access to this resource"
	case errors.Is(err, services.ErrNoCandidatesFound):
		return "No matching programs found. Try broadening your preferences or budget."
	default:
		return "Failed to generate recommendation"
	}
}

// GenerateStream handles POST /api/v1/recommendations/generate/stream.
// Errors after the stream opens are reported as a terminal error frame, never
// a silent close.
func (h *RecommendationHandler) GenerateStream(c *fiber.Ctx) error {
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

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	ctx := c.Context()
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := sse.SendStart(w, fiber.Map{"status": "streaming"}); err != nil {
			return
		}

		rec, err := h.service.GenerateStream(ctx, userID, input, func(delta string) error {
			return sse.SendChunk(w, delta)
		})
		if err != nil {
			sse.SendError(w, errors.New(streamErrorMessage(err)))
			return
		}

		sse.SendDone(w, fiber.Map{
			"recommendation_id": rec.ID,
			"retrieval_tier":    rec.RetrievalTier,
		})
	})

	return nil
}
