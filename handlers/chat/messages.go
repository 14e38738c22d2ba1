package chat

import (
	"bufio"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/siralabs/sira-api/services"
	"github.com/siralabs/sira-api/utils/middleware"
	"github.com/siralabs/sira-api/utils/response"
	"github.com/siralabs/sira-api/utils/sse"
	"github.com/siralabs/sira-api/utils/validation"
)

// SendMessageRequest represents the request to send a chat message
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=10000"`
	Stream  bool   `json:"stream" validate:"omitempty"`
}

// GetMessages handles GET /api/v1/chat/sessions/:id/messages
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	_, messages, err := h.conversation.GetSession(userID, sessionID)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Success(c, messages)
}

// SendMessage handles POST /api/v1/chat/sessions/:id/messages
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid session ID")
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	if req.Stream {
		return h.handleStreamMessage(c, sessionID, userID, req.Content)
	}

	pair, err := h.conversation.SendMessage(c.Context(), userID, sessionID, req.Content)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, pair)
}

// handleStreamMessage streams the assistant reply over SSE. Errors after the
// stream opens are reported as a terminal error frame, never a silent close.
func (h *ChatHandler) handleStreamMessage(c *fiber.Ctx, sessionID, userID uuid.UUID, content string) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	ctx := c.Context()
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := sse.SendStart(w, fiber.Map{"status": "streaming"}); err != nil {
			return
		}

		pair, err := h.conversation.SendMessageStream(ctx, userID, sessionID, content, func(delta string) error {
			return sse.SendChunk(w, delta)
		})
		if err != nil {
			sse.SendError(w, errors.New(streamErrorMessage(err)))
			return
		}

		sse.SendDone(w, fiber.Map{
			"user_message_id":      pair.UserMessage.ID,
			"assistant_message_id": pair.AssistantMessage.ID,
		})
	})

	return nil
}

// streamErrorMessage maps a pipeline error to the message carried by the
// terminal SSE error frame
func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, services.ErrProfileNotFound):
		return "Profile not found"
	case errors.Is(err, services.ErrNotOwned):
		return "You do not have access to this resource"
	default:
		return "Failed to generate response"
	}
}
