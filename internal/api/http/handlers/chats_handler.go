package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/chat"
	"github.com/spec-kit/workflow-service/internal/workspace"
)

// ChatsHandler exposes direct messages.
type ChatsHandler struct {
	registry *workspace.Registry
	chat     *chat.Service
}

// NewChatsHandler constructs handler.
func NewChatsHandler(registry *workspace.Registry, chatService *chat.Service) *ChatsHandler {
	return &ChatsHandler{registry: registry, chat: chatService}
}

// Contacts handles GET /chats/contacts.
func (h *ChatsHandler) Contacts(c *fiber.Ctx) error {
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(w.Contacts())})
}

// History handles GET /chats/:userId/messages.
func (h *ChatsHandler) History(c *fiber.Ctx) error {
	principal, _, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	msgs, err := h.chat.History(c.UserContext(), principal.Identity.ID, c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewChatMessageResponses(msgs)})
}

// Send handles POST /chats/:userId/messages.
func (h *ChatsHandler) Send(c *fiber.Ctx) error {
	var req dto.TextRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	msg, err := w.SendChat(c.UserContext(), c.Params("userId"), req.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.CreatedResponse{ID: msg.ID}})
}
