package delivery

import (
	"errors"

	"chat-relay/internal/domain"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleLogout(c *fiber.Ctx) error {
	if err := s.verifier.Revoke(c.UserContext(), c.Get(fiber.HeaderAuthorization)); err != nil {
		return s.writeError(c, err, "Failed to logout")
	}
	return ok(c, "Logged out successfully", nil)
}

func (s *Server) handleUserChats(c *fiber.Ctx) error {
	chats, err := s.chat.UserChats(c.UserContext(), identityOf(c).UserID)
	if err != nil {
		return s.writeError(c, err, "Failed to fetch user chats")
	}
	return ok(c, "Chats retrieved successfully", chats)
}

func (s *Server) handleSearchMessages(c *fiber.Ctx) error {
	page, err := s.chat.SearchMessages(c.UserContext(), identityOf(c).UserID,
		c.Query("q"), domain.ChatType(c.Query("chatType")), c.Query("chatId"),
		c.QueryInt("page", 1), c.QueryInt("limit", 20))
	if err != nil {
		return s.writeError(c, err, "Failed to search messages")
	}
	return ok(c, "Messages retrieved successfully", page)
}

func (s *Server) handlePrivateHistory(c *fiber.Ctx) error {
	page, err := s.chat.PrivateHistory(c.UserContext(), identityOf(c).UserID, c.Params("userId"), c.QueryInt("page", 1), c.QueryInt("limit", 50))
	if err != nil {
		return s.writeError(c, err, "Failed to get messages")
	}
	return ok(c, "Messages retrieved successfully", page)
}

func (s *Server) handleGroupHistory(c *fiber.Ctx) error {
	page, err := s.chat.GroupHistory(c.UserContext(), identityOf(c).UserID, c.Params("groupId"), c.QueryInt("page", 1), c.QueryInt("limit", 50))
	if err != nil {
		return s.writeError(c, err, "Failed to get messages")
	}
	return ok(c, "Messages retrieved successfully", page)
}

func (s *Server) handleGetMessage(c *fiber.Ctx) error {
	m, err := s.chat.GetMessage(c.UserContext(), c.Params("messageId"), identityOf(c).UserID)
	if err != nil {
		return s.writeError(c, err, "Failed to get message")
	}
	return ok(c, "Message retrieved successfully", m)
}

type editRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleEditMessage(c *fiber.Ctx) error {
	var req editRequest
	if err := c.BodyParser(&req); err != nil {
		return s.writeError(c, domain.NewValidationError("Invalid request body"), "")
	}
	m, err := s.chat.EditMessage(c.UserContext(), c.Params("messageId"), identityOf(c).UserID, req.Content)
	if err != nil {
		return s.writeError(c, err, "Failed to edit message")
	}
	return ok(c, "Message edited successfully", m)
}

func (s *Server) handleDeleteMessage(c *fiber.Ctx) error {
	if err := s.chat.DeleteMessage(c.UserContext(), c.Params("messageId"), identityOf(c).UserID); err != nil {
		return s.writeError(c, err, "Failed to delete message")
	}
	return ok(c, "Message deleted successfully", nil)
}

func (s *Server) handlePinMessage(c *fiber.Ctx) error {
	m, err := s.chat.PinMessage(c.UserContext(), c.Params("messageId"), identityOf(c).UserID)
	if err != nil {
		return s.writeError(c, err, "Failed to pin message")
	}
	return ok(c, "Message pinned successfully", m)
}

type reactionRequest struct {
	Reaction string `json:"reaction"`
}

func (s *Server) handleAddReaction(c *fiber.Ctx) error {
	var req reactionRequest
	if err := c.BodyParser(&req); err != nil {
		return s.writeError(c, domain.NewValidationError("Invalid request body"), "")
	}
	if err := s.chat.AddReaction(c.UserContext(), c.Params("messageId"), identityOf(c), req.Reaction); err != nil {
		return s.writeError(c, err, "Failed to add reaction")
	}
	return ok(c, "Reaction added successfully", nil)
}

func (s *Server) handlePresence(c *fiber.Ctx) error {
	status, err := s.presence.Status(c.UserContext(), c.Params("userId"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.writeError(c, domain.NewNotFoundError("User not found"), "")
		}
		return s.writeError(c, err, "Failed to get presence")
	}
	return ok(c, "Presence retrieved successfully", status)
}
