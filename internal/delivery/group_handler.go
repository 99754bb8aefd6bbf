package delivery

import (
	"chat-relay/internal/domain"

	"github.com/gofiber/fiber/v2"
)

type createGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type renameGroupRequest struct {
	Name string `json:"name"`
}

type memberRequest struct {
	MemberID string `json:"memberId"`
}

type adminRequest struct {
	AdminID string `json:"adminId"`
}

func (s *Server) handleCreateGroup(c *fiber.Ctx) error {
	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return s.writeError(c, domain.NewValidationError("Invalid request body"), "")
	}
	g, err := s.chat.CreateGroup(c.UserContext(), identityOf(c), req.Name, req.Members)
	if err != nil {
		return s.writeError(c, err, "Failed to create group")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Group created successfully",
		"data":    g,
	})
}

func (s *Server) handleListGroups(c *fiber.Ctx) error {
	groups, err := s.chat.ListGroups(c.UserContext(), identityOf(c).UserID)
	if err != nil {
		return s.writeError(c, err, "Failed to get groups")
	}
	return ok(c, "Groups retrieved successfully", groups)
}

func (s *Server) handleGetGroup(c *fiber.Ctx) error {
	g, err := s.chat.GetGroup(c.UserContext(), identityOf(c).UserID, c.Params("groupId"))
	if err != nil {
		return s.writeError(c, err, "Failed to get group")
	}
	return ok(c, "Group retrieved successfully", g)
}

func (s *Server) handleRenameGroup(c *fiber.Ctx) error {
	var req renameGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return s.writeError(c, domain.NewValidationError("Invalid request body"), "")
	}
	g, err := s.chat.RenameGroup(c.UserContext(), identityOf(c).UserID, c.Params("groupId"), req.Name)
	if err != nil {
		return s.writeError(c, err, "Failed to update group")
	}
	return ok(c, "Group updated successfully", g)
}

func (s *Server) handleDeleteGroup(c *fiber.Ctx) error {
	if err := s.chat.DeleteGroup(c.UserContext(), identityOf(c).UserID, c.Params("groupId")); err != nil {
		return s.writeError(c, err, "Failed to delete group")
	}
	return ok(c, "Group deleted successfully", nil)
}

func (s *Server) handleAddMember(c *fiber.Ctx) error {
	var req memberRequest
	if err := c.BodyParser(&req); err != nil {
		return s.writeError(c, domain.NewValidationError("Invalid request body"), "")
	}
	g, err := s.chat.AddMember(c.UserContext(), identityOf(c).UserID, c.Params("groupId"), req.MemberID)
	if err != nil {
		return s.writeError(c, err, "Failed to add member")
	}
	return ok(c, "Member added successfully", g)
}

func (s *Server) handleRemoveMember(c *fiber.Ctx) error {
	g, err := s.chat.RemoveMember(c.UserContext(), identityOf(c).UserID, c.Params("groupId"), c.Params("memberId"))
	if err != nil {
		return s.writeError(c, err, "Failed to remove member")
	}
	return ok(c, "Member removed successfully", g)
}

func (s *Server) handleAddAdmin(c *fiber.Ctx) error {
	var req adminRequest
	if err := c.BodyParser(&req); err != nil {
		return s.writeError(c, domain.NewValidationError("Invalid request body"), "")
	}
	g, err := s.chat.AddAdmin(c.UserContext(), identityOf(c).UserID, c.Params("groupId"), req.AdminID)
	if err != nil {
		return s.writeError(c, err, "Failed to add admin")
	}
	return ok(c, "Admin added successfully", g)
}

func (s *Server) handleRemoveAdmin(c *fiber.Ctx) error {
	g, err := s.chat.RemoveAdmin(c.UserContext(), identityOf(c).UserID, c.Params("groupId"), c.Params("adminId"))
	if err != nil {
		return s.writeError(c, err, "Failed to remove admin")
	}
	return ok(c, "Admin removed successfully", g)
}
