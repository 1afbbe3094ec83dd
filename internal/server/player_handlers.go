package server

import (
	"banledger/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RegisterPlayerRequest is the body of PUT /api/guilds/:guildId/players/:userId.
type RegisterPlayerRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=64"`
}

// RegisterPlayer handles PUT /api/guilds/:guildId/players/:userId. Only
// registered players can be banned.
func (s *Server) RegisterPlayer(c *fiber.Ctx) error {
	guildID, err := parseSnowflake(c, "guildId")
	if err != nil {
		return nil
	}
	userID, err := parseSnowflake(c, "userId")
	if err != nil {
		return nil
	}

	var req RegisterPlayerRequest
	if err := bindBody(c, &req); err != nil {
		return nil
	}

	player := &models.Player{
		GuildID:     guildID,
		UserID:      userID,
		DisplayName: req.DisplayName,
	}
	if err := s.playerRepo.Upsert(c.UserContext(), player); err != nil {
		return respondError(c, err)
	}

	return c.JSON(player)
}
