package server

import (
	"fmt"
	"strconv"
	"time"

	"banledger/internal/models"
	"banledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateBanRequest is the body of POST /api/guilds/:guildId/bans.
// Snowflakes travel as strings since they exceed 2^53.
type CreateBanRequest struct {
	UserID string `json:"user_id" validate:"required,numeric,max=20"`
	Length string `json:"length" validate:"required,max=32"`
	Reason string `json:"reason" validate:"max=1000"`
}

// CreateBanResponse confirms a new ban with its computed expiry.
type CreateBanResponse struct {
	Ban       *models.Ban `json:"ban"`
	ExpiresAt time.Time   `json:"expires_at"`
	Remaining string      `json:"remaining"`
	Message   string      `json:"message"`
}

// CreateBan handles POST /api/guilds/:guildId/bans
func (s *Server) CreateBan(c *fiber.Ctx) error {
	guildID, err := parseSnowflake(c, "guildId")
	if err != nil {
		return nil
	}
	moderatorID, ok := callerID(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authentication required"))
	}

	var req CreateBanRequest
	if err := bindBody(c, &req); err != nil {
		return nil
	}

	userID, err := strconv.ParseUint(req.UserID, 10, 64)
	if err != nil || userID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}

	length, err := models.ParseBanLength(req.Length)
	if err != nil {
		return respondError(c, err)
	}

	ban, err := s.banService.CreateBan(c.UserContext(), service.CreateBanInput{
		GuildID:     guildID,
		UserID:      userID,
		ModeratorID: moderatorID,
		Length:      length,
		Comment:     req.Reason,
	})
	if err != nil {
		return respondError(c, err)
	}

	now := s.banService.Now()
	expiry := ban.ExpiryTime().UTC()
	remaining := models.FormatLength(ban.RemainingAt(now))
	return c.Status(fiber.StatusCreated).JSON(CreateBanResponse{
		Ban:       ban,
		ExpiresAt: expiry,
		Remaining: remaining,
		Message: fmt.Sprintf("<@%d> banned from joining games until: %s in %s",
			userID, expiry.Format("02 Jan 2006 15:04"), remaining),
	})
}

// UnbanUser handles DELETE /api/guilds/:guildId/users/:userId/bans
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	guildID, err := parseSnowflake(c, "guildId")
	if err != nil {
		return nil
	}
	userID, err := parseSnowflake(c, "userId")
	if err != nil {
		return nil
	}

	res, err := s.banService.UnbanUser(c.UserContext(), guildID, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"affected": res.Affected,
		"message":  "Player has been unbanned.",
	})
}

// GetUserBans handles GET /api/guilds/:guildId/users/:userId/bans
func (s *Server) GetUserBans(c *fiber.Ctx) error {
	guildID, err := parseSnowflake(c, "guildId")
	if err != nil {
		return nil
	}
	userID, err := parseSnowflake(c, "userId")
	if err != nil {
		return nil
	}

	listing, err := s.banService.UserBans(c.UserContext(), guildID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(listing)
}

// GetActiveBans handles GET /api/guilds/:guildId/bans
func (s *Server) GetActiveBans(c *fiber.Ctx) error {
	guildID, err := parseSnowflake(c, "guildId")
	if err != nil {
		return nil
	}

	listing, err := s.banService.ActiveBans(c.UserContext(), guildID, c.Query("guild_name"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(listing)
}

// GetAllBans handles GET /api/guilds/:guildId/bans/all
func (s *Server) GetAllBans(c *fiber.Ctx) error {
	guildID, err := parseSnowflake(c, "guildId")
	if err != nil {
		return nil
	}

	listing, err := s.banService.AllBans(c.UserContext(), guildID, c.Query("guild_name"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(listing)
}
