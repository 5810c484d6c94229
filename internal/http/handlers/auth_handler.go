package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/inscribe-bot/backend/internal/auth"
	"github.com/inscribe-bot/backend/internal/config"
	"github.com/inscribe-bot/backend/internal/http/dto"
	"go.uber.org/zap"
)

type AuthHandler struct {
	users userStore
	cfg   *config.Config
	log   *zap.Logger
}

func NewAuthHandler(users userStore, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, cfg: cfg, log: log}
}

// TelegramAuth exchanges mini-app initData for a session token.
func (h *AuthHandler) TelegramAuth(c *fiber.Ctx) error {
	var req dto.AuthTelegramRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.InitData == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "init_data is required"})
	}

	data, err := auth.ValidateTelegramWebAppData(req.InitData, h.cfg.WebAppSecret, h.cfg.InitDataMaxAge)
	if err != nil {
		h.log.Debug("telegram auth validation failed", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	var username *string
	if data.User.Username != "" {
		username = &data.User.Username
	}
	user, err := h.users.UpsertByTelegramID(c.UserContext(), data.User.ID, username, h.cfg.DefaultChain)
	if err != nil {
		h.log.Error("failed to upsert user", zap.Int64("telegram_user_id", data.User.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, user.TelegramUserID, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.AuthResponse{
		Token: token,
		User:  user,
	})
}
