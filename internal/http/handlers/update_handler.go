package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/inscribe-bot/backend/internal/http/dto"
	"github.com/inscribe-bot/backend/internal/services"
	"go.uber.org/zap"
)

type updateRouter interface {
	Handle(ctx context.Context, upd services.Update) error
}

// UpdateHandler is the ingress for chat events forwarded by the bot gateway.
type UpdateHandler struct {
	router updateRouter
	log    *zap.Logger
}

func NewUpdateHandler(router updateRouter, log *zap.Logger) *UpdateHandler {
	return &UpdateHandler{router: router, log: log}
}

func (h *UpdateHandler) HandleUpdate(c *fiber.Ctx) error {
	var req dto.BotUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.TelegramUserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "telegram_user_id is required"})
	}
	if req.Text == "" && req.CallbackData == "" {
		// stickers, photos etc.
		return c.JSON(dto.SuccessResponse{OK: true})
	}

	err := h.router.Handle(c.UserContext(), services.Update{
		TelegramUserID: req.TelegramUserID,
		Username:       req.Username,
		Text:           req.Text,
		CallbackData:   req.CallbackData,
		MessageID:      req.MessageID,
	})
	if err != nil {
		h.log.Error("update handling failed", zap.Int64("telegram_user_id", req.TelegramUserID), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "could not deliver reply"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
