package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/inscribe-bot/backend/internal/http/dto"
	"github.com/inscribe-bot/backend/internal/middleware"
	"github.com/inscribe-bot/backend/internal/models"
	"go.uber.org/zap"
)

type UserHandler struct {
	users userStore
	audit auditLister
	log   *zap.Logger
}

func NewUserHandler(users userStore, audit auditLister, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, audit: audit, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.UserContext(), middleware.GetUserID(c))
	if errors.Is(err, models.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}
	if err != nil {
		h.log.Error("failed to load user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) Ping(c *fiber.Ctx) error {
	if err := h.users.UpdateLastActive(c.UserContext(), middleware.GetUserID(c)); err != nil {
		h.log.Error("failed to update last_active", zap.Error(err))
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// GetActivity returns the caller's workflow transitions, newest first,
// including retried reviews and expiries.
func (h *UserHandler) GetActivity(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	logs, err := h.audit.ListByTelegramID(c.UserContext(), middleware.GetTelegramUserID(c), limit, c.QueryInt("offset", 0))
	if err != nil {
		h.log.Error("failed to list activity", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}
