package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/inscribe-bot/backend/internal/models"
)

type userStore interface {
	UpsertByTelegramID(ctx context.Context, telegramID int64, username *string, defaultChain string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastActive(ctx context.Context, id uuid.UUID) error
}

type walletLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error)
}

type auditLister interface {
	ListByTelegramID(ctx context.Context, telegramID int64, limit, offset int) ([]models.AuditLog, error)
}

type transactionLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}
