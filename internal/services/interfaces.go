package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/inscribe-bot/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Storage and transport seams of the workflow. Implemented by
// internal/repositories, BotClient, PriceOracle and custody.LocalCustody.

type UserStore interface {
	UpsertByTelegramID(ctx context.Context, telegramID int64, username *string, defaultChain string) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	SetState(ctx context.Context, telegramID int64, state models.WorkflowState) error
	CompareAndSetState(ctx context.Context, telegramID int64, from, to models.WorkflowState) (bool, error)
	SetActiveChain(ctx context.Context, telegramID int64, chain string) error
	SetFeePreference(ctx context.Context, telegramID int64, pref models.FeePreference) error
	UpdateLastActive(ctx context.Context, id uuid.UUID) error
}

type WalletStore interface {
	GetByUserAndChain(ctx context.Context, userID uuid.UUID, chain string) (*models.Wallet, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error)
	TouchLastActive(ctx context.Context, id uuid.UUID) error
}

type ProcessStore interface {
	Load(ctx context.Context, telegramID int64) (*models.Process, error)
	Save(ctx context.Context, p *models.Process) error
	Reset(ctx context.Context, telegramID int64) error
}

type TransactionStore interface {
	Create(ctx context.Context, t *models.Transaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// Messenger delivers chat messages through the bot gateway.
type Messenger interface {
	Send(ctx context.Context, telegramUserID int64, msg OutMessage) (int64, error)
	Delete(ctx context.Context, telegramUserID int64, messageID int64) error
}

type KeyDecrypter interface {
	DecryptKey(ctx context.Context, encrypted string) ([]byte, error)
}

type PriceSource interface {
	GetReferencePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type BroadcastLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data,omitempty"`
	URL  string `json:"url,omitempty"`
}

type OutMessage struct {
	Text     string     `json:"text"`
	Keyboard [][]Button `json:"keyboard,omitempty"`
}
