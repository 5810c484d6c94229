package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is an append-only record of a successful broadcast.
type Transaction struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	TelegramUserID int64     `json:"telegram_user_id"`
	WalletAddress  string    `json:"wallet_address"`
	Chain          string    `json:"chain"`
	Operation      string    `json:"operation"` // mint/transfer/send/custom
	Protocol       *string   `json:"protocol,omitempty"`
	Hash           string    `json:"hash"`
	Ticker         *string   `json:"ticker,omitempty"`
	Amount         *string   `json:"amount,omitempty"`
	Recipient      *string   `json:"recipient,omitempty"`
	Payload        *string   `json:"payload,omitempty"`
	BroadcastAt    time.Time `json:"broadcast_at"`
	CreatedAt      time.Time `json:"created_at"`
}
