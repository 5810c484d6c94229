package dto

import (
	"time"

	"github.com/google/uuid"
)

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// WalletResponse is a wallet with its live balance. Balance is nil when the
// chain could not be reached.
type WalletResponse struct {
	ID            uuid.UUID `json:"id"`
	Chain         string    `json:"chain"`
	Address       string    `json:"address"`
	Symbol        string    `json:"symbol"`
	Balance       *string   `json:"balance"`
	FeePreference string    `json:"fee_preference"`
	LastActiveAt  time.Time `json:"last_active_at"`
}

type TransactionResponse struct {
	ID          uuid.UUID `json:"id"`
	Chain       string    `json:"chain"`
	Operation   string    `json:"operation"`
	Protocol    *string   `json:"protocol,omitempty"`
	Ticker      *string   `json:"ticker,omitempty"`
	Amount      *string   `json:"amount,omitempty"`
	Recipient   *string   `json:"recipient,omitempty"`
	Hash        string    `json:"hash"`
	ExplorerURL string    `json:"explorer_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
