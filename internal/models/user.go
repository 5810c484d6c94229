package models

import (
	"time"

	"github.com/google/uuid"
)

// FeePreference controls how aggressively a transaction is priced.
type FeePreference string

const (
	FeeAuto   FeePreference = "auto"
	FeeLow    FeePreference = "low"
	FeeMedium FeePreference = "medium"
	FeeHigh   FeePreference = "high"
)

func IsValidFeePreference(p FeePreference) bool {
	switch p {
	case FeeAuto, FeeLow, FeeMedium, FeeHigh:
		return true
	}
	return false
}

type User struct {
	ID             uuid.UUID     `json:"id"`
	TelegramUserID int64         `json:"telegram_user_id"`
	Username       *string       `json:"username,omitempty"`
	State          WorkflowState `json:"state"`
	ActiveChain    string        `json:"active_chain"`
	FeePreference  FeePreference `json:"fee_preference"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActiveAt   time.Time     `json:"last_active_at"`
}
