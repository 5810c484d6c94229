package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet sources
const (
	WalletSourceGenerated = "generated"
	WalletSourceImported  = "imported"
)

// Wallet is a custodial key pair for one chain. At most one per (user, chain);
// the address is globally unique.
type Wallet struct {
	ID            uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"user_id"`
	Chain         string         `json:"chain"`
	Address       string         `json:"address"`
	EncryptedKey  string         `json:"-"` // custody ciphertext, base64
	Source        string         `json:"source"`
	FeePreference *FeePreference `json:"fee_preference,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	LastActiveAt  time.Time      `json:"last_active_at"`
}

// EffectiveFeePreference returns the wallet override or the user's default.
func (w *Wallet) EffectiveFeePreference(userPref FeePreference) FeePreference {
	if w.FeePreference != nil && IsValidFeePreference(*w.FeePreference) {
		return *w.FeePreference
	}
	if IsValidFeePreference(userPref) {
		return userPref
	}
	return FeeAuto
}
