package services

import (
	"errors"
	"fmt"

	"github.com/inscribe-bot/backend/internal/chain"
	"github.com/inscribe-bot/backend/internal/custody"
	"github.com/inscribe-bot/backend/internal/inscription"
)

// ValidationError is bad user input. The user is re-prompted and the state
// does not move.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// StalenessError sends a confirmation back to review (timeout, expensive_fee).
type StalenessError struct {
	Reason string
	Detail string
}

func (e *StalenessError) Error() string {
	return fmt.Sprintf("review is stale (%s): %s", e.Reason, e.Detail)
}

// ChainPreconditionError sends a confirmation back to review with a directive,
// e.g. an account that is not active on chain yet.
type ChainPreconditionError struct {
	Reason  string
	Address string
}

func (e *ChainPreconditionError) Error() string {
	return fmt.Sprintf("chain precondition failed (%s) for %s", e.Reason, e.Address)
}

func isValidation(err error) bool {
	var ve *ValidationError
	var ive *inscription.ValidationError
	return errors.As(err, &ve) || errors.As(err, &ive)
}

// terminalText picks the message shown when an error escapes the workflow.
func terminalText(err error) string {
	var be *chain.BroadcastError
	var pe *chain.ProviderError
	var ce *custody.CustodyError
	var me *inscription.MalformedPayloadError

	switch {
	case errors.As(err, &be):
		return fmt.Sprintf("❌ Transaction was not sent: %s\nNothing was retried. Start again when ready.", be.Reason)
	case errors.As(err, &pe):
		return fmt.Sprintf("⚠️ %s network is not responding right now. Please try again in a minute.", pe.Chain)
	case errors.As(err, &ce):
		return "🔒 Could not unlock your wallet key. The operation was cancelled."
	case errors.As(err, &me):
		return "❌ The prepared payload is malformed and was not sent. The operation was cancelled."
	default:
		return "❌ Something went wrong. The operation was cancelled."
	}
}
