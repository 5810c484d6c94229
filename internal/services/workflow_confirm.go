package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/inscribe-bot/backend/internal/chain"
	"github.com/inscribe-bot/backend/internal/custody"
	"github.com/inscribe-bot/backend/internal/events"
	"github.com/inscribe-bot/backend/internal/inscription"
	"github.com/inscribe-bot/backend/internal/models"
	"go.uber.org/zap"
)

// Confirm re-validates the reviewed proposal and broadcasts it.
//
// Only one confirm per review can get past the review -> confirming
// compare-and-set; the broadcast lock keyed by the review timestamp then
// guards against the same review being sent from another instance.
func (s *WorkflowService) Confirm(ctx context.Context, u *models.User, _ string) error {
	ok, err := s.Users.CompareAndSetState(ctx, u.TelegramUserID, models.StateReview, models.StateConfirming)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("duplicate confirm ignored", zap.Int64("telegram_user_id", u.TelegramUserID))
		return nil
	}
	s.auditLog(ctx, u, "confirm", models.StateReview, models.StateConfirming, nil)
	u.State = models.StateConfirming

	p, err := s.loadProcess(ctx, u)
	if err != nil {
		return err
	}
	if !p.HasReview() {
		if err := s.resetToIdle(ctx, u, "confirm_without_review"); err != nil {
			return err
		}
		return s.say(ctx, u, "Nothing to confirm. Start a new operation.")
	}

	adapter, w, err := s.walletFor(ctx, u, p.Chain)
	if err != nil {
		return err
	}

	if err := s.checkConfirmable(ctx, adapter, w, p); err != nil {
		var se *StalenessError
		var ce *ChainPreconditionError
		switch {
		case errors.As(err, &se):
			return s.retryReview(ctx, u, p, se.Reason)
		case errors.As(err, &ce):
			return s.retryReview(ctx, u, p, ce.Reason)
		}
		return err
	}

	lockKey := fmt.Sprintf("broadcast:%d:%d", u.TelegramUserID, p.ReviewedAt.UnixNano())
	acquired, err := s.Lock.Acquire(ctx, lockKey, s.cfg.BroadcastLockTTL)
	if err != nil {
		return fmt.Errorf("acquire broadcast lock: %w", err)
	}
	if !acquired {
		s.log.Warn("review already broadcast elsewhere", zap.String("lock", lockKey))
		if _, err := s.settle(ctx, u, "already_broadcast", nil); err != nil {
			return err
		}
		return s.say(ctx, u, "This proposal was already sent.")
	}

	return s.broadcast(ctx, u, adapter, w, p)
}

// checkConfirmable runs the staleness checks in order: time box, fee spike,
// then the chain precondition.
func (s *WorkflowService) checkConfirmable(ctx context.Context, adapter chain.Adapter, w *models.Wallet, p *models.Process) error {
	elapsed := s.now().Sub(p.ReviewedAt)
	if elapsed > s.cfg.ReviewWindow {
		return &StalenessError{Reason: models.RetryTimeout, Detail: fmt.Sprintf("reviewed %s ago", elapsed.Round(time.Second))}
	}

	snapshot, ok := new(big.Int).SetString(p.FeeRate, 10)
	if !ok {
		return fmt.Errorf("corrupt fee snapshot %q", p.FeeRate)
	}
	current, err := adapter.GetFeeRate(ctx)
	if err != nil {
		return err
	}
	if feeSpiked(snapshot, current, s.cfg.FeeSpikePercent) {
		return &StalenessError{Reason: models.RetryExpensiveFee, Detail: fmt.Sprintf("fee rate %s -> %s", snapshot, current)}
	}

	if checker, ok := adapter.(chain.ActivationChecker); ok {
		active, err := checker.IsAddressActivated(ctx, w.Address)
		if err != nil {
			return err
		}
		if !active {
			return &ChainPreconditionError{Reason: models.RetryAddressNotInitialized, Address: w.Address}
		}
	}
	return nil
}

// feeSpiked reports current > snapshot * (100+pct)/100.
func feeSpiked(snapshot, current *big.Int, pct int) bool {
	lhs := new(big.Int).Mul(current, big.NewInt(100))
	rhs := new(big.Int).Mul(snapshot, big.NewInt(int64(100+pct)))
	return lhs.Cmp(rhs) > 0
}

func retryNotice(reason string) string {
	switch reason {
	case models.RetryTimeout:
		return "⏱ The proposal expired. Here is a refreshed one with current fees:"
	case models.RetryExpensiveFee:
		return "📈 Network fees went up since you reviewed. Please check the new estimate:"
	case models.RetryAddressNotInitialized:
		return "💤 Your wallet is not activated on chain yet. Send a small amount to it first, then confirm again:"
	}
	return "Please review again:"
}

func (s *WorkflowService) retryReview(ctx context.Context, u *models.User, p *models.Process, reason string) error {
	s.auditLog(ctx, u, "retry_review", models.StateConfirming, models.StateReview, map[string]any{"reason": reason})
	s.log.Info("confirmation sent back to review",
		zap.Int64("telegram_user_id", u.TelegramUserID),
		zap.String("reason", reason),
	)
	return s.goToReview(ctx, u, p, retryNotice(reason))
}

func (s *WorkflowService) broadcast(ctx context.Context, u *models.User, adapter chain.Adapter, w *models.Wallet, p *models.Process) error {
	payload, err := s.sendablePayload(p)
	if err != nil {
		return err
	}

	key, err := s.Custody.DecryptKey(ctx, w.EncryptedKey)
	if err != nil {
		return err
	}
	defer custody.Wipe(key)

	var amount *big.Int
	if p.Operation == models.OpSend {
		amount, err = parseUnits(p.Amount, adapter.Decimals())
		if err != nil {
			return err
		}
	}

	res, err := adapter.BuildAndBroadcast(ctx, chain.BroadcastRequest{
		PrivateKey:    key,
		Payload:       payload,
		Recipient:     p.Recipient,
		FeePreference: w.EffectiveFeePreference(u.FeePreference),
		Amount:        amount,
	})
	if err != nil {
		return err
	}
	s.auditLog(ctx, u, "submitted", models.StateConfirming, models.StateIdle, map[string]any{"hash": res.Hash, "chain": adapter.Name()})

	tx := &models.Transaction{
		UserID:         u.ID,
		TelegramUserID: u.TelegramUserID,
		WalletAddress:  w.Address,
		Chain:          adapter.Name(),
		Operation:      p.Operation,
		Protocol:       optional(p.Protocol),
		Hash:           res.Hash,
		Ticker:         optional(p.Ticker),
		Amount:         optional(p.Amount),
		Recipient:      optional(p.Recipient),
		Payload:        optional(payload),
		BroadcastAt:    res.Timestamp,
	}
	// persisted before the user is told; the tx is already on chain either way
	if err := s.Transactions.Create(ctx, tx); err != nil {
		s.log.Error("failed to persist transaction",
			zap.Int64("telegram_user_id", u.TelegramUserID),
			zap.String("hash", res.Hash),
			zap.Error(err),
		)
	}

	settled, err := s.settle(ctx, u, "broadcast", map[string]any{"hash": res.Hash})
	if err != nil {
		s.log.Error("failed to reset after broadcast", zap.String("hash", res.Hash), zap.Error(err))
	} else if !settled {
		s.log.Warn("state moved on during broadcast; keeping the newer flow",
			zap.Int64("telegram_user_id", u.TelegramUserID),
			zap.String("hash", res.Hash),
		)
	}
	s.deleteQuietly(ctx, u, p.ReviewMessageID)

	url := adapter.ExplorerURL(res.Hash)
	if _, err := s.send(ctx, u, OutMessage{
		Text:     fmt.Sprintf("✅ %s sent on %s\nHash: %s", p.Operation, adapter.Name(), res.Hash),
		Keyboard: [][]Button{{{Text: "View in explorer", URL: url}}},
	}); err != nil {
		s.log.Warn("confirmation message failed", zap.String("hash", res.Hash), zap.Error(err))
	}

	// advisory
	if err := s.Wallets.TouchLastActive(ctx, w.ID); err != nil {
		s.log.Warn("wallet last-active bump failed", zap.Error(err))
	}
	if err := s.Users.UpdateLastActive(ctx, u.ID); err != nil {
		s.log.Warn("user last-active bump failed", zap.Error(err))
	}
	if s.Publisher != nil {
		if err := s.Publisher.Publish(ctx, events.StreamTx, events.Event{
			Type: events.EventTxBroadcast,
			Payload: map[string]any{
				"user_id":      u.ID.String(),
				"chain":        adapter.Name(),
				"operation":    p.Operation,
				"hash":         res.Hash,
				"explorer_url": url,
			},
		}); err != nil {
			s.log.Warn("publish tx event failed", zap.Error(err))
		}
	}

	s.log.Info("transaction broadcast",
		zap.Int64("telegram_user_id", u.TelegramUserID),
		zap.String("chain", adapter.Name()),
		zap.String("op", p.Operation),
		zap.String("hash", res.Hash),
	)
	return nil
}

// sendablePayload returns the payload to put on chain. Inscriptions must
// still decode to the reviewed values, before and after the nonce refresh.
func (s *WorkflowService) sendablePayload(p *models.Process) (string, error) {
	if !isInscription(p.Operation) {
		return p.Payload, nil
	}
	if _, err := s.decodePayload(p, p.Payload); err != nil {
		return "", err
	}
	asm, err := s.assembler(p)
	if err != nil {
		return "", err
	}
	if !asm.UsesNonce() {
		return p.Payload, nil
	}

	payload, err := inscription.RefreshNonce(p.Payload)
	if err != nil {
		return "", err
	}
	if _, err := s.decodePayload(p, payload); err != nil {
		return "", err
	}
	return payload, nil
}

// settle moves confirming -> idle and clears the process. If the user is no
// longer confirming, whatever flow they are in now is left untouched and
// settle reports false.
func (s *WorkflowService) settle(ctx context.Context, u *models.User, action string, meta map[string]any) (bool, error) {
	ok, err := s.Users.CompareAndSetState(ctx, u.TelegramUserID, models.StateConfirming, models.StateIdle)
	if err != nil {
		return false, fmt.Errorf("settle %s: %w", action, err)
	}
	if !ok {
		return false, nil
	}
	u.State = models.StateIdle
	s.auditLog(ctx, u, action, models.StateConfirming, models.StateIdle, meta)
	if err := s.Processes.Reset(ctx, u.TelegramUserID); err != nil {
		return true, fmt.Errorf("reset process: %w", err)
	}
	return true, nil
}

// Cancel lands in idle. A broadcast in flight cannot be cancelled; only a
// confirming state older than any broadcast could take is released, and the
// broadcast lock still keeps that review from being sent again.
func (s *WorkflowService) Cancel(ctx context.Context, u *models.User, _ string) error {
	if u.State == models.StateIdle {
		return s.say(ctx, u, "Nothing to cancel.")
	}
	p, err := s.loadProcess(ctx, u)
	if err != nil {
		return err
	}

	if u.State == models.StateConfirming {
		if s.now().Sub(p.ReviewedAt) <= s.cfg.ReviewWindow+s.cfg.BroadcastLockTTL {
			return s.say(ctx, u, "⏳ Your transaction is being sent, please wait.")
		}
		settled, err := s.settle(ctx, u, "cancel_stuck", nil)
		if err != nil {
			return err
		}
		if !settled {
			return s.say(ctx, u, "Nothing to cancel.")
		}
		s.log.Warn("released stuck confirmation", zap.Int64("telegram_user_id", u.TelegramUserID))
		s.deleteQuietly(ctx, u, p.ReviewMessageID)
		return s.say(ctx, u, "Cancelled. The last send never reported back, check /history before trying again.")
	}

	if err := s.resetToIdle(ctx, u, "cancel"); err != nil {
		return err
	}
	s.deleteQuietly(ctx, u, p.ReviewMessageID)
	return s.say(ctx, u, "Cancelled.")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
