package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inscribe-bot/backend/internal/inscription"
	"github.com/inscribe-bot/backend/internal/models"
	"go.uber.org/zap"
)

func (s *WorkflowService) StartMint(ctx context.Context, u *models.User, _ string) error {
	return s.startFlow(ctx, u, models.OpMint, true)
}

func (s *WorkflowService) StartTransfer(ctx context.Context, u *models.User, _ string) error {
	return s.startFlow(ctx, u, models.OpTransfer, true)
}

// StartSend does not block on an empty wallet: the amount step checks it.
func (s *WorkflowService) StartSend(ctx context.Context, u *models.User, _ string) error {
	return s.startFlow(ctx, u, models.OpSend, false)
}

func (s *WorkflowService) StartCustom(ctx context.Context, u *models.User, _ string) error {
	return s.startFlow(ctx, u, models.OpCustom, true)
}

func (s *WorkflowService) startFlow(ctx context.Context, u *models.User, op string, requireBalance bool) error {
	first, ok := models.FirstInputState(op)
	if !ok {
		return fmt.Errorf("unknown operation %q", op)
	}

	adapter, w, err := s.walletFor(ctx, u, u.ActiveChain)
	if errors.Is(err, errNoWallet) {
		return s.say(ctx, u, fmt.Sprintf("You have no %s wallet yet. Create one in the app first.", adapter.Symbol()))
	}
	if err != nil {
		if isValidation(err) {
			return s.reject(ctx, u, err)
		}
		return err
	}

	if requireBalance {
		bal, err := adapter.GetBalance(ctx, w.Address)
		if err != nil {
			return err
		}
		if bal.Sign() == 0 {
			s.log.Info("flow blocked: empty wallet",
				zap.Int64("telegram_user_id", u.TelegramUserID),
				zap.String("op", op),
				zap.String("chain", adapter.Name()),
			)
			return s.say(ctx, u, fmt.Sprintf("🚫 Insufficient asset: your %s wallet %s holds no %s. Top it up to pay network fees.",
				adapter.Name(), w.Address, adapter.Symbol()))
		}
	}

	// a new flow replaces whatever the previous one left behind
	if u.State != models.StateIdle {
		if err := s.transition(ctx, u, models.StateIdle, "abandoned", map[string]any{"new_op": op}); err != nil {
			return err
		}
	}
	if err := s.Processes.Save(ctx, &models.Process{
		TelegramUserID: u.TelegramUserID,
		Operation:      op,
		Chain:          adapter.Name(),
	}); err != nil {
		return err
	}
	if err := s.transition(ctx, u, first, "start_"+op, map[string]any{"chain": adapter.Name()}); err != nil {
		return err
	}

	switch first {
	case models.StateMintProtocol, models.StateTransferProtocol:
		return s.promptProtocol(ctx, u, adapter.Name())
	case models.StateSendRecipient:
		return s.say(ctx, u, fmt.Sprintf("Enter the recipient %s address:", adapter.Symbol()))
	case models.StateCustomPayload:
		return s.say(ctx, u, "Send the raw payload to inscribe (text or data: URI):")
	}
	return nil
}

func (s *WorkflowService) promptProtocol(ctx context.Context, u *models.User, chainName string) error {
	protocols := s.Assemblers.Protocols(chainName)
	if len(protocols) == 0 {
		if err := s.resetToIdle(ctx, u, "no_protocols"); err != nil {
			return err
		}
		return s.say(ctx, u, "No inscription protocols are available on "+chainName+".")
	}
	row := make([]Button, 0, len(protocols))
	for _, p := range protocols {
		row = append(row, Button{Text: p, Data: "proto:" + p})
	}
	_, err := s.send(ctx, u, OutMessage{
		Text:     "Choose a protocol:",
		Keyboard: [][]Button{row, {{Text: "Cancel", Data: "cancel"}}},
	})
	return err
}

func (s *WorkflowService) SelectProtocol(ctx context.Context, u *models.User, value string) error {
	p, err := s.loadProcess(ctx, u)
	if err != nil {
		return err
	}
	asm, ok := s.Assemblers.Get(p.Chain, strings.TrimSpace(value))
	if !ok {
		return s.reject(ctx, u, &ValidationError{Field: "protocol", Reason: fmt.Sprintf("%q is not supported on %s", value, p.Chain)})
	}
	p.Protocol = asm.Protocol()
	if err := s.Processes.Save(ctx, p); err != nil {
		return err
	}

	next := models.StateMintTicker
	if u.State == models.StateTransferProtocol {
		next = models.StateTransferTicker
	}
	if err := s.transition(ctx, u, next, "select_protocol", map[string]any{"protocol": p.Protocol}); err != nil {
		return err
	}
	return s.say(ctx, u, fmt.Sprintf("Protocol %s. Enter the ticker:", p.Protocol))
}

func (s *WorkflowService) EnterTicker(ctx context.Context, u *models.User, value string) error {
	ticker := strings.TrimSpace(value)
	if err := inscription.ValidateField("tick", ticker); err != nil {
		return s.reject(ctx, u, err)
	}
	p, err := s.loadProcess(ctx, u)
	if err != nil {
		return err
	}
	p.Ticker = ticker
	if err := s.Processes.Save(ctx, p); err != nil {
		return err
	}

	next := models.StateMintAmount
	if u.State == models.StateTransferTicker {
		next = models.StateTransferAmount
	}
	if err := s.transition(ctx, u, next, "enter_ticker", nil); err != nil {
		return err
	}
	return s.say(ctx, u, fmt.Sprintf("Ticker %s. Enter the amount:", ticker))
}

func (s *WorkflowService) EnterAmount(ctx context.Context, u *models.User, value string) error {
	amount := strings.TrimSpace(value)
	p, err := s.loadProcess(ctx, u)
	if err != nil {
		return err
	}

	switch u.State {
	case models.StateSendAmount:
		adapter, w, err := s.walletFor(ctx, u, p.Chain)
		if err != nil {
			return err
		}
		units, err := parseUnits(amount, adapter.Decimals())
		if err != nil {
			return s.reject(ctx, u, err)
		}
		bal, err := adapter.GetBalance(ctx, w.Address)
		if err != nil {
			return err
		}
		if units.Cmp(bal) > 0 {
			return s.reject(ctx, u, &ValidationError{Field: "amount",
				Reason: fmt.Sprintf("exceeds your balance of %s %s", formatUnits(bal, adapter.Decimals()), adapter.Symbol())})
		}
	default:
		if err := inscription.ValidateField("amt", amount); err != nil {
			return s.reject(ctx, u, err)
		}
	}

	p.Amount = amount
	if err := s.Processes.Save(ctx, p); err != nil {
		return err
	}

	if u.State == models.StateTransferAmount {
		if err := s.transition(ctx, u, models.StateTransferRecipient, "enter_amount", nil); err != nil {
			return err
		}
		return s.say(ctx, u, "Enter the recipient address:")
	}
	return s.goToReview(ctx, u, p, "")
}

func (s *WorkflowService) EnterRecipient(ctx context.Context, u *models.User, value string) error {
	recipient := strings.TrimSpace(value)
	p, err := s.loadProcess(ctx, u)
	if err != nil {
		return err
	}
	adapter, err := s.Chains.Get(p.Chain)
	if err != nil {
		return err
	}
	if !adapter.ValidateAddress(recipient) {
		return s.reject(ctx, u, &ValidationError{Field: "recipient", Reason: fmt.Sprintf("not a valid %s address", adapter.Name())})
	}

	p.Recipient = recipient
	if err := s.Processes.Save(ctx, p); err != nil {
		return err
	}

	if u.State == models.StateSendRecipient {
		if err := s.transition(ctx, u, models.StateSendAmount, "enter_recipient", nil); err != nil {
			return err
		}
		return s.say(ctx, u, fmt.Sprintf("Enter the amount of %s to send:", adapter.Symbol()))
	}
	return s.goToReview(ctx, u, p, "")
}

func (s *WorkflowService) EnterCustomPayload(ctx context.Context, u *models.User, value string) error {
	payload := strings.TrimSpace(value)
	if payload == "" {
		return s.reject(ctx, u, &ValidationError{Field: "payload", Reason: "empty"})
	}
	if len(payload) > s.cfg.MaxCustomPayload {
		return s.reject(ctx, u, &ValidationError{Field: "payload", Reason: fmt.Sprintf("longer than %d bytes", s.cfg.MaxCustomPayload)})
	}
	p, err := s.loadProcess(ctx, u)
	if err != nil {
		return err
	}
	p.Payload = payload
	if err := s.Processes.Save(ctx, p); err != nil {
		return err
	}
	return s.goToReview(ctx, u, p, "")
}
