package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/inscribe-bot/backend/internal/models"
	"go.uber.org/zap"
)

func (s *WorkflowService) Welcome(ctx context.Context, u *models.User, _ string) error {
	_, err := s.send(ctx, u, OutMessage{
		Text: fmt.Sprintf("👋 Inscription wallet. Active chain: %s, fee preference: %s.\nWhat would you like to do?",
			u.ActiveChain, u.FeePreference),
		Keyboard: [][]Button{
			{{Text: "Mint", Data: "op:mint"}, {Text: "Transfer", Data: "op:transfer"}},
			{{Text: "Send", Data: "op:send"}, {Text: "Custom", Data: "op:custom"}},
		},
	})
	return err
}

// SelectChain without a value shows the chain picker.
func (s *WorkflowService) SelectChain(ctx context.Context, u *models.User, value string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		var row []Button
		for _, name := range s.Chains.Names() {
			row = append(row, Button{Text: name, Data: "chain:" + name})
		}
		_, err := s.send(ctx, u, OutMessage{Text: "Active chain: " + u.ActiveChain + ". Switch to:", Keyboard: [][]Button{row}})
		return err
	}

	adapter, err := s.Chains.Get(value)
	if err != nil {
		return s.reject(ctx, u, &ValidationError{Field: "chain", Reason: err.Error()})
	}
	if err := s.Users.SetActiveChain(ctx, u.TelegramUserID, adapter.Name()); err != nil {
		return err
	}
	u.ActiveChain = adapter.Name()
	s.log.Info("active chain changed", zap.Int64("telegram_user_id", u.TelegramUserID), zap.String("chain", adapter.Name()))
	return s.say(ctx, u, "Active chain set to "+adapter.Name()+".")
}

// SetFeePreference without a value shows the picker.
func (s *WorkflowService) SetFeePreference(ctx context.Context, u *models.User, value string) error {
	pref := models.FeePreference(strings.ToLower(strings.TrimSpace(value)))
	if pref == "" {
		_, err := s.send(ctx, u, OutMessage{
			Text: "Fee preference: " + string(u.FeePreference) + ". Choose:",
			Keyboard: [][]Button{{
				{Text: "auto", Data: "fee:auto"},
				{Text: "low", Data: "fee:low"},
				{Text: "medium", Data: "fee:medium"},
				{Text: "high", Data: "fee:high"},
			}},
		})
		return err
	}
	if !models.IsValidFeePreference(pref) {
		return s.reject(ctx, u, &ValidationError{Field: "fee", Reason: "use auto, low, medium or high"})
	}
	if err := s.Users.SetFeePreference(ctx, u.TelegramUserID, pref); err != nil {
		return err
	}
	u.FeePreference = pref
	return s.say(ctx, u, "Fee preference set to "+string(pref)+".")
}

// ShowWallet lists the user's wallets with live balances. A provider failure
// for one chain does not hide the others.
func (s *WorkflowService) ShowWallet(ctx context.Context, u *models.User, _ string) error {
	wallets, err := s.Wallets.ListByUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		return s.say(ctx, u, "You have no wallets yet. Create one in the app.")
	}

	var b strings.Builder
	b.WriteString("👛 Your wallets\n")
	for _, w := range wallets {
		adapter, err := s.Chains.Get(w.Chain)
		if err != nil {
			continue
		}
		marker := ""
		if w.Chain == u.ActiveChain {
			marker = " (active)"
		}
		fmt.Fprintf(&b, "\n%s%s\n%s\n", w.Chain, marker, w.Address)
		bal, err := adapter.GetBalance(ctx, w.Address)
		if err != nil {
			s.log.Warn("balance unavailable", zap.String("chain", w.Chain), zap.Error(err))
			b.WriteString("Balance: unavailable\n")
			continue
		}
		fmt.Fprintf(&b, "Balance: %s %s\n", formatUnits(bal, adapter.Decimals()), adapter.Symbol())
	}
	return s.say(ctx, u, b.String())
}

func (s *WorkflowService) ShowHistory(ctx context.Context, u *models.User, _ string) error {
	txs, err := s.Transactions.ListByUser(ctx, u.ID, 10, 0)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		return s.say(ctx, u, "No transactions yet.")
	}

	var b strings.Builder
	b.WriteString("📜 Recent transactions\n")
	for _, t := range txs {
		fmt.Fprintf(&b, "\n%s %s", t.BroadcastAt.UTC().Format("2006-01-02 15:04"), t.Operation)
		if t.Ticker != nil {
			fmt.Fprintf(&b, " %s", *t.Ticker)
		}
		if t.Amount != nil {
			fmt.Fprintf(&b, " %s", *t.Amount)
		}
		fmt.Fprintf(&b, " on %s\n", t.Chain)
		if adapter, err := s.Chains.Get(t.Chain); err == nil {
			b.WriteString(adapter.ExplorerURL(t.Hash) + "\n")
		} else {
			b.WriteString(t.Hash + "\n")
		}
	}
	return s.say(ctx, u, b.String())
}
