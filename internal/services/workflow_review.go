package services

import (
	"context"
	"fmt"
	"maps"
	"math/big"
	"strings"

	"github.com/inscribe-bot/backend/internal/chain"
	"github.com/inscribe-bot/backend/internal/inscription"
	"github.com/inscribe-bot/backend/internal/models"
)

// goToReview assembles the payload from stored inputs, prices it against
// fresh chain data and shows the proposal. It is the only place a fee
// snapshot is taken. notice, when set, is sent ahead of the proposal.
func (s *WorkflowService) goToReview(ctx context.Context, u *models.User, p *models.Process, notice string) error {
	adapter, w, err := s.walletFor(ctx, u, p.Chain)
	if err != nil {
		return err
	}

	payload, extra, err := s.buildPayload(adapter, p)
	if err != nil {
		return err
	}
	// the proposal shows what the payload decodes to, not what was typed
	var desc *inscription.Descriptor
	if isInscription(p.Operation) {
		if desc, err = s.decodePayload(p, payload); err != nil {
			return err
		}
	}

	pref := w.EffectiveFeePreference(u.FeePreference)
	aff, err := s.Validator.Check(ctx, adapter, w.Address, payload, pref, extra)
	if err != nil {
		return err
	}

	if notice != "" {
		if err := s.say(ctx, u, notice); err != nil {
			return err
		}
	}
	s.deleteQuietly(ctx, u, p.ReviewMessageID)

	p.Payload = payload
	p.FeeRate = aff.FeeRate.String()
	p.ReviewedAt = s.now()

	msgID, err := s.send(ctx, u, OutMessage{
		Text: s.renderProposal(adapter, w, p, desc, pref, aff),
		Keyboard: [][]Button{{
			{Text: "✅ Confirm", Data: "confirm"},
			{Text: "Cancel", Data: "cancel"},
		}},
	})
	if err != nil {
		return err
	}
	p.ReviewMessageID = msgID

	if err := s.Processes.Save(ctx, p); err != nil {
		return err
	}
	return s.transition(ctx, u, models.StateReview, "review", map[string]any{
		"fee_rate":   p.FeeRate,
		"has_enough": aff.HasEnough,
	})
}

// buildPayload returns the on-chain data and the native value to transfer.
func (s *WorkflowService) buildPayload(adapter chain.Adapter, p *models.Process) (string, *big.Int, error) {
	switch p.Operation {
	case models.OpMint, models.OpTransfer:
		asm, err := s.assembler(p)
		if err != nil {
			return "", nil, err
		}
		payload, err := asm.Assemble(p.Operation, inscriptionFields(p))
		return payload, nil, err
	case models.OpSend:
		units, err := parseUnits(p.Amount, adapter.Decimals())
		return "", units, err
	case models.OpCustom:
		return p.Payload, nil, nil
	}
	return "", nil, fmt.Errorf("unknown operation %q", p.Operation)
}

func isInscription(op string) bool {
	return op == models.OpMint || op == models.OpTransfer
}

// inscriptionFields maps the collected inputs onto the operation's keys.
func inscriptionFields(p *models.Process) map[string]string {
	inputs := map[string]string{"tick": p.Ticker, "amt": p.Amount, "to": p.Recipient}
	fields := make(map[string]string)
	for _, k := range inscription.RequiredFields(p.Operation) {
		fields[k] = inputs[k]
	}
	return fields
}

func (s *WorkflowService) assembler(p *models.Process) (inscription.Assembler, error) {
	asm, ok := s.Assemblers.Get(p.Chain, p.Protocol)
	if !ok {
		return nil, fmt.Errorf("protocol %s not registered for %s", p.Protocol, p.Chain)
	}
	return asm, nil
}

// decodePayload reads an assembled payload back and checks it carries the
// operation and values the user entered.
func (s *WorkflowService) decodePayload(p *models.Process, payload string) (*inscription.Descriptor, error) {
	asm, err := s.assembler(p)
	if err != nil {
		return nil, err
	}
	d, err := asm.Parse(payload)
	if err != nil {
		return nil, err
	}
	if d.Op != p.Operation {
		return nil, &inscription.MalformedPayloadError{Reason: fmt.Sprintf("payload op %q, expected %q", d.Op, p.Operation)}
	}
	if !maps.Equal(d.Fields, inscriptionFields(p)) {
		return nil, &inscription.MalformedPayloadError{Reason: "payload fields differ from the entered values"}
	}
	return d, nil
}

var fieldLabels = map[string]string{
	"tick": "Ticker",
	"amt":  "Amount",
	"to":   "To",
	"max":  "Max supply",
	"lim":  "Mint limit",
}

func (s *WorkflowService) renderProposal(adapter chain.Adapter, w *models.Wallet, p *models.Process, d *inscription.Descriptor, pref models.FeePreference, aff *Affordability) string {
	var b strings.Builder
	dec := adapter.Decimals()
	sym := adapter.Symbol()

	fmt.Fprintf(&b, "📝 Review %s on %s\n", p.Operation, adapter.Name())
	fmt.Fprintf(&b, "From: %s\n", w.Address)
	switch {
	case d != nil:
		fmt.Fprintf(&b, "Protocol: %s\n", d.Protocol)
		for _, k := range inscription.RequiredFields(d.Op) {
			fmt.Fprintf(&b, "%s: %s\n", fieldLabels[k], d.Fields[k])
		}
	case p.Operation == models.OpSend:
		fmt.Fprintf(&b, "To: %s\n", p.Recipient)
		fmt.Fprintf(&b, "Amount: %s %s\n", p.Amount, sym)
	}
	if p.Payload != "" {
		fmt.Fprintf(&b, "Payload: %s\n", p.Payload)
	}

	fmt.Fprintf(&b, "\nFee preference: %s\n", pref)
	fmt.Fprintf(&b, "Estimated fee: %s %s", formatUnits(aff.Cost, dec), sym)
	if aff.CostUSD != nil {
		fmt.Fprintf(&b, " (~$%s)", aff.CostUSD.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nBalance: %s %s\n", formatUnits(aff.Balance, dec), sym)

	if !aff.HasEnough {
		fmt.Fprintf(&b, "\n⚠️ Balance is below the estimated %s %s. The transaction will likely fail, but you may still confirm.\n",
			formatUnits(aff.Required, dec), sym)
	}
	fmt.Fprintf(&b, "\nConfirm within %d seconds.", int(s.cfg.ReviewWindow.Seconds()))
	return b.String()
}
