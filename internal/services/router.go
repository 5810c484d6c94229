package services

import (
	"context"
	"strings"

	"github.com/inscribe-bot/backend/internal/models"
	"go.uber.org/zap"
)

// Update is one inbound chat event as forwarded by the bot gateway.
type Update struct {
	TelegramUserID int64  `json:"telegram_user_id"`
	Username       string `json:"username,omitempty"`
	Text           string `json:"text,omitempty"`
	CallbackData   string `json:"callback_data,omitempty"`
	MessageID      int64  `json:"message_id,omitempty"` // message carrying the pressed button
}

type handlerFunc func(ctx context.Context, u *models.User, value string) error

// action is a workflow entry point plus the states it may run in.
// A nil state list means any state.
type action struct {
	name   string
	states []models.WorkflowState
	run    handlerFunc
}

func (a action) allowedIn(s models.WorkflowState) bool {
	if a.states == nil {
		return true
	}
	for _, st := range a.states {
		if st == s {
			return true
		}
	}
	return false
}

// Router maps updates onto workflow entry points, gated by the user's
// current state so stale buttons cannot act on a flow that moved on.
type Router struct {
	users        UserStore
	wf           *WorkflowService
	defaultChain string
	log          *zap.Logger

	commands  map[string]action
	callbacks map[string]action
	byState   map[models.WorkflowState]action
}

func NewRouter(users UserStore, wf *WorkflowService, defaultChain string, log *zap.Logger) *Router {
	// flows may be (re)started from anywhere except mid-broadcast
	startable := []models.WorkflowState{
		models.StateIdle,
		models.StateMintProtocol, models.StateMintTicker, models.StateMintAmount,
		models.StateTransferProtocol, models.StateTransferTicker, models.StateTransferAmount, models.StateTransferRecipient,
		models.StateSendRecipient, models.StateSendAmount,
		models.StateCustomPayload,
		models.StateReview,
	}
	idleOnly := []models.WorkflowState{models.StateIdle}
	protocolStates := []models.WorkflowState{models.StateMintProtocol, models.StateTransferProtocol}

	startMint := action{"start_mint", startable, wf.StartMint}
	startTransfer := action{"start_transfer", startable, wf.StartTransfer}
	startSend := action{"start_send", startable, wf.StartSend}
	startCustom := action{"start_custom", startable, wf.StartCustom}
	cancel := action{"cancel", nil, wf.Cancel}
	selectChain := action{"select_chain", idleOnly, wf.SelectChain}
	setFee := action{"set_fee", idleOnly, wf.SetFeePreference}

	r := &Router{
		users:        users,
		wf:           wf,
		defaultChain: defaultChain,
		log:          log,
		commands: map[string]action{
			"/start":    {"welcome", nil, wf.Welcome},
			"/mint":     startMint,
			"/transfer": startTransfer,
			"/send":     startSend,
			"/custom":   startCustom,
			"/cancel":   cancel,
			"/wallet":   {"show_wallet", nil, wf.ShowWallet},
			"/history":  {"show_history", nil, wf.ShowHistory},
			"/chain":    selectChain,
			"/fee":      setFee,
		},
		callbacks: map[string]action{
			"op:mint":     startMint,
			"op:transfer": startTransfer,
			"op:send":     startSend,
			"op:custom":   startCustom,
			"proto":       {"select_protocol", protocolStates, wf.SelectProtocol},
			"chain":       selectChain,
			"fee":         setFee,
			"confirm":     {"confirm", []models.WorkflowState{models.StateReview}, wf.Confirm},
			"cancel":      cancel,
		},
		byState: map[models.WorkflowState]action{
			models.StateMintProtocol:      {"select_protocol", protocolStates, wf.SelectProtocol},
			models.StateTransferProtocol:  {"select_protocol", protocolStates, wf.SelectProtocol},
			models.StateMintTicker:        {"enter_ticker", nil, wf.EnterTicker},
			models.StateTransferTicker:    {"enter_ticker", nil, wf.EnterTicker},
			models.StateMintAmount:        {"enter_amount", nil, wf.EnterAmount},
			models.StateTransferAmount:    {"enter_amount", nil, wf.EnterAmount},
			models.StateSendAmount:        {"enter_amount", nil, wf.EnterAmount},
			models.StateTransferRecipient: {"enter_recipient", nil, wf.EnterRecipient},
			models.StateSendRecipient:     {"enter_recipient", nil, wf.EnterRecipient},
			models.StateCustomPayload:     {"enter_custom_payload", nil, wf.EnterCustomPayload},
		},
	}
	return r
}

// Handle processes one update. Any error escaping the workflow ends in a
// terminal message and a reset to idle; Handle only returns errors it could
// not report to the user.
func (r *Router) Handle(ctx context.Context, upd Update) error {
	var username *string
	if upd.Username != "" {
		username = &upd.Username
	}
	u, err := r.users.UpsertByTelegramID(ctx, upd.TelegramUserID, username, r.defaultChain)
	if err != nil {
		r.log.Error("load user failed", zap.Int64("telegram_user_id", upd.TelegramUserID), zap.Error(err))
		if _, sendErr := r.wf.Messenger.Send(ctx, upd.TelegramUserID, OutMessage{Text: terminalText(err)}); sendErr != nil {
			return sendErr
		}
		return nil
	}
	if u.State == "" {
		u.State = models.StateIdle
	}

	act, value, ok := r.resolve(u, upd)
	if !ok || !act.allowedIn(u.State) {
		r.log.Debug("update rejected for state",
			zap.Int64("telegram_user_id", u.TelegramUserID),
			zap.String("state", string(u.State)),
			zap.String("text", upd.Text),
			zap.String("callback", upd.CallbackData),
		)
		if upd.CallbackData != "" {
			r.wf.deleteQuietly(ctx, u, upd.MessageID)
		}
		return r.wf.say(ctx, u, invalidInputText(u.State))
	}

	if err := act.run(ctx, u, value); err != nil {
		r.fail(ctx, u, act.name, err)
	}
	return nil
}

func (r *Router) resolve(u *models.User, upd Update) (action, string, bool) {
	if data := strings.TrimSpace(upd.CallbackData); data != "" {
		if a, ok := r.callbacks[data]; ok {
			return a, "", true
		}
		prefix, value, found := strings.Cut(data, ":")
		if !found {
			return action{}, "", false
		}
		a, ok := r.callbacks[prefix]
		return a, value, ok
	}

	text := strings.TrimSpace(upd.Text)
	if strings.HasPrefix(text, "/") {
		cmd, arg, _ := strings.Cut(text, " ")
		cmd, _, _ = strings.Cut(cmd, "@") // /mint@SomeBot
		a, ok := r.commands[strings.ToLower(cmd)]
		return a, strings.TrimSpace(arg), ok
	}

	a, ok := r.byState[u.State]
	return a, text, ok
}

func (r *Router) fail(ctx context.Context, u *models.User, actionName string, err error) {
	r.log.Error("workflow action failed",
		zap.Int64("telegram_user_id", u.TelegramUserID),
		zap.String("action", actionName),
		zap.String("state", string(u.State)),
		zap.Error(err),
	)
	r.wf.ForceIdle(ctx, u, actionName)
	if _, sendErr := r.wf.Messenger.Send(ctx, u.TelegramUserID, OutMessage{Text: terminalText(err)}); sendErr != nil {
		r.log.Error("terminal message failed", zap.Int64("telegram_user_id", u.TelegramUserID), zap.Error(sendErr))
	}
}

func invalidInputText(state models.WorkflowState) string {
	switch {
	case state == models.StateIdle:
		return "⚠️ Invalid input. Use /mint, /transfer, /send or /custom to start."
	case state == models.StateConfirming:
		return "⏳ Your transaction is being sent, please wait."
	case state == models.StateReview:
		return "⚠️ Invalid input. Press Confirm or Cancel on the proposal."
	default:
		return "⚠️ Invalid input for this step. Send the requested value or /cancel."
	}
}
