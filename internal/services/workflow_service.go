package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inscribe-bot/backend/internal/chain"
	"github.com/inscribe-bot/backend/internal/events"
	"github.com/inscribe-bot/backend/internal/inscription"
	"github.com/inscribe-bot/backend/internal/models"
	"go.uber.org/zap"
)

type WorkflowConfig struct {
	ReviewWindow     time.Duration
	FeeSpikePercent  int
	BroadcastLockTTL time.Duration
	MaxCustomPayload int // bytes
}

type WorkflowDeps struct {
	Users        UserStore
	Wallets      WalletStore
	Processes    ProcessStore
	Transactions TransactionStore
	Audit        AuditStore
	Chains       *chain.Registry
	Assemblers   *inscription.Registry
	Validator    *CostValidator
	Custody      KeyDecrypter
	Lock         BroadcastLock
	Messenger    Messenger
	Publisher    events.Publisher
}

// WorkflowService drives one user at a time through
// input -> review -> confirm -> broadcast. Every entry point takes the user as
// loaded by the router and the raw value the user supplied.
type WorkflowService struct {
	WorkflowDeps
	cfg WorkflowConfig
	log *zap.Logger
	now func() time.Time
}

func NewWorkflowService(deps WorkflowDeps, cfg WorkflowConfig, log *zap.Logger) *WorkflowService {
	if cfg.ReviewWindow <= 0 {
		cfg.ReviewWindow = 60 * time.Second
	}
	if cfg.FeeSpikePercent <= 0 {
		cfg.FeeSpikePercent = 10
	}
	if cfg.BroadcastLockTTL <= 0 {
		cfg.BroadcastLockTTL = 5 * time.Minute
	}
	if cfg.MaxCustomPayload <= 0 {
		cfg.MaxCustomPayload = 4096
	}
	return &WorkflowService{WorkflowDeps: deps, cfg: cfg, log: log, now: time.Now}
}

// transition validates and persists a state change with audit logging.
func (s *WorkflowService) transition(ctx context.Context, u *models.User, to models.WorkflowState, action string, meta map[string]any) error {
	from := u.State
	if from == "" {
		from = models.StateIdle
	}
	if !models.IsValidTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	if err := s.Users.SetState(ctx, u.TelegramUserID, to); err != nil {
		return fmt.Errorf("set state %s: %w", to, err)
	}
	u.State = to

	s.auditLog(ctx, u, action, from, to, meta)
	s.log.Info("workflow transition",
		zap.Int64("telegram_user_id", u.TelegramUserID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("action", action),
	)
	return nil
}

// auditLog also records the transient retry_review and submitted steps.
func (s *WorkflowService) auditLog(ctx context.Context, u *models.User, action string, from, to models.WorkflowState, meta map[string]any) {
	if s.Audit == nil {
		return
	}
	id := u.ID
	if err := s.Audit.Log(ctx, models.AuditLog{
		UserID:         &id,
		TelegramUserID: u.TelegramUserID,
		ActorType:      "user",
		Action:         action,
		FromState:      from,
		ToState:        to,
		Meta:           meta,
	}); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *WorkflowService) send(ctx context.Context, u *models.User, msg OutMessage) (int64, error) {
	id, err := s.Messenger.Send(ctx, u.TelegramUserID, msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return id, nil
}

func (s *WorkflowService) say(ctx context.Context, u *models.User, text string) error {
	_, err := s.send(ctx, u, OutMessage{Text: text})
	return err
}

// reject answers a validation failure without moving the state.
func (s *WorkflowService) reject(ctx context.Context, u *models.User, err error) error {
	s.log.Debug("input rejected",
		zap.Int64("telegram_user_id", u.TelegramUserID),
		zap.String("state", string(u.State)),
		zap.Error(err),
	)
	return s.say(ctx, u, "⚠️ Invalid input: "+err.Error())
}

// deleteQuietly removes a bot message, ignoring failures.
func (s *WorkflowService) deleteQuietly(ctx context.Context, u *models.User, messageID int64) {
	if messageID == 0 {
		return
	}
	if err := s.Messenger.Delete(ctx, u.TelegramUserID, messageID); err != nil {
		s.log.Debug("delete message failed", zap.Int64("message_id", messageID), zap.Error(err))
	}
}

var errNoWallet = errors.New("no wallet")

// walletFor resolves the adapter and the user's wallet on chainName.
func (s *WorkflowService) walletFor(ctx context.Context, u *models.User, chainName string) (chain.Adapter, *models.Wallet, error) {
	adapter, err := s.Chains.Get(chainName)
	if err != nil {
		return nil, nil, &ValidationError{Field: "chain", Reason: err.Error()}
	}
	w, err := s.Wallets.GetByUserAndChain(ctx, u.ID, adapter.Name())
	if errors.Is(err, models.ErrNotFound) {
		return adapter, nil, errNoWallet
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load wallet: %w", err)
	}
	return adapter, w, nil
}

func (s *WorkflowService) loadProcess(ctx context.Context, u *models.User) (*models.Process, error) {
	p, err := s.Processes.Load(ctx, u.TelegramUserID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// resetToIdle wipes the process record and forces the user to idle.
func (s *WorkflowService) resetToIdle(ctx context.Context, u *models.User, action string) error {
	if err := s.Processes.Reset(ctx, u.TelegramUserID); err != nil {
		return fmt.Errorf("reset process: %w", err)
	}
	if u.State == models.StateIdle {
		return nil
	}
	return s.transition(ctx, u, models.StateIdle, action, nil)
}

// ForceIdle is the router's escape hatch after an escaped error. It does not
// validate the transition and never fails on a missing record.
func (s *WorkflowService) ForceIdle(ctx context.Context, u *models.User, reason string) {
	if err := s.Processes.Reset(ctx, u.TelegramUserID); err != nil {
		s.log.Error("reset process failed", zap.Int64("telegram_user_id", u.TelegramUserID), zap.Error(err))
	}
	if err := s.Users.SetState(ctx, u.TelegramUserID, models.StateIdle); err != nil {
		s.log.Error("reset state failed", zap.Int64("telegram_user_id", u.TelegramUserID), zap.Error(err))
		return
	}
	from := u.State
	u.State = models.StateIdle
	s.auditLog(ctx, u, "reset", from, models.StateIdle, map[string]any{"reason": reason})
}
