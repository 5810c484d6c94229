package services

import (
	"context"
	"time"

	"github.com/inscribe-bot/backend/internal/events"
	"github.com/inscribe-bot/backend/internal/models"
	"go.uber.org/zap"
)

type StaleUserLister interface {
	ListStale(ctx context.Context, before time.Time, limit int) ([]models.User, error)
}

// Sweeper expires workflows abandoned mid-flow so that an old review can
// never be confirmed hours later.
type Sweeper struct {
	lister    StaleUserLister
	users     UserStore
	processes ProcessStore
	audit     AuditStore
	messenger Messenger
	publisher events.Publisher
	maxAge    time.Duration
	batch     int
	log       *zap.Logger
	now       func() time.Time
}

func NewSweeper(lister StaleUserLister, users UserStore, processes ProcessStore, audit AuditStore,
	messenger Messenger, publisher events.Publisher, maxAge time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{
		lister:    lister,
		users:     users,
		processes: processes,
		audit:     audit,
		messenger: messenger,
		publisher: publisher,
		maxAge:    maxAge,
		batch:     100,
		log:       log,
		now:       time.Now,
	}
}

// Sweep resets one batch of stale users and returns how many were reset.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.lister.ListStale(ctx, s.now().Add(-s.maxAge), s.batch)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, u := range stale {
		// confirming is left alone: a broadcast may still be in flight
		if u.State == models.StateConfirming {
			continue
		}
		ok, err := s.users.CompareAndSetState(ctx, u.TelegramUserID, u.State, models.StateIdle)
		if err != nil {
			s.log.Error("expire workflow failed", zap.Int64("telegram_user_id", u.TelegramUserID), zap.Error(err))
			continue
		}
		if !ok {
			continue // user acted in the meantime
		}
		if err := s.processes.Reset(ctx, u.TelegramUserID); err != nil {
			s.log.Warn("reset process failed", zap.Int64("telegram_user_id", u.TelegramUserID), zap.Error(err))
		}

		id := u.ID
		if err := s.audit.Log(ctx, models.AuditLog{
			UserID:         &id,
			TelegramUserID: u.TelegramUserID,
			ActorType:      "system",
			Action:         "expired",
			FromState:      u.State,
			ToState:        models.StateIdle,
		}); err != nil {
			s.log.Warn("audit log failed", zap.Int64("telegram_user_id", u.TelegramUserID), zap.String("action", "expired"), zap.Error(err))
		}
		if _, err := s.messenger.Send(ctx, u.TelegramUserID, OutMessage{
			Text: "⌛ Your unfinished operation expired and was cancelled.",
		}); err != nil {
			s.log.Warn("expiry notice failed", zap.Int64("telegram_user_id", u.TelegramUserID), zap.Error(err))
		}
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, events.StreamWorkflow, events.Event{
				Type:    events.EventWorkflowExpired,
				Payload: map[string]any{"user_id": u.ID.String(), "from_state": string(u.State)},
			}); err != nil {
				s.log.Warn("publish expiry event failed", zap.Int64("telegram_user_id", u.TelegramUserID), zap.Error(err))
			}
		}
		reset++
	}

	if reset > 0 {
		s.log.Info("stale workflows expired", zap.Int("count", reset))
	}
	return reset, nil
}
