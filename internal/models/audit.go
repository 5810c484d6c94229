package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records workflow transitions, including the transient
// retry_review and submitted steps that are never persisted as state.
type AuditLog struct {
	ID             uuid.UUID      `json:"id"`
	UserID         *uuid.UUID     `json:"user_id,omitempty"`
	TelegramUserID int64          `json:"telegram_user_id"`
	ActorType      string         `json:"actor_type"` // user/system
	Action         string         `json:"action"`
	FromState      WorkflowState  `json:"from_state"`
	ToState        WorkflowState  `json:"to_state"`
	Meta           map[string]any `json:"meta,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
