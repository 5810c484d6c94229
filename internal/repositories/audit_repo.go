package repositories

import (
	"context"

	"github.com/inscribe-bot/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Log(ctx context.Context, entry models.AuditLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (user_id, telegram_user_id, actor_type, action, from_state, to_state, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.UserID, entry.TelegramUserID, entry.ActorType, entry.Action, entry.FromState, entry.ToState, entry.Meta)
	return err
}

func (r *AuditRepo) ListByTelegramID(ctx context.Context, telegramID int64, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, telegram_user_id, actor_type, action, from_state, to_state, meta, created_at
		FROM audit_log WHERE telegram_user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, telegramID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.TelegramUserID, &l.ActorType, &l.Action, &l.FromState, &l.ToState, &l.Meta, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
