package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/inscribe-bot/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const txColumns = `id, user_id, telegram_user_id, wallet_address, chain, operation, protocol, hash,
	ticker, amount, recipient, payload, broadcast_at, created_at`

// TransactionRepo is append-only.
type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func (r *TransactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO transactions (
			user_id, telegram_user_id, wallet_address, chain, operation, protocol, hash,
			ticker, amount, recipient, payload, broadcast_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`, t.UserID, t.TelegramUserID, t.WalletAddress, t.Chain, t.Operation, t.Protocol, t.Hash,
		t.Ticker, t.Amount, t.Recipient, t.Payload, t.BroadcastAt,
	).Scan(&t.ID, &t.CreatedAt)
}

func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE user_id = $1
		ORDER BY broadcast_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.TelegramUserID, &t.WalletAddress, &t.Chain, &t.Operation,
			&t.Protocol, &t.Hash, &t.Ticker, &t.Amount, &t.Recipient, &t.Payload, &t.BroadcastAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
