package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/inscribe-bot/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const walletColumns = `id, user_id, chain, address, encrypted_key, source, fee_preference, created_at, last_active_at`

// WalletRepo is read-only apart from the last-active bump; wallets are
// created by the onboarding flow.
type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Chain, &w.Address, &w.EncryptedKey, &w.Source, &w.FeePreference, &w.CreatedAt, &w.LastActiveAt)
	if err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (r *WalletRepo) GetByUserAndChain(ctx context.Context, userID uuid.UUID, chain string) (*models.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx, `
		SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 AND chain = $2
	`, userID, chain))
}

func (r *WalletRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 ORDER BY chain
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, *w)
	}
	return wallets, rows.Err()
}

func (r *WalletRepo) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE wallets SET last_active_at = now() WHERE id = $1`, id)
	return err
}
