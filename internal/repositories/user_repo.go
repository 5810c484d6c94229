package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inscribe-bot/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, telegram_user_id, username, state, active_chain, fee_preference, created_at, last_active_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.TelegramUserID, &u.Username, &u.State, &u.ActiveChain, &u.FeePreference, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// translate maps driver "no rows" onto the domain sentinel.
func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

// UpsertByTelegramID creates the user on first contact and bumps last_active_at otherwise.
func (r *UserRepo) UpsertByTelegramID(ctx context.Context, telegramID int64, username *string, defaultChain string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (telegram_user_id, username, active_chain)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_user_id) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, users.username),
			last_active_at = now()
		RETURNING `+userColumns, telegramID, username, defaultChain))
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_user_id = $1`, telegramID))
}

func (r *UserRepo) SetState(ctx context.Context, telegramID int64, state models.WorkflowState) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET state = $1 WHERE telegram_user_id = $2`, state, telegramID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CompareAndSetState moves the user from -> to atomically. false means the
// user was no longer in from.
func (r *UserRepo) CompareAndSetState(ctx context.Context, telegramID int64, from, to models.WorkflowState) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET state = $1
		WHERE telegram_user_id = $2 AND state = $3
	`, to, telegramID, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepo) SetActiveChain(ctx context.Context, telegramID int64, chain string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET active_chain = $1 WHERE telegram_user_id = $2`, chain, telegramID)
	return err
}

func (r *UserRepo) SetFeePreference(ctx context.Context, telegramID int64, pref models.FeePreference) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET fee_preference = $1 WHERE telegram_user_id = $2`, pref, telegramID)
	return err
}

func (r *UserRepo) UpdateLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

// ListStale returns users stuck mid-flow since before the cutoff. Confirming
// users are excluded so a batch is never filled with rows the sweeper skips.
func (r *UserRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE state NOT IN ('idle', 'confirming') AND last_active_at < $1
		ORDER BY last_active_at
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
