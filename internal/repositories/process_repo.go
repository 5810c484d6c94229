package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/inscribe-bot/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

// ProcessRepo keeps one process record per user as a redis hash. Every Save
// rewrites the whole record so fields from an earlier flow never survive.
type ProcessRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProcessRepo(rdb *redis.Client, ttl time.Duration) *ProcessRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ProcessRepo{rdb: rdb, ttl: ttl}
}

func processKey(telegramID int64) string {
	return fmt.Sprintf("process:%d", telegramID)
}

// Load never returns ErrNotFound: a missing record is an empty process.
func (r *ProcessRepo) Load(ctx context.Context, telegramID int64) (*models.Process, error) {
	m, err := r.rdb.HGetAll(ctx, processKey(telegramID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load process: %w", err)
	}
	return processFromHash(telegramID, m), nil
}

func (r *ProcessRepo) Save(ctx context.Context, p *models.Process) error {
	key := processKey(p.TelegramUserID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, processToHash(p))
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save process: %w", err)
	}
	return nil
}

// Reset strips the record back to its identity key.
func (r *ProcessRepo) Reset(ctx context.Context, telegramID int64) error {
	return r.Save(ctx, &models.Process{TelegramUserID: telegramID})
}

func processToHash(p *models.Process) map[string]any {
	h := map[string]any{
		"user_id":   strconv.FormatInt(p.TelegramUserID, 10),
		"op":        p.Operation,
		"chain":     p.Chain,
		"protocol":  p.Protocol,
		"ticker":    p.Ticker,
		"amount":    p.Amount,
		"recipient": p.Recipient,
		"payload":   p.Payload,
		"fee_rate":  p.FeeRate,
	}
	if !p.ReviewedAt.IsZero() {
		h["reviewed_at"] = strconv.FormatInt(p.ReviewedAt.UnixNano(), 10)
	}
	if p.ReviewMessageID != 0 {
		h["review_msg_id"] = strconv.FormatInt(p.ReviewMessageID, 10)
	}
	return h
}

func processFromHash(telegramID int64, h map[string]string) *models.Process {
	p := &models.Process{
		TelegramUserID: telegramID,
		Operation:      h["op"],
		Chain:          h["chain"],
		Protocol:       h["protocol"],
		Ticker:         h["ticker"],
		Amount:         h["amount"],
		Recipient:      h["recipient"],
		Payload:        h["payload"],
		FeeRate:        h["fee_rate"],
	}
	if ns, err := strconv.ParseInt(h["reviewed_at"], 10, 64); err == nil && ns > 0 {
		p.ReviewedAt = time.Unix(0, ns)
	}
	if id, err := strconv.ParseInt(h["review_msg_id"], 10, 64); err == nil {
		p.ReviewMessageID = id
	}
	return p
}
