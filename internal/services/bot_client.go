package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BotClient talks to the bot gateway's internal API, which owns the
// Telegram connection and renders keyboards.
type BotClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

func NewBotClient(baseURL, token string, log *zap.Logger) *BotClient {
	return &BotClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type sendRequest struct {
	TelegramUserID int64      `json:"telegram_user_id"`
	Text           string     `json:"text"`
	Keyboard       [][]Button `json:"keyboard,omitempty"`
}

type sendResult struct {
	MessageID int64 `json:"message_id"`
}

// Send delivers a message and returns its id.
func (c *BotClient) Send(ctx context.Context, telegramUserID int64, msg OutMessage) (int64, error) {
	var res sendResult
	err := c.post(ctx, "/internal/send", sendRequest{
		TelegramUserID: telegramUserID,
		Text:           msg.Text,
		Keyboard:       msg.Keyboard,
	}, &res)
	if err != nil {
		return 0, err
	}
	return res.MessageID, nil
}

func (c *BotClient) Delete(ctx context.Context, telegramUserID int64, messageID int64) error {
	return c.post(ctx, "/internal/delete", map[string]any{
		"telegram_user_id": telegramUserID,
		"message_id":       messageID,
	}, nil)
}

func (c *BotClient) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Internal-Token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bot service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Debug("bot service rejected request", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("bot service returned %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
