package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/inscribe-bot/backend/internal/chain"
	"github.com/inscribe-bot/backend/internal/events"
	"github.com/inscribe-bot/backend/internal/middleware"
	"github.com/inscribe-bot/backend/internal/models"
	"github.com/inscribe-bot/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingRouter struct {
	got []services.Update
	err error
}

func (r *recordingRouter) Handle(ctx context.Context, upd services.Update) error {
	r.got = append(r.got, upd)
	return r.err
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestUpdateHandler(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		routerErr error
		status    int
		routed    int
	}{
		{"text", `{"telegram_user_id":7,"text":"/mint"}`, nil, fiber.StatusOK, 1},
		{"callback", `{"telegram_user_id":7,"callback_data":"confirm","message_id":12}`, nil, fiber.StatusOK, 1},
		{"no user", `{"text":"/mint"}`, nil, fiber.StatusBadRequest, 0},
		{"empty update", `{"telegram_user_id":7}`, nil, fiber.StatusOK, 0},
		{"bad json", `{`, nil, fiber.StatusBadRequest, 0},
		{"delivery failed", `{"telegram_user_id":7,"text":"hi"}`, errors.New("gateway down"), fiber.StatusBadGateway, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recordingRouter{err: tt.routerErr}
			app := fiber.New()
			app.Post("/internal/updates", NewUpdateHandler(r, zap.NewNop()).HandleUpdate)

			status, _ := postJSON(t, app, "/internal/updates", tt.body)
			assert.Equal(t, tt.status, status)
			assert.Len(t, r.got, tt.routed)
		})
	}

	r := &recordingRouter{}
	app := fiber.New()
	app.Post("/u", NewUpdateHandler(r, zap.NewNop()).HandleUpdate)
	postJSON(t, app, "/u", `{"telegram_user_id":7,"username":"al","callback_data":"proto:ierc-20","message_id":12}`)
	require.Len(t, r.got, 1)
	assert.Equal(t, services.Update{TelegramUserID: 7, Username: "al", CallbackData: "proto:ierc-20", MessageID: 12}, r.got[0])
}

// --- wallet listing ---

type stubUsers struct{ user *models.User }

func (s *stubUsers) UpsertByTelegramID(ctx context.Context, telegramID int64, username *string, defaultChain string) (*models.User, error) {
	return s.user, nil
}

func (s *stubUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, models.ErrNotFound
	}
	return s.user, nil
}

func (s *stubUsers) UpdateLastActive(ctx context.Context, id uuid.UUID) error { return nil }

type stubWallets []models.Wallet

func (s stubWallets) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	return s, nil
}

type stubTxs []models.Transaction

func (s stubTxs) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if offset >= len(s) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s) {
		end = len(s)
	}
	return s[offset:end], nil
}

type stubAdapter struct {
	chain.Adapter // unused methods panic
	name          string
	symbol        string
	decimals      int32
	balance       *big.Int
	err           error
}

func (a *stubAdapter) Name() string    { return a.name }
func (a *stubAdapter) Symbol() string  { return a.symbol }
func (a *stubAdapter) Decimals() int32 { return a.decimals }
func (a *stubAdapter) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return a.balance, a.err
}
func (a *stubAdapter) ExplorerURL(hash string) string { return "https://x.test/" + hash }

func withUser(id uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.CtxUserID, id)
		return c.Next()
	}
}

func TestListWallets(t *testing.T) {
	user := &models.User{ID: uuid.New(), FeePreference: models.FeeHigh}
	low := models.FeeLow
	wallets := stubWallets{
		{ID: uuid.New(), UserID: user.ID, Chain: "eth", Address: "0xabc"},
		{ID: uuid.New(), UserID: user.ID, Chain: "ton", Address: "EQabc", FeePreference: &low},
		{ID: uuid.New(), UserID: user.ID, Chain: "btc", Address: "bc1q"},
	}
	chains := chain.NewRegistry(
		&stubAdapter{name: "eth", symbol: "ETH", decimals: 18, balance: big.NewInt(1_500_000_000_000_000_000)},
		&stubAdapter{name: "ton", symbol: "TON", decimals: 9, err: errors.New("timeout")},
	)

	app := fiber.New()
	h := NewWalletHandler(&stubUsers{user: user}, wallets, stubTxs{}, chains, zap.NewNop())
	app.Get("/me/wallets", withUser(user.ID), h.ListWallets)

	resp, err := app.Test(httptest.NewRequest("GET", "/me/wallets", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []struct {
			Chain         string  `json:"chain"`
			Symbol        string  `json:"symbol"`
			Balance       *string `json:"balance"`
			FeePreference string  `json:"fee_preference"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data, 3)

	require.NotNil(t, body.Data[0].Balance)
	assert.Equal(t, "1.5", *body.Data[0].Balance)
	assert.Equal(t, "high", body.Data[0].FeePreference)

	assert.Nil(t, body.Data[1].Balance)
	assert.Equal(t, "low", body.Data[1].FeePreference)
	assert.Equal(t, "TON", body.Data[1].Symbol)

	assert.Empty(t, body.Data[2].Symbol)
	assert.Nil(t, body.Data[2].Balance)
}

func TestListTransactionsPaging(t *testing.T) {
	user := &models.User{ID: uuid.New()}
	txs := make(stubTxs, 0, 30)
	for i := 0; i < 30; i++ {
		txs = append(txs, models.Transaction{ID: uuid.New(), Chain: "eth", Hash: "0x" + string(rune('a'+i%26)), CreatedAt: time.Now()})
	}
	chains := chain.NewRegistry(&stubAdapter{name: "eth", symbol: "ETH", decimals: 18})

	app := fiber.New()
	h := NewWalletHandler(&stubUsers{user: user}, stubWallets{}, txs, chains, zap.NewNop())
	app.Get("/me/transactions", withUser(user.ID), h.ListTransactions)

	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"?limit=5", 5},
		{"?limit=500", 20},
		{"?limit=20&offset=25", 5},
		{"?offset=-3", 20},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", "/me/transactions"+tt.query, nil))
		require.NoError(t, err)
		var body struct {
			Data []struct {
				Hash        string `json:"hash"`
				ExplorerURL string `json:"explorer_url"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Len(t, body.Data, tt.want, tt.query)
		if len(body.Data) > 0 {
			assert.Equal(t, "https://x.test/"+body.Data[0].Hash, body.Data[0].ExplorerURL)
		}
	}
}

// --- websocket routing ---

type captureConn struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (c *captureConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, data)
	return nil
}

func TestWSHubRoutesByUser(t *testing.T) {
	hub := NewWSHub("secret", nil, zap.NewNop())
	alice, bob := uuid.New(), uuid.New()
	ac, bc := &captureConn{}, &captureConn{}
	hub.register(alice, ac)
	hub.register(bob, bc)

	hub.route(events.Event{Type: events.EventTxBroadcast, Payload: map[string]any{"user_id": alice.String(), "hash": "0x1"}})
	hub.route(events.Event{Type: events.EventTxBroadcast, Payload: map[string]any{"hash": "0x2"}})

	require.Len(t, ac.msgs, 1)
	assert.Contains(t, string(ac.msgs[0]), `"hash":"0x1"`)
	assert.Empty(t, bc.msgs)

	hub.unregister(alice, ac)
	hub.route(events.Event{Type: events.EventTxBroadcast, Payload: map[string]any{"user_id": alice.String()}})
	assert.Len(t, ac.msgs, 1)
	assert.NotContains(t, hub.connections, alice)
}

type stubAudit struct {
	gotTelegramID int64
	logs          []models.AuditLog
}

func (s *stubAudit) ListByTelegramID(ctx context.Context, telegramID int64, limit, offset int) ([]models.AuditLog, error) {
	s.gotTelegramID = telegramID
	return s.logs, nil
}

func TestGetActivity(t *testing.T) {
	audit := &stubAudit{logs: []models.AuditLog{
		{Action: "retry_review", FromState: models.StateConfirming, ToState: models.StateReview, Meta: map[string]any{"reason": "timeout"}},
	}}
	app := fiber.New()
	h := NewUserHandler(&stubUsers{}, audit, zap.NewNop())
	app.Get("/me/activity", func(c *fiber.Ctx) error {
		c.Locals(middleware.CtxTelegramUserID, int64(42))
		return c.Next()
	}, h.GetActivity)

	resp, err := app.Test(httptest.NewRequest("GET", "/me/activity", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, int64(42), audit.gotTelegramID)
	assert.Contains(t, string(body), `"reason":"timeout"`)
	assert.Contains(t, string(body), `"to_state":"review"`)

	audit.logs = nil
	resp, err = app.Test(httptest.NewRequest("GET", "/me/activity", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"data":[]`)
}
