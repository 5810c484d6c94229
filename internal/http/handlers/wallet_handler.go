package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/inscribe-bot/backend/internal/chain"
	"github.com/inscribe-bot/backend/internal/http/dto"
	"github.com/inscribe-bot/backend/internal/middleware"
	"github.com/inscribe-bot/backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const balanceTimeout = 5 * time.Second

type WalletHandler struct {
	users   userStore
	wallets walletLister
	txs     transactionLister
	chains  *chain.Registry
	log     *zap.Logger
}

func NewWalletHandler(users userStore, wallets walletLister, txs transactionLister, chains *chain.Registry, log *zap.Logger) *WalletHandler {
	return &WalletHandler{users: users, wallets: wallets, txs: txs, chains: chains, log: log}
}

// ListWallets returns the caller's wallets with balances fetched in parallel.
// A chain that does not answer leaves its balance null instead of failing
// the whole response.
func (h *WalletHandler) ListWallets(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := middleware.GetUserID(c)

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}
	wallets, err := h.wallets.ListByUser(ctx, userID)
	if err != nil {
		h.log.Error("failed to list wallets", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	out := make([]dto.WalletResponse, len(wallets))
	balCtx, cancel := context.WithTimeout(ctx, balanceTimeout)
	defer cancel()

	var g errgroup.Group
	for i := range wallets {
		w := wallets[i]
		out[i] = dto.WalletResponse{
			ID:            w.ID,
			Chain:         w.Chain,
			Address:       w.Address,
			FeePreference: string(w.EffectiveFeePreference(user.FeePreference)),
			LastActiveAt:  w.LastActiveAt,
		}
		adapter, err := h.chains.Get(w.Chain)
		if err != nil {
			continue // chain disabled on this deployment
		}
		out[i].Symbol = adapter.Symbol()
		g.Go(func() error {
			bal, err := adapter.GetBalance(balCtx, w.Address)
			if err != nil {
				h.log.Warn("balance unavailable", zap.String("chain", w.Chain), zap.Error(err))
				return nil
			}
			s := decimal.NewFromBigInt(bal, -adapter.Decimals()).String()
			out[i].Balance = &s
			return nil
		})
	}
	_ = g.Wait()

	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

// ListTransactions pages through the caller's broadcast history.
func (h *WalletHandler) ListTransactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	list, err := h.txs.ListByUser(c.UserContext(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		h.log.Error("failed to list transactions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	out := make([]dto.TransactionResponse, 0, len(list))
	for _, t := range list {
		out = append(out, h.transactionResponse(t))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *WalletHandler) transactionResponse(t models.Transaction) dto.TransactionResponse {
	r := dto.TransactionResponse{
		ID:        t.ID,
		Chain:     t.Chain,
		Operation: t.Operation,
		Protocol:  t.Protocol,
		Ticker:    t.Ticker,
		Amount:    t.Amount,
		Recipient: t.Recipient,
		Hash:      t.Hash,
		CreatedAt: t.CreatedAt,
	}
	if adapter, err := h.chains.Get(t.Chain); err == nil {
		r.ExplorerURL = adapter.ExplorerURL(t.Hash)
	}
	return r
}
