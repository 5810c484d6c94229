package chain

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/inscribe-bot/backend/internal/models"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"go.uber.org/zap"
)

// TON has no fee market; the rate is a fixed sentinel and the cost
// formula carries the real price per byte.
const (
	tonFeeRateSentinel = 1
	tonBaseNano        = 10_000_000
	tonNanoPerByte     = 1_000
)

type TONConfig struct {
	Network        string // mainnet | testnet
	LiteServerHost string
	LiteServerPort int
	LiteServerKey  string
}

type TONAdapter struct {
	api     ton.APIClientWrapped // reads
	send    ton.APIClientWrapped // wallet seqno and external messages
	network string
	log     *zap.Logger
	now     func() time.Time
}

// ConnectTON opens a lite server pool, either to a single configured server or
// via the network's global config.
func ConnectTON(ctx context.Context, cfg TONConfig, log *zap.Logger) (*TONAdapter, error) {
	client := liteclient.NewConnectionPool()

	if cfg.LiteServerHost != "" && cfg.LiteServerKey != "" {
		addr := fmt.Sprintf("%s:%d", cfg.LiteServerHost, cfg.LiteServerPort)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, cfg.LiteServerKey); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		configURL := "https://ton.org/testnet-global.config.json"
		if isMainnet(cfg.Network) {
			configURL = "https://ton.org/global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", cfg.Network))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	policy := ton.ProofCheckPolicyFast
	if isMainnet(cfg.Network) {
		policy = ton.ProofCheckPolicySecure
	}

	read, send := tonClients(ton.NewAPIClient(client, policy))
	a := NewTONAdapter(read, cfg.Network, log)
	a.send = send
	return a, nil
}

// tonClients splits reads, which retry on another lite server, from sends,
// which must not be replayed.
func tonClients(base *ton.APIClient) (read, send ton.APIClientWrapped) {
	return base.WithRetry(), base
}

func NewTONAdapter(api ton.APIClientWrapped, network string, log *zap.Logger) *TONAdapter {
	return &TONAdapter{api: api, send: api, network: network, log: log, now: time.Now}
}

func isMainnet(network string) bool {
	return strings.EqualFold(network, "mainnet")
}

func (a *TONAdapter) Name() string    { return ChainTON }
func (a *TONAdapter) Symbol() string  { return "TON" }
func (a *TONAdapter) Decimals() int32 { return 9 }

func (a *TONAdapter) account(ctx context.Context, op, addrStr string) (*tlb.Account, error) {
	addr, err := parseTONAddress(addrStr)
	if err != nil {
		return nil, &ProviderError{Chain: ChainTON, Op: op, Err: err}
	}
	block, err := a.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, &ProviderError{Chain: ChainTON, Op: op, Err: fmt.Errorf("get masterchain info: %w", err)}
	}
	acc, err := a.api.GetAccount(ctx, block, addr)
	if err != nil {
		return nil, &ProviderError{Chain: ChainTON, Op: op, Err: err}
	}
	return acc, nil
}

// GetBalance returns the balance in nanoTON. A never-deployed account has zero balance.
func (a *TONAdapter) GetBalance(ctx context.Context, addr string) (*big.Int, error) {
	acc, err := a.account(ctx, "balance", addr)
	if err != nil {
		return nil, err
	}
	if acc == nil || acc.State == nil {
		return big.NewInt(0), nil
	}
	return acc.State.Balance.Nano(), nil
}

func (a *TONAdapter) GetFeeRate(ctx context.Context) (*big.Int, error) {
	return big.NewInt(tonFeeRateSentinel), nil
}

func (a *TONAdapter) EstimateCost(payloadSize int, feeRate *big.Int, priority models.FeePreference) *big.Int {
	return linearCost(payloadSize, feeRate, tonBaseNano, tonNanoPerByte, priority)
}

func (a *TONAdapter) ValidateAddress(addr string) bool {
	_, err := parseTONAddress(addr)
	return err == nil
}

// IsAddressActivated reports whether the wallet can send now.
func (a *TONAdapter) IsAddressActivated(ctx context.Context, addr string) (bool, error) {
	acc, err := a.account(ctx, "account state", addr)
	if err != nil {
		return false, err
	}
	return tonSendable(acc), nil
}

// tonSendable is true for an active wallet, and for an uninit one holding
// funds since its first send carries the state init and deploys it.
// Missing and frozen accounts cannot send.
func tonSendable(acc *tlb.Account) bool {
	if acc == nil || !acc.IsActive || acc.State == nil {
		return false
	}
	switch acc.State.Status {
	case tlb.AccountStatusActive:
		return true
	case tlb.AccountStatusUninit:
		return acc.State.Balance.IsPositive()
	}
	return false
}

func (a *TONAdapter) BuildAndBroadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	key, err := tonPrivateKey(req.PrivateKey)
	if err != nil {
		return nil, &BroadcastError{Chain: ChainTON, Reason: "invalid private key", Err: err}
	}

	// seqno is read from the wallet contract on every send
	w, err := wallet.FromPrivateKey(a.send, key, wallet.V4R2)
	if err != nil {
		return nil, newBroadcastError(ChainTON, fmt.Errorf("open wallet: %w", err))
	}

	to := w.WalletAddress()
	if req.Recipient != "" {
		to, err = parseTONAddress(req.Recipient)
		if err != nil {
			return nil, &BroadcastError{Chain: ChainTON, Reason: fmt.Sprintf("invalid recipient %q", req.Recipient), Err: err}
		}
	}

	amount := big.NewInt(0)
	if req.Amount != nil {
		amount = req.Amount
	}

	var body *cell.Cell
	if req.Payload != "" {
		body, err = wallet.CreateCommentCell(req.Payload)
		if err != nil {
			return nil, newBroadcastError(ChainTON, fmt.Errorf("build comment: %w", err))
		}
	}

	msg := &wallet.Message{
		Mode: wallet.PayGasSeparately + wallet.IgnoreErrors,
		InternalMessage: &tlb.InternalMessage{
			IHRDisabled: true,
			Bounce:      to.IsBounceable(),
			DstAddr:     to,
			Amount:      tlb.FromNanoTON(amount),
			Body:        body,
		},
	}

	tx, _, err := w.SendWaitTransaction(ctx, msg)
	if err != nil {
		return nil, newBroadcastError(ChainTON, err)
	}

	hash := hex.EncodeToString(tx.Hash)
	a.log.Info("ton transaction sent",
		zap.String("hash", hash),
		zap.String("from", w.WalletAddress().String()),
		zap.String("to", to.String()),
	)

	return &BroadcastResult{Hash: hash, Timestamp: a.now()}, nil
}

func (a *TONAdapter) ExplorerURL(hash string) string {
	if isMainnet(a.network) {
		return "https://tonviewer.com/transaction/" + hash
	}
	return "https://testnet.tonviewer.com/transaction/" + hash
}

// parseTONAddress accepts user-friendly and raw (wc:hex) forms.
func parseTONAddress(s string) (*address.Address, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		return address.ParseRawAddr(s)
	}
	return address.ParseAddr(s)
}

// tonPrivateKey takes either a 32-byte seed or a full 64-byte ed25519 key.
func tonPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("unexpected key length %d", len(raw))
	}
}
